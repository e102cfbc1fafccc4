// Package metrics exposes the cascade engine's Prometheus collectors: HTTP
// request counters/histograms, a ledger-write histogram, an auto-upgrade
// queue-depth gauge, and a matrix-recycle counter, mirroring the reference
// service's own metrics.Handler()/InstrumentHandler wrapping.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector this module registers.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bitgpt",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bitgpt",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bitgpt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	ledgerWrites = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bitgpt",
		Subsystem: "ledger",
		Name:      "write_duration_seconds",
		Help:      "Duration of one activation's full ledger-write cascade (placement through fund credits).",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"program", "outcome"})

	autoUpgradeQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bitgpt",
		Subsystem: "auto_upgrade",
		Name:      "queue_depth",
		Help:      "Pending auto-upgrade queue items observed on the most recent poll tick.",
	}, []string{"program"})

	matrixRecycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bitgpt",
		Subsystem: "matrix",
		Name:      "recycles_total",
		Help:      "Total number of matrix generations recycled.",
	}, []string{"slot_no"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerWrites,
		autoUpgradeQueueDepth,
		matrixRecycles,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request counters and a duration
// histogram, skipping /metrics itself to avoid measuring the scrape.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordLedgerWrite records one activation's end-to-end ledger-write
// latency, labeled by program and outcome ("ok", "replayed", "error").
func RecordLedgerWrite(program, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Microsecond
	}
	ledgerWrites.WithLabelValues(program, outcome).Observe(duration.Seconds())
}

// SetAutoUpgradeQueueDepth records the pending-item count observed by the
// auto-upgrade worker's most recent poll tick.
func SetAutoUpgradeQueueDepth(program string, depth int) {
	autoUpgradeQueueDepth.WithLabelValues(program).Set(float64(depth))
}

// RecordMatrixRecycle increments the recycle counter for the given slot.
func RecordMatrixRecycle(slotNo int) {
	matrixRecycles.WithLabelValues(strconv.Itoa(slotNo)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path segments that carry a user/correlation ID
// so the cardinality of the method+path label pair stays bounded — e.g.
// /status/matrix/u-123 becomes /status/matrix/:id.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	known := map[string]bool{
		"join": true, "upgrade": true, "status": true,
		"progress": true, "tree": true, "recycle": true,
		"metrics": true, "healthz": true, "system": true,
	}
	for i, p := range parts {
		if i == 0 && known[p] {
			continue
		}
		if i == 1 {
			continue
		}
		parts[i] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}
