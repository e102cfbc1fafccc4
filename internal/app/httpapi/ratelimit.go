package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayon178/bitgpt-backend-sub002/internal/apperr"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// rateLimiter is a per-client token-bucket limiter placed ahead of the
// state-mutating endpoints (`/join`, `/upgrade`), keyed by client IP since
// this module has no auth layer to key by user/token instead. Grounded on
// the reference service's infrastructure/middleware.RateLimiter, trimmed to
// a fixed requests-per-minute budget (no per-route override, no Cleanup
// goroutine — this module's request volume doesn't warrant one).
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	perMin   int
	log      *logger.Logger
}

func newRateLimiter(cfg config.RateLimitConfig, log *logger.Logger) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:    cfg.Burst,
		perMin:   cfg.RequestsPerMinute,
		log:      log,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests beyond the per-client budget with a 429
// before next ever sees them.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if rl.allow(key) {
			next.ServeHTTP(w, r)
			return
		}
		if rl.log != nil {
			rl.log.WithField("client", key).WithField("path", r.URL.Path).Warn("rate limit exceeded")
		}
		w.Header().Set("Retry-After", "60")
		writeAppError(w, apperr.RateLimited(rl.perMin, time.Minute.String()))
	})
}

// clientIP extracts the request's remote IP, preferring X-Forwarded-For
// only when the direct connection itself is from a private/loopback
// address (i.e. behind a trusted proxy).
func clientIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	parsed := net.ParseIP(remote)
	trustForwarded := parsed != nil && (parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast())
	if trustForwarded {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
				return first
			}
		}
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
