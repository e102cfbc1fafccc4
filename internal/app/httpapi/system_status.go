package httpapi

import (
	"net/http"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemStatus handles GET /system/status: a host CPU/memory introspection
// snapshot alongside the same service surface `/healthz` reports, grounded
// on the reference service's system_status.go (runtime introspection
// folded into one operator-facing payload, distinct from the per-user
// `/status/{program}/{user_id}` read). gopsutil sampling failures are
// reported inline rather than failing the whole response — an operator
// checking in on the process shouldn't get a 500 because /proc was
// momentarily unreadable.
func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]any{"status": "ok"}

	percents, err := cpu.PercentWithContext(r.Context(), 0, false)
	if err != nil {
		payload["cpu_error"] = err.Error()
	} else if len(percents) > 0 {
		payload["cpu_percent"] = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(r.Context())
	if err != nil {
		payload["memory_error"] = err.Error()
	} else {
		payload["memory"] = map[string]any{
			"total_bytes":     vm.Total,
			"available_bytes": vm.Available,
			"used_bytes":      vm.Used,
			"used_percent":    vm.UsedPercent,
		}
	}

	writeJSON(w, http.StatusOK, payload)
}
