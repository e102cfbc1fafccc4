// Package httpapi exposes the cascade engine's REST surface: join/upgrade
// requests, status and tree reads, the Global program's phase-progress
// tick, and a manual matrix-recycle evaluation hook. Its shape — one
// *http.ServeMux, handlers that split r.URL.Path on "/" for nested
// resources, shared decodeJSON/writeJSON/writeError helpers — is grounded
// on the reference service's own internal/app/httpapi/handler.go.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app"
	"github.com/ayon178/bitgpt-backend-sub002/internal/apperr"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
	"github.com/ayon178/bitgpt-backend-sub002/internal/metrics"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the cascade engine's REST API. The two
// state-mutating endpoints (`/join`, `/upgrade`) sit behind a per-client
// rate limiter configured by rl; log is used for both the limiter's
// rejection log line and may be nil in tests.
func NewHandler(application *app.Application, rl config.RateLimitConfig, log *logger.Logger) http.Handler {
	h := &handler{app: application}
	limiter := newRateLimiter(rl, log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/system/status", h.systemStatus)
	mux.Handle("/join/", limiter.Middleware(http.HandlerFunc(h.join)))
	mux.Handle("/upgrade/", limiter.Middleware(http.HandlerFunc(h.upgrade)))
	mux.HandleFunc("/status/", h.status)
	mux.HandleFunc("/progress/global/", h.progressGlobal)
	mux.HandleFunc("/tree/", h.tree)
	mux.HandleFunc("/recycle/matrix/evaluate/", h.recycleEvaluate)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// join handles POST /join/{program} (§6).
func (h *handler) join(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/join/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := parseProgram(w, parts[0])
	if !ok {
		return
	}

	var payload struct {
		UserID        string  `json:"user_id"`
		ReferrerID    string  `json:"referrer_id"`
		TxHash        string  `json:"tx_hash"`
		Currency      string  `json:"currency"`
		Amount        float64 `json:"amount"`
		CorrelationID string  `json:"correlation_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("body", err.Error()))
		return
	}

	outcome, err := h.app.Placement.Join(r.Context(), placement.JoinRequest{
		UserID:        payload.UserID,
		ReferrerID:    payload.ReferrerID,
		Program:       p,
		TxHash:        payload.TxHash,
		Currency:      payload.Currency,
		Amount:        payload.Amount,
		CorrelationID: payload.CorrelationID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

// upgrade handles POST /upgrade/{program} (§6).
func (h *handler) upgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/upgrade/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := parseProgram(w, parts[0])
	if !ok {
		return
	}

	var payload struct {
		UserID        string  `json:"user_id"`
		TargetSlot    int     `json:"target_slot"`
		TxHash        string  `json:"tx_hash"`
		Currency      string  `json:"currency"`
		Amount        float64 `json:"amount"`
		CorrelationID string  `json:"correlation_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("body", err.Error()))
		return
	}

	outcome, err := h.app.Placement.Upgrade(r.Context(), placement.UpgradeRequest{
		UserID:        payload.UserID,
		Program:       p,
		TargetSlot:    payload.TargetSlot,
		TxHash:        payload.TxHash,
		Currency:      payload.Currency,
		Amount:        payload.Amount,
		CorrelationID: payload.CorrelationID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// status handles GET /status/{program}/{user_id} (§6).
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/status/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := parseProgram(w, parts[0])
	if !ok {
		return
	}
	userID := parts[1]

	activations, err := h.app.Activations.ListActivations(r.Context(), userID, p)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rankRecord, err := h.app.Rank.Get(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"program":     p,
		"activations": activations,
		"rank":        rankRecord,
	})
}

// progressGlobal handles POST /progress/global/{user_id} (§6): the
// idempotent tick that evaluates Global phase completion (§4.3).
func (h *handler) progressGlobal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/progress/global/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]

	state, advanced, err := h.app.GlobalPhase.Tick(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    state,
		"advanced": advanced,
	})
}

// tree handles GET /tree/{program}/{user_id}/{slot_no} (§6): the node for
// user_id plus its direct children in that (program, slot) placement graph.
func (h *handler) tree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/tree/")
	if len(parts) != 3 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, ok := parseProgram(w, parts[0])
	if !ok {
		return
	}
	userID := parts[1]
	slotNo, err := strconv.Atoi(parts[2])
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("slot_no", "must be an integer"))
		return
	}

	generation := 0
	if p == program.Matrix {
		gen, err := h.app.Tree.Generation(r.Context(), p, slotNo, userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		generation = gen.GenNo
	}

	// Global placements share one tree across slots (tree.Service.PlaceGlobal
	// stores every one under slot 0), so for Global slot_no selects no
	// separate graph.
	lookupSlot := slotNo
	if p == program.Global {
		lookupSlot = 0
	}

	node, found, err := h.app.Tree.Node(r.Context(), p, lookupSlot, generation, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, apperr.NotFound("tree_node", userID))
		return
	}
	children, err := h.app.Tree.Children(r.Context(), p, lookupSlot, generation, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":     node,
		"children": children,
	})
}

// recycleEvaluate handles POST /recycle/matrix/evaluate/{user_id}/{slot_no}
// (§6): an operator-triggered re-check of the 39-member recycle threshold,
// in case the automatic check after a placement was missed.
func (h *handler) recycleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/recycle/matrix/evaluate/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]
	slotNo, err := strconv.Atoi(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("slot_no", "must be an integer"))
		return
	}

	if err := h.app.Recycle.MaybeRecycle(r.Context(), userID, slotNo); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "evaluated"})
}

func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseProgram(w http.ResponseWriter, raw string) (program.Program, bool) {
	p := program.Program(raw)
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, apperr.Validation("program", "unknown program"))
		return "", false
	}
	return p, true
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": err.Error()}
	if appErr, ok := apperr.As(err); ok {
		body["code"] = appErr.Code
		if appErr.Details != nil {
			body["details"] = appErr.Details
		}
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeAppError translates a service error into its wire-level status and
// code (§7), defaulting to 500/INTERNAL for anything not already an
// *apperr.Error.
func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, apperr.HTTPStatusOf(err), err)
}
