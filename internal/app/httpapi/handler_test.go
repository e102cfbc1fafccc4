package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
)

func newTestApplication(t *testing.T) *app.Application {
	t.Helper()
	application, err := app.New(context.Background(), config.Default(), nil)
	require.NoError(t, err)
	return application
}

// testRateLimit is generous enough that no test's request burst ever trips
// the limiter — rate-limiting behavior itself is exercised in
// ratelimit_test.go.
var testRateLimit = config.RateLimitConfig{RequestsPerMinute: 6000, Burst: 1000}

func newTestHandler(application *app.Application) http.Handler {
	return NewHandler(application, testRateLimit, nil)
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestJoinGlobalThenStatusAndTree(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	joinBody, err := json.Marshal(map[string]any{
		"user_id":        "alice",
		"referrer_id":    "",
		"tx_hash":        "0xabc",
		"currency":       "USD",
		"amount":         33.0,
		"correlation_id": "join-alice-global",
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/join/global", "application/json", bytes.NewReader(joinBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var joinOut map[string]any
	decodeBody(t, resp, &joinOut)

	resp, err = http.Get(server.URL + "/status/global/alice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statusOut map[string]any
	decodeBody(t, resp, &statusOut)
	require.Equal(t, "alice", statusOut["user_id"])

	resp, err = http.Get(server.URL + "/tree/global/alice/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var treeOut map[string]any
	decodeBody(t, resp, &treeOut)
	require.Contains(t, treeOut, "node")
	require.Contains(t, treeOut, "children")
}

func TestJoinRejectsWrongAmount(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	joinBody, err := json.Marshal(map[string]any{
		"user_id":        "bob",
		"currency":       "USD",
		"amount":         1.0,
		"correlation_id": "join-bob-global-bad-amount",
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/join/global", "application/json", bytes.NewReader(joinBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errOut map[string]any
	decodeBody(t, resp, &errOut)
	require.Equal(t, "VALIDATION", errOut["code"])
}

func TestJoinRejectsUnknownProgram(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	resp, err := http.Post(server.URL+"/join/not-a-program", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressGlobalTickIsIdempotentUntilPhaseFills(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	// alice joins Global as the Mother-rooted owner; no other placements
	// land under her, so her phase-1 tree (capacity 4) is still empty.
	joinBody, err := json.Marshal(map[string]any{
		"user_id": "alice", "currency": "USD", "amount": 33.0,
		"correlation_id": "join-alice-global-2",
	})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/join/global", "application/json", bytes.NewReader(joinBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(server.URL+"/progress/global/alice", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tickOut map[string]any
	decodeBody(t, resp, &tickOut)
	require.Equal(t, false, tickOut["advanced"])
}

func TestRecycleEvaluateRejectsNonIntegerSlot(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	resp, err := http.Post(server.URL+"/recycle/matrix/evaluate/alice/not-a-number", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	decodeBody(t, resp, &out)
	require.Equal(t, "ok", out["status"])
}

func TestMethodNotAllowed(t *testing.T) {
	application := newTestApplication(t)
	server := httptest.NewServer(newTestHandler(application))
	defer server.Close()

	resp, err := http.Get(server.URL + "/join/global")
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
