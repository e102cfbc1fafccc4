package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
)

func TestRateLimiterAllowsWithinBurstThenRejects(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, nil)
	require.True(t, rl.allow("1.2.3.4"))
	require.True(t, rl.allow("1.2.3.4"))
	require.False(t, rl.allow("1.2.3.4"))
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)
	require.True(t, rl.allow("1.2.3.4"))
	require.False(t, rl.allow("1.2.3.4"))
	require.True(t, rl.allow("5.6.7.8"))
}

func TestMiddlewareRejectsOverBudgetWith429(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	wrapped := rl.Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/join/global", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIPUsesRemoteAddrByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:5555"
	require.Equal(t, "203.0.113.5", clientIP(req))
}

func TestClientIPTrustsForwardedForBehindLoopback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	require.Equal(t, "198.51.100.9", clientIP(req))
}
