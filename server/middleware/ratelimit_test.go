package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/server/metrics"
)

func TestRateLimit(t *testing.T) {
	m := metrics.NewMetrics()
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}, m)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/get-ingredients", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222").Code)

	rec := do("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"Rate limit exceeded, retry after 60s","ingredients":[]}`, rec.Body.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111").Code)

	rl.Reset()
	assert.Equal(t, http.StatusOK, do("10.0.0.1:4444").Code)
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}, nil)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/get-ingredients", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for _, remote := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		assert.Equal(t, http.StatusOK, do(remote))
	}
	assert.Equal(t, 3, rl.Clients())

	clock = clock.Add(5 * time.Minute)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2"))

	// 10.0.0.2 and 10.0.0.3 have been idle past the TTL, 10.0.0.1 has not.
	clock = clock.Add(idleTTL - 4*time.Minute)
	assert.Equal(t, http.StatusOK, do("10.0.0.4:1"))
	assert.Equal(t, 2, rl.Clients())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", clientIP(req))
}
