package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/ratelimit"
)

func TestRateLimitMiddleware_AllowsWithinBudget(t *testing.T) {
	limiter := ratelimit.New()
	defer limiter.Close()
	handler := RateLimitMiddleware(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_RejectsOverBudget(t *testing.T) {
	limiter := ratelimit.New()
	defer limiter.Close()
	handler := RateLimitMiddleware(limiter)(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/invoke", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))

	var body errorResponse
	require.NoError(t, json.NewDecoder(last.Body).Decode(&body))
	assert.Equal(t, errCodeRateLimited, body.Code)
}

func TestRateLimitMiddleware_KeysByForwardedFor(t *testing.T) {
	limiter := ratelimit.New()
	defer limiter.Close()
	handler := RateLimitMiddleware(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.3")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
