package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		shouldCallNext bool
	}{
		{"GET request with CORS headers", "*", http.MethodGet, true},
		{"POST request with specific origin", "https://example.com", http.MethodPost, true},
		{"OPTIONS request (preflight)", "*", http.MethodOptions, false},
		{"empty CORS origin", "", http.MethodGet, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}
			called := false
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusAccepted)
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			w := httptest.NewRecorder()
			handler(w, req)

			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.shouldCallNext, called)
			if tt.shouldCallNext {
				assert.Equal(t, http.StatusAccepted, w.Code)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

func TestResponseWriter_Hijack(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.Error(t, err)
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		server := &Server{}
		calls := 0
		handler := server.rateLimitMiddleware(func(http.ResponseWriter, *http.Request) { calls++ })
		for range 3 {
			handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/segment", nil))
		}
		assert.Equal(t, 3, calls)
	})

	t.Run("enabled", func(t *testing.T) {
		rl, _ := newClockedLimiter(0.5, 1)
		server := &Server{rateLimiter: rl}
		calls := 0
		handler := server.rateLimitMiddleware(func(http.ResponseWriter, *http.Request) { calls++ })

		req := httptest.NewRequest(http.MethodPost, "/segment", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		handler(httptest.NewRecorder(), req)

		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, 1, calls)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Equal(t, "0.5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Burst"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body["error"])

		other := httptest.NewRequest(http.MethodPost, "/segment", nil)
		other.RemoteAddr = "192.0.2.2:1234"
		handler(httptest.NewRecorder(), other)
		assert.Equal(t, 2, calls)
	})
}

func TestServer_HandleRateLimitError_Unknown(t *testing.T) {
	server := &Server{}
	w := httptest.NewRecorder()
	server.handleRateLimitError(w, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.5"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.6 "}, "10.0.0.2:80", "203.0.113.6"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "10.0.0.2:80", "203.0.113.7"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.10", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
