package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "IPv4 with port",
			remoteAddr: "192.168.1.1:54321",
			expected:   "192.168.1.1",
		},
		{
			name:       "IPv6 with port",
			remoteAddr: "[2001:db8::1]:54321",
			expected:   "2001:db8::1",
		},
		{
			name:       "no port",
			remoteAddr: "192.168.1.1",
			expected:   "192.168.1.1",
		},
		{
			name:       "unparseable remote address",
			remoteAddr: "pipe",
			expected:   "",
		},
		{
			name:       "forwarded headers ignored without trusted proxy",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			expected:   "10.0.0.1",
		},
		{
			name:       "first forwarded address",
			trustProxy: true,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			expected:   "203.0.113.1",
		},
		{
			name:       "forwarded address with extra spaces",
			trustProxy: true,
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.1  ,198.51.100.1"},
			expected:   "203.0.113.1",
		},
		{
			name:       "forwarded for takes preference over real ip",
			trustProxy: true,
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
				"X-Real-IP":       "192.168.1.100",
			},
			expected: "203.0.113.1",
		},
		{
			name:       "garbage forwarded for falls back to real ip",
			trustProxy: true,
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "unknown",
				"X-Real-IP":       "192.168.1.100",
			},
			expected: "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			require.Equal(t, tt.expected, ExtractClientIP(r, tt.trustProxy))
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	var capturedIP string
	handler := ClientIPMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedIP = ClientIPFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.1")

	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "203.0.113.1", capturedIP)
	require.Empty(t, ClientIPFromContext(context.Background()))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		require.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, "abc-123", seen)
		require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.Len(t, seen, 36)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	handler := ClientIPMiddleware(false)(rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for range 2 {
		rec := send("192.0.2.1:1000")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := send("192.0.2.1:1001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, http.StatusTooManyRequests, p.Status)

	// another client has its own bucket
	require.Equal(t, http.StatusOK, send("192.0.2.2:1000").Code)

	require.Equal(t, 0, rl.Prune(time.Hour))
	require.Equal(t, 2, rl.Prune(0))
}

func TestRateLimitConfigValidate(t *testing.T) {
	require.NoError(t, RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}.Validate())
	require.Error(t, RateLimitConfig{RequestsPerSecond: 0, Burst: 1}.Validate())
	require.Error(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 0}.Validate())
}

func TestValidationProblem(t *testing.T) {
	err := validation.Errors{
		"title": errors.New("이 필드는 필수 항목입니다."),
		"phone": nil,
		"contact": validation.Errors{
			"email": errors.New("invalid"),
		},
	}

	p := ValidationProblem(err)
	require.Equal(t, http.StatusBadRequest, p.Status)
	require.Equal(t, map[string]string{
		"title":         "이 필드는 필수 항목입니다.",
		"contact.email": "invalid",
	}, p.Errors)

	plain := ValidationProblem(errors.New("boom"))
	require.Equal(t, "boom", plain.Detail)
	require.Empty(t, plain.Errors)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "object", body: `{"title":"a","extra":1}`},
		{name: "empty", body: "", wantErr: true},
		{name: "malformed", body: `{"title":`, wantErr: true},
		{name: "wrong type", body: `{"title":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Title string `json:"title"`
			}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadBody)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a", dst.Title)
		})
	}
}

func TestBodyProblem(t *testing.T) {
	var dst struct {
		Count int `json:"student_count"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"student_count":"many"}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)

	p := BodyProblem(err)
	require.Equal(t, http.StatusBadRequest, p.Status)
	require.Contains(t, p.Errors, "student_count")

	p = BodyProblem(ErrBadBody)
	require.Equal(t, MsgBadBody, p.Detail)
	require.Empty(t, p.Errors)
}
