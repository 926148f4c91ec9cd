// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
)

type stubVerifier map[string]*AccessTokenClaims

func (s stubVerifier) VerifyAccessToken(_ context.Context, token string) (*AccessTokenClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, fmt.Errorf("verify: %w", core.ErrTokenInvalid)
	}
	return claims, nil
}

type stubSessions struct {
	revoked map[int64]bool
}

func (s stubSessions) ValidateSession(_ context.Context, claims *AccessTokenClaims) error {
	if s.revoked[claims.UserID] {
		return fmt.Errorf("validate: %w", core.ErrTokenRevoked)
	}
	return nil
}

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = fmt.Fprintf(w, "%d/%s", GetUserID(r.Context()), GetUserRole(r.Context()))
})

func TestAuthenticator(t *testing.T) {
	verifier := stubVerifier{
		"user":    {UserID: 10, Role: "user"},
		"admin":   {UserID: 1, Role: "admin"},
		"revoked": {UserID: 7, Role: "user"},
	}
	sessions := stubSessions{revoked: map[int64]bool{7: true}}

	tests := []struct {
		name       string
		header     string
		handler    http.Handler
		wantStatus int
		wantBody   string
	}{
		{"no token", "", echoUser, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", echoUser, http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", echoUser, http.StatusUnauthorized, ""},
		{"revoked session", "Bearer revoked", echoUser, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"valid", "bearer user", echoUser, http.StatusOK, "10/user"},
		{"admin route as user", "Bearer user", RequireAdmin(echoUser), http.StatusForbidden, ""},
		{"admin route as admin", "Bearer admin", RequireAdmin(echoUser), http.StatusOK, "1/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Authenticator(verifier, sessions)(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireRoleWithoutAuthentication(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAdmin(echoUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestRecoverer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"https://soundshare.example"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})(echoUser)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://soundshare.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://soundshare.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(false)(echoUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(true)(echoUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRateLimiterFallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	h := NewRateLimiter(rdb, RateLimitConfig{
		Limit: PerHour(1, 2),
	}).Handler(echoUser)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	require.Len(t, codes, 3)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/v1/admin/users/{id}/delete", normalizeEndpoint("/v1/admin/users/42/delete"))
	assert.Equal(t,
		"/v1/auth/sessions/{id}",
		normalizeEndpoint("/v1/auth/sessions/0f8fad5b-d9cb-469f-a165-70867728950e"),
	)
}

func TestKeyByLogin(t *testing.T) {
	post := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.9:4000"
		return req
	}

	req := post(`{"login":" Rain ","password":"secret"}`)
	assert.Equal(t, "ratelimit:login:rain:/v1/auth/login", KeyByLogin(req))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"login":" Rain ","password":"secret"}`, string(body), "body is left for the handler")

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/username-reminder",
		strings.NewReader(`{"email":"Rain@Example.com"}`))
	assert.Equal(t, "ratelimit:login:rain@example.com:/v1/auth/username-reminder", KeyByLogin(req))

	req = httptest.NewRequest(http.MethodPost, "/v1/users/me/delete", strings.NewReader(`{"password":"x"}`))
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, int64(42)))
	assert.Equal(t, "ratelimit:user:42:/v1/users/me/delete", KeyByLogin(req))

	req = post(`not json`)
	assert.Equal(t, "ratelimit:ip:203.0.113.9:/v1/auth/login", KeyByLogin(req))
}

func TestSensitiveCountsPerAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	readBody := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
	h := Sensitive(rdb, PerHour(1, 1))(readBody)

	login := func(name string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			strings.NewReader(fmt.Sprintf(`{"login":%q}`, name)))
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := login("Rain")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, `{"login":"Rain"}`, first.Body.String())

	again := login("rain")
	assert.Equal(t, http.StatusTooManyRequests, again.Code)
	assert.NotEmpty(t, again.Header().Get("Retry-After"))
	assert.Contains(t, again.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, login("thunder").Code, "other accounts keep their own budget")
}
