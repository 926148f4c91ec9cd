// AngelaMos | 2026
// handler_test.go

package deletion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/middleware"
)

type staticVerifier map[string]*middleware.AccessTokenClaims

func (v staticVerifier) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	claims, ok := v[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return claims, nil
}

func newTestRouter(f *serviceFixture) http.Handler {
	verifier := staticVerifier{
		"user-token":  {ID: "jti-1", UserID: 10, Role: "user"},
		"admin-token": {ID: "jti-2", UserID: 1, Role: "admin"},
	}
	authenticator := middleware.Authenticator(verifier, nil)

	h := NewHandler(f.svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r, authenticator, nil)
	h.RegisterAdminRoutes(r, authenticator, middleware.RequireAdmin)
	return r
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHandlerDeleteMe(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, body := do(t, newTestRouter(f), http.MethodPost, "/users/me/delete", "user-token",
			`{"password":"correct horse battery","delete_sounds":true}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "tr", data["status"])
		assert.Equal(t, "DELETION_TRIGGERED", data["status_label"])
		assert.Equal(t, true, data["queued"])
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, body := do(t, newTestRouter(f), http.MethodPost, "/users/me/delete", "user-token",
			`{"password":"nope"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errBody := body["error"].(map[string]any)
		fields := errBody["fields"].(map[string]any)
		assert.Equal(t, "Incorrect password.", fields["password"])
	})

	t.Run("missing password", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/users/me/delete", "user-token", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/users/me/delete", "",
			`{"password":"correct horse battery"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandlerAdminDelete(t *testing.T) {
	t.Run("spammer deletion completes inline", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, body := do(t, newTestRouter(f), http.MethodPost, "/admin/users/10/delete", "admin-token",
			`{"action":"full_delete_spammer"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, false, data["queued"])
		require.Contains(t, data, "deleted_user")
	})

	t.Run("queued action", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/admin/users/10/delete", "admin-token",
			`{"action":"delete_keep_content","reason":"requested by email"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/admin/users/10/delete", "user-token",
			`{"action":"delete_keep_content"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown action fails validation", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/admin/users/10/delete", "admin-token",
			`{"action":"nuke"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("self target", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/admin/users/1/delete", "admin-token",
			`{"action":"delete_keep_content"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing target", func(t *testing.T) {
		f := newServiceFixture(t, true)
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/admin/users/404/delete", "admin-token",
			`{"action":"delete_keep_content"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("already deleted account conflicts", func(t *testing.T) {
		f := newServiceFixture(t, true)
		f.accounts.accounts[10].IsAnonymized = true
		rec, _ := do(t, newTestRouter(f), http.MethodPost, "/users/me/delete", "user-token",
			`{"password":"correct horse battery"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
