// AngelaMos | 2026
// handler.go

package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
		r.Put("/me/username", h.ChangeMyUsername)
		r.Put("/me/email", h.ChangeMyEmail)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	account, err := h.service.GetAccount(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) ChangeMyUsername(w http.ResponseWriter, r *http.Request) {
	h.changeUsername(w, r, middleware.GetUserID(r.Context()), EditSelf)
}

func (h *Handler) ChangeMyEmail(w http.ResponseWriter, r *http.Request) {
	h.changeEmail(w, r, middleware.GetUserID(r.Context()))
}

// RegisterAdminRoutes registers admin-only account management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListAccounts)
		r.Get("/{userID}", h.GetAccount)
		r.Put("/{userID}/username", h.ChangeUsername)
		r.Put("/{userID}/email", h.ChangeEmail)
		r.Put("/{userID}/role", h.UpdateRole)
		r.Get("/{userID}/old-usernames", h.ListOldUsernames)
		r.Post("/{userID}/recompute-counters", h.RecomputeCounters)
	})
}

// ListAccounts returns a paginated list of accounts with optional filtering.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params := ListAccountsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("anonymized"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			params.Anonymized = &b
		}
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(
		w,
		ToAccountResponseList(accounts),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

// ChangeUsername renames an account without the self-service limit.
func (h *Handler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	h.changeUsername(w, r, id, EditAdmin)
}

func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	h.changeEmail(w, r, id)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) ListOldUsernames(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	names, err := h.service.OldUsernames(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToOldUsernameResponseList(names))
}

func (h *Handler) RecomputeCounters(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	counters, err := h.service.RecomputeCounters(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, counters)
}

func (h *Handler) changeUsername(
	w http.ResponseWriter,
	r *http.Request,
	id int64,
	mode EditMode,
) {
	var req ChangeUsernameRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.ChangeUsername(r.Context(), id, req.Username, mode)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) changeEmail(w http.ResponseWriter, r *http.Request, id int64) {
	var req ChangeEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.ChangeEmail(r.Context(), id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.JSONError(w, core.ValidationError(core.ValidationFields(err)))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsAppError(err):
		core.JSONError(w, err)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
