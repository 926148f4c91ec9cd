// AngelaMos | 2026
// handler.go

package deletion

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/ledger"
	"github.com/angelamos/soundshare/internal/middleware"
)

type SelfDeleteRequest struct {
	Password     string `json:"password"      validate:"required,max=128"`
	DeleteSounds bool   `json:"delete_sounds"`
}

type AdminDeleteRequest struct {
	Action Action `json:"action" validate:"required,oneof=delete_keep_content delete_including_content full_delete_spammer"`
	Reason string `json:"reason" validate:"max=500"`
}

type DeletionResponse struct {
	RequestID   int64        `json:"request_id"`
	Status      string       `json:"status"`
	StatusLabel string       `json:"status_label"`
	Queued      bool         `json:"queued"`
	Failed      bool         `json:"dispatch_failed,omitempty"`
	DeletedUser *DeletedUser `json:"deleted_user,omitempty"`
}

func toDeletionResponse(o *Outcome) DeletionResponse {
	status := o.Request.Status
	if o.DeletedUser != nil {
		status = ledger.StatusUserWasDeleted
	}

	return DeletionResponse{
		RequestID:   o.Request.ID,
		Status:      string(status),
		StatusLabel: status.Label(),
		Queued:      o.Queued,
		Failed:      o.Failed,
		DeletedUser: o.DeletedUser,
	}
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes adds the self-service endpoint. limiter may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		if limiter != nil {
			r.Use(limiter)
		}

		r.Post("/users/me/delete", h.DeleteMe)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/admin/users/{userID}/delete", h.AdminDelete)
	})
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		core.Unauthorized(w, "")
		return
	}

	var req SelfDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.RequestSelfDeletion(
		r.Context(),
		userID,
		req.Password,
		req.DeleteSounds,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Accepted(w, toDeletionResponse(outcome))
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		core.BadRequest(w, "invalid user id")
		return
	}

	var req AdminDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.AdminDelete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		targetID,
		req.Action,
		req.Reason,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if outcome.Queued || outcome.Failed {
		core.Accepted(w, toDeletionResponse(outcome))
		return
	}

	core.OK(w, toDeletionResponse(outcome))
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
	case errors.Is(err, ErrAlreadyDeleted):
		core.JSONError(w, core.ConflictError("account already deleted"))
	case errors.Is(err, ErrSelfTarget), errors.Is(err, ErrInvalidAction):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	default:
		core.InternalServerError(w, err)
	}
}
