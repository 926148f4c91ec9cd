// AngelaMos | 2026
// handler.go

package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/soundshare/internal/core"
)

type Handler struct {
	service    *Service
	staleAfter time.Duration
}

func NewHandler(service *Service, staleAfter time.Duration) *Handler {
	return &Handler{
		service:    service,
		staleAfter: staleAfter,
	}
}

type StatusChangeResponse struct {
	Status string    `json:"status"`
	Label  string    `json:"label"`
	At     time.Time `json:"at"`
}

type RequestResponse struct {
	ID            int64                  `json:"id"`
	UserFromID    *int64                 `json:"user_from_id"`
	UserToID      *int64                 `json:"user_to_id"`
	UsernameFrom  string                 `json:"username_from"`
	UsernameTo    string                 `json:"username_to"`
	Status        string                 `json:"status"`
	StatusLabel   string                 `json:"status_label"`
	StatusHistory []StatusChangeResponse `json:"status_history"`
	DeletedUserID *int64                 `json:"deleted_user_id"`
	Reason        string                 `json:"reason"`
	CreatedAt     time.Time              `json:"created_at"`
	LastUpdated   time.Time              `json:"last_updated"`
}

func ToRequestResponse(r *Request) RequestResponse {
	history := make([]StatusChangeResponse, len(r.StatusHistory))
	for i, c := range r.StatusHistory {
		history[i] = StatusChangeResponse{
			Status: string(c.Status),
			Label:  c.Status.Label(),
			At:     c.At,
		}
	}

	return RequestResponse{
		ID:            r.ID,
		UserFromID:    r.UserFromID,
		UserToID:      r.UserToID,
		UsernameFrom:  r.UsernameFrom,
		UsernameTo:    r.UsernameTo,
		Status:        string(r.Status),
		StatusLabel:   r.Status.Label(),
		StatusHistory: history,
		DeletedUserID: r.DeletedUserID,
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
		LastUpdated:   r.LastUpdated,
	}
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/deletion-requests", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Post("/reconcile", h.Reconcile)
		r.Get("/{requestID}", h.Get)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := ListParams{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
		Status:   Status(q.Get("status")),
	}
	if params.Status != "" && !params.Status.Valid() {
		core.BadRequest(w, "invalid status")
		return
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			core.BadRequest(w, "invalid user id")
			return
		}
		params.UserToID = id
	}

	reqs, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]RequestResponse, len(reqs))
	for i := range reqs {
		out[i] = ToRequestResponse(&reqs[i])
	}

	params.Normalize()
	core.Paginated(w, out, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid request id")
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "deletion request")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToRequestResponse(req))
}

// Reconcile runs one sweep on demand. older_than overrides the configured
// staleness threshold.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	olderThan := h.staleAfter
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			core.BadRequest(w, "invalid older_than duration")
			return
		}
		olderThan = d
	}

	report, err := h.service.FindUnprocessed(r.Context(), olderThan)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, report)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
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
