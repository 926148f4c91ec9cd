// AngelaMos | 2026
// handler.go

package sameuser

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/soundshare/internal/core"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

type LinkResponse struct {
	ID                 int64     `json:"id"`
	MainUserID         int64     `json:"main_user_id"`
	MainOrigEmail      string    `json:"main_orig_email"`
	SecondaryUserID    int64     `json:"secondary_user_id"`
	SecondaryOrigEmail string    `json:"secondary_orig_email"`
	CreatedAt          time.Time `json:"created_at"`
}

func toLinkResponseList(links []Link) []LinkResponse {
	out := make([]LinkResponse, len(links))
	for i, l := range links {
		out[i] = LinkResponse{
			ID:                 l.ID,
			MainUserID:         l.MainUserID,
			MainOrigEmail:      l.MainOrigEmail,
			SecondaryUserID:    l.SecondaryUserID,
			SecondaryOrigEmail: l.SecondaryOrigEmail,
			CreatedAt:          l.CreatedAt,
		}
	}
	return out
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/same-users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Get("/{userID}", h.ListForAccount)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	links, total, err := h.resolver.ListLinks(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, toLinkResponseList(links), page, pageSize, total)
}

func (h *Handler) ListForAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return
	}

	links, err := h.resolver.LinksFor(r.Context(), id)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toLinkResponseList(links))
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
