package overview

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires the read-only overview endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers overview routes. Open to every authenticated role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/overview", h.handleSnapshot)
	r.Get("/search", h.handleSearch)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	snapshot, err := h.service.Snapshot(r.Context(), actor, r.URL.Query().Get("range"))
	if err != nil {
		h.logger.Error("overview snapshot", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	results, err := h.service.Search(r.Context(), actor, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, results)
}
