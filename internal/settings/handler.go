package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the settings module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers branch management routes. Reads are open to every
// authenticated role; writes need settings management.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/branches", h.handleListBranches)
	r.Get("/branches/{id}", h.handleGetBranch)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionSettingsManage))
		r.Post("/branches", h.handleCreateBranch)
	})
}

type createBranchRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Code    string `json:"code" validate:"required,min=2,max=24"`
	Address string `json:"address" validate:"max=255"`
}

func (h *Handler) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createBranchRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	branch, err := h.service.CreateBranch(r.Context(), actor, CreateBranchInput{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
	})
	if err != nil {
		h.logger.Error("create branch", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, branch)
}

func (h *Handler) handleListBranches(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	branches, err := h.service.ListBranches(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branches)
}

func (h *Handler) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
		return
	}
	branch, err := h.service.GetBranch(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}
