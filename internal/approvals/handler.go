package approvals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the approvals module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the approvals handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionApprovalDecide))
		r.Get("/", h.handleListPending)
		r.Patch("/{id}", h.handleDecide)
	})
}

type decideRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Note     string `json:"note" validate:"max=255"`
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	pending, err := h.service.ListPending(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pending)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	approvalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid approval id")
		return
	}
	var req decideRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	decided, err := h.service.Decide(r.Context(), actor, DecideInput{
		ApprovalID: approvalID,
		Decision:   Status(req.Decision),
		Note:       req.Note,
	})
	if err != nil {
		h.logger.Error("decide approval", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decided)
}
