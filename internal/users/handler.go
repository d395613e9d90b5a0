package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the users module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users/password", h.handleChangePassword)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionSettingsManage))
		r.Get("/users", h.handleListUsers)
		r.Get("/users/{id}", h.handleGetUser)
		r.Post("/users", h.handleCreateUser)
		r.Put("/users/{id}", h.handleUpdateUser)
	})
}

type createUserRequest struct {
	BranchID string `json:"branchId" validate:"omitempty,uuid"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,oneof=SUPER_ADMIN ORG_ADMIN MANAGER STAFF VIEWER"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type updateUserRequest struct {
	BranchID string `json:"branchId" validate:"omitempty,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,oneof=SUPER_ADMIN ORG_ADMIN MANAGER STAFF VIEWER"`
	Active   bool   `json:"active"`
}

type changePasswordRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required,min=8,max=128"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createUserRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     rbac.Role(req.Role),
		Password: req.Password,
	}
	if req.BranchID != "" {
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
			return
		}
		in.BranchID = &branchID
	}
	user, err := h.service.CreateUser(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid user id")
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := UpdateUserInput{
		Name:   req.Name,
		Role:   rbac.Role(req.Role),
		Active: req.Active,
	}
	if req.BranchID != "" {
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
			return
		}
		in.BranchID = &branchID
	}
	user, err := h.service.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req changePasswordRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), actor, req.Current, req.Next); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	list, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid user id")
		return
	}
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
