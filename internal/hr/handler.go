package hr

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the HR module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HR routes. Attendance endpoints are open to any
// actor in the org; managing employee records needs the HR role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/employees", h.handleListEmployees)
	r.Get("/employees/{id}", h.handleGetEmployee)
	r.Get("/employees/{id}/attendance", h.handleListAttendance)
	r.Post("/employees/{id}/check-in", h.handleCheckIn)
	r.Post("/employees/{id}/check-out", h.handleCheckOut)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionHRWrite))
		r.Post("/employees", h.handleCreateEmployee)
		r.Put("/employees/{id}", h.handleUpdateEmployee)
	})
}

type employeeRequest struct {
	BranchID string `json:"branchId" validate:"omitempty,uuid"`
	UserID   string `json:"userId" validate:"omitempty,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
	Position string `json:"position" validate:"max=128"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"max=32"`
	HiredAt  string `json:"hiredAt" validate:"omitempty,datetime=2006-01-02"`
	Active   *bool  `json:"active"`
}

type checkInRequest struct {
	Note string `json:"note" validate:"max=255"`
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req employeeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := EmployeeInput{
		Name:     req.Name,
		Position: req.Position,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	if req.BranchID != "" {
		id, err := uuid.Parse(req.BranchID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
			return
		}
		in.BranchID = &id
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid user id")
			return
		}
		in.UserID = &id
	}
	if req.HiredAt != "" {
		hired, err := time.Parse("2006-01-02", req.HiredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid hire date")
			return
		}
		in.HiredAt = &hired
	}
	employee, err := h.service.CreateEmployee(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("create employee", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employee)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid employee id")
		return
	}
	var req employeeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := UpdateEmployeeInput{
		Name:     req.Name,
		Position: req.Position,
		Email:    req.Email,
		Phone:    req.Phone,
		Active:   true,
	}
	if req.Active != nil {
		in.Active = *req.Active
	}
	if req.BranchID != "" {
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
			return
		}
		in.BranchID = &branchID
	}
	employee, err := h.service.UpdateEmployee(r.Context(), actor, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	employeeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid employee id")
		return
	}
	var req checkInRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	attendance, err := h.service.CheckIn(r.Context(), actor, employeeID, req.Note)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, attendance)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	employeeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid employee id")
		return
	}
	attendance, err := h.service.CheckOut(r.Context(), actor, employeeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, attendance)
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	employees, err := h.service.ListEmployees(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employees)
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid employee id")
		return
	}
	employee, err := h.service.GetEmployee(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	employeeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid employee id")
		return
	}
	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid from date")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid to date")
			return
		}
	}
	attendance, err := h.service.ListAttendance(r.Context(), actor, employeeID, from, to)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, attendance)
}
