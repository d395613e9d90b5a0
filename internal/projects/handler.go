package projects

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the projects module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects", h.handleListProjects)
	r.Get("/projects/{id}", h.handleGetProject)
	r.Get("/projects/{id}/tasks", h.handleListTasks)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionProjectsWrite))
		r.Post("/projects", h.handleCreateProject)
		r.Put("/projects/{id}", h.handleUpdateProject)
		r.Post("/projects/{id}/tasks", h.handleCreateTask)
		r.Patch("/projects/{id}/tasks/{taskID}", h.handleUpdateTaskStatus)
	})
}

type projectRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1024"`
	Status      string `json:"status" validate:"omitempty,oneof=ACTIVE ON_HOLD COMPLETED"`
	StartDate   string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

type taskRequest struct {
	Title      string `json:"title" validate:"required,max=255"`
	AssigneeID string `json:"assigneeId" validate:"omitempty,uuid"`
	DueDate    string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE"`
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req projectRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid start date")
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid due date")
		return
	}
	project, err := h.service.CreateProject(r.Context(), actor, ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		DueDate:     due,
	})
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid project id")
		return
	}
	var req projectRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	status := ProjectStatus(req.Status)
	if req.Status == "" {
		status = ProjectStatusActive
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid start date")
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid due date")
		return
	}
	project, err := h.service.UpdateProject(r.Context(), actor, id, UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		StartDate:   start,
		DueDate:     due,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid project id")
		return
	}
	var req taskRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := TaskInput{Title: req.Title}
	if req.AssigneeID != "" {
		assignee, err := uuid.Parse(req.AssigneeID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid assignee id")
			return
		}
		in.AssigneeID = &assignee
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid due date")
		return
	}
	in.DueDate = due
	task, err := h.service.CreateTask(r.Context(), actor, projectID, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *Handler) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid project id")
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid task id")
		return
	}
	var req taskStatusRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	if err := h.service.UpdateTaskStatus(r.Context(), actor, projectID, taskID, TaskStatus(req.Status)); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := ProjectStatus(r.URL.Query().Get("status"))
	projects, err := h.service.ListProjects(r.Context(), actor, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid project id")
		return
	}
	project, err := h.service.GetProject(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid project id")
		return
	}
	tasks, err := h.service.ListTasks(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tasks)
}
