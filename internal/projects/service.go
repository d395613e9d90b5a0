package projects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the projects service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetProject(ctx context.Context, orgID, id uuid.UUID) (Project, error)
	ListProjects(ctx context.Context, orgID uuid.UUID, status ProjectStatus) ([]Project, error)
	ListTasks(ctx context.Context, orgID, projectID uuid.UUID) ([]Task, error)
}

// Service implements project and task tracking.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type ProjectInput struct {
	Name        string
	Description string
	StartDate   *time.Time
	DueDate     *time.Time
}

func (s *Service) CreateProject(ctx context.Context, actor rbac.Actor, in ProjectInput) (Project, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProjectsWrite) {
		return Project{}, fmt.Errorf("create project: %w", shared.ErrForbidden)
	}
	if in.Name == "" {
		return Project{}, fmt.Errorf("project name is required: %w", ErrValidation)
	}

	project := Project{
		ID:          uuid.New(),
		OrgID:       actor.OrgID,
		Name:        in.Name,
		Description: in.Description,
		Status:      ProjectStatusActive,
		OwnerID:     actor.UserID,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		CreatedAt:   s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "PROJECT",
			EntityID: project.ID.String(),
			Details:  map[string]any{"name": project.Name},
			At:       project.CreatedAt,
		})
	})
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

type UpdateProjectInput struct {
	Name        string
	Description string
	Status      ProjectStatus
	StartDate   *time.Time
	DueDate     *time.Time
}

func (s *Service) UpdateProject(ctx context.Context, actor rbac.Actor, id uuid.UUID, in UpdateProjectInput) (Project, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProjectsWrite) {
		return Project{}, fmt.Errorf("update project: %w", shared.ErrForbidden)
	}
	if !in.Status.Valid() {
		return Project{}, fmt.Errorf("unknown project status %q: %w", in.Status, ErrValidation)
	}

	project, err := s.repo.GetProject(ctx, actor.OrgID, id)
	if err != nil {
		return Project{}, err
	}
	from := project.Status
	project.Name = in.Name
	project.Description = in.Description
	project.Status = in.Status
	project.StartDate = in.StartDate
	project.DueDate = in.DueDate

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProject(ctx, project); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "UPDATE",
			Entity:   "PROJECT",
			EntityID: project.ID.String(),
			Details:  map[string]any{"from": string(from), "to": string(project.Status)},
			At:       s.now().UTC(),
		})
	})
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

type TaskInput struct {
	Title      string
	AssigneeID *uuid.UUID
	DueDate    *time.Time
}

func (s *Service) CreateTask(ctx context.Context, actor rbac.Actor, projectID uuid.UUID, in TaskInput) (Task, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProjectsWrite) {
		return Task{}, fmt.Errorf("create task: %w", shared.ErrForbidden)
	}
	if in.Title == "" {
		return Task{}, fmt.Errorf("task title is required: %w", ErrValidation)
	}

	project, err := s.repo.GetProject(ctx, actor.OrgID, projectID)
	if err != nil {
		return Task{}, err
	}

	task := Task{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Title:      in.Title,
		Status:     TaskStatusTodo,
		AssigneeID: in.AssigneeID,
		DueDate:    in.DueDate,
		CreatedAt:  s.now().UTC(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "TASK",
			EntityID: task.ID.String(),
			Details:  map[string]any{"project": project.Name, "title": task.Title},
			At:       task.CreatedAt,
		})
	})
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Service) UpdateTaskStatus(ctx context.Context, actor rbac.Actor, projectID, taskID uuid.UUID, status TaskStatus) error {
	if !rbac.Allowed(actor.Role, rbac.ActionProjectsWrite) {
		return fmt.Errorf("update task: %w", shared.ErrForbidden)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown task status %q: %w", status, ErrValidation)
	}
	if _, err := s.repo.GetProject(ctx, actor.OrgID, projectID); err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateTaskStatus(ctx, taskID, status); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "STATUS_CHANGE",
			Entity:   "TASK",
			EntityID: taskID.String(),
			Details:  map[string]any{"to": string(status)},
			At:       s.now().UTC(),
		})
	})
}

func (s *Service) GetProject(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Project, error) {
	return s.repo.GetProject(ctx, actor.OrgID, id)
}

func (s *Service) ListProjects(ctx context.Context, actor rbac.Actor, status ProjectStatus) ([]Project, error) {
	return s.repo.ListProjects(ctx, actor.OrgID, status)
}

func (s *Service) ListTasks(ctx context.Context, actor rbac.Actor, projectID uuid.UUID) ([]Task, error) {
	return s.repo.ListTasks(ctx, actor.OrgID, projectID)
}
