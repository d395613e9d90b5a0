package projects

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Project lifecycle statuses.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
)

// Task statuses.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Project is an org-scoped workstream with tasks.
type Project struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Name        string
	Description string
	Status      ProjectStatus
	OwnerID     uuid.UUID
	StartDate   *time.Time
	DueDate     *time.Time
	CreatedAt   time.Time
}

// Task is a unit of work inside a project.
type Task struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Title      string
	Status     TaskStatus
	AssigneeID *uuid.UUID
	DueDate    *time.Time
	CreatedAt  time.Time
}

var (
	// ErrNotFound indicates a missing or out-of-org record.
	ErrNotFound = fmt.Errorf("projects: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("projects: %w", shared.ErrValidation)
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted:
		return true
	}
	return false
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}
