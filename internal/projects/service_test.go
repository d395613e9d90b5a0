package projects

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	projects map[uuid.UUID]Project
	tasks    map[uuid.UUID]Task
	audits   []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{projects: map[uuid.UUID]Project{}, tasks: map[uuid.UUID]Task{}}
}

type memoryTx struct {
	repo     *memoryRepo
	projects map[uuid.UUID]Project
	tasks    map[uuid.UUID]Task
	audits   []shared.AuditLog
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, projects: map[uuid.UUID]Project{}, tasks: map[uuid.UUID]Task{}}
	for k, v := range r.projects {
		tx.projects[k] = v
	}
	for k, v := range r.tasks {
		tx.tasks[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.projects = tx.projects
	r.tasks = tx.tasks
	r.audits = append(r.audits, tx.audits...)
	return nil
}

func (r *memoryRepo) GetProject(ctx context.Context, orgID, id uuid.UUID) (Project, error) {
	p, ok := r.projects[id]
	if !ok || p.OrgID != orgID {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProjects(ctx context.Context, orgID uuid.UUID, status ProjectStatus) ([]Project, error) {
	var out []Project
	for _, p := range r.projects {
		if p.OrgID == orgID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListTasks(ctx context.Context, orgID, projectID uuid.UUID) ([]Task, error) {
	var out []Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertProject(ctx context.Context, p Project) error {
	tx.projects[p.ID] = p
	return nil
}

func (tx *memoryTx) UpdateProject(ctx context.Context, p Project) error {
	if _, ok := tx.projects[p.ID]; !ok {
		return ErrNotFound
	}
	tx.projects[p.ID] = p
	return nil
}

func (tx *memoryTx) InsertTask(ctx context.Context, t Task) error {
	tx.tasks[t.ID] = t
	return nil
}

func (tx *memoryTx) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus) error {
	t, ok := tx.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	tx.tasks[taskID] = t
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.audits = append(tx.audits, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProjectAndTaskLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleStaff}

	project, err := svc.CreateProject(context.Background(), actor, ProjectInput{Name: "Warehouse revamp"})
	require.NoError(t, err)
	require.Equal(t, ProjectStatusActive, project.Status)
	require.Equal(t, actor.UserID, project.OwnerID)

	task, err := svc.CreateTask(context.Background(), actor, project.ID, TaskInput{Title: "Shelf layout"})
	require.NoError(t, err)
	require.Equal(t, TaskStatusTodo, task.Status)

	require.NoError(t, svc.UpdateTaskStatus(context.Background(), actor, project.ID, task.ID, TaskStatusDone))
	require.Equal(t, TaskStatusDone, repo.tasks[task.ID].Status)

	err = svc.UpdateTaskStatus(context.Background(), actor, project.ID, task.ID, TaskStatus("WAITING"))
	require.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.UpdateProject(context.Background(), actor, project.ID, UpdateProjectInput{
		Name:   project.Name,
		Status: ProjectStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, ProjectStatusCompleted, updated.Status)
}

func TestProjectAccessControl(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	viewer := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleViewer}

	_, err := svc.CreateProject(context.Background(), viewer, ProjectInput{Name: "Nope"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	staff := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleStaff}
	project, err := svc.CreateProject(context.Background(), staff, ProjectInput{Name: "Internal"})
	require.NoError(t, err)

	// other org cannot attach tasks
	other := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleStaff}
	_, err = svc.CreateTask(context.Background(), other, project.ID, TaskInput{Title: "Sneaky"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
