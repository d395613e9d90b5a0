package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one projects transaction may perform.
type TxRepository interface {
	InsertProject(ctx context.Context, p Project) error
	UpdateProject(ctx context.Context, p Project) error
	InsertTask(ctx context.Context, t Task) error
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the projects module.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertProject(ctx context.Context, p Project) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO projects
			(id, org_id, name, description, status, owner_id, start_date, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrgID, p.Name, p.Description, p.Status, p.OwnerID, p.StartDate, p.DueDate, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateProject(ctx context.Context, p Project) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE projects
		SET name = $3, description = $4, status = $5, start_date = $6, due_date = $7
		WHERE org_id = $1 AND id = $2`,
		p.OrgID, p.ID, p.Name, p.Description, p.Status, p.StartDate, p.DueDate,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertTask(ctx context.Context, task Task) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO tasks (id, project_id, title, status, assignee_id, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.ProjectID, task.Title, task.Status, task.AssigneeID, task.DueDate, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE tasks SET status = $2 WHERE id = $1`, taskID, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetProject(ctx context.Context, orgID, id uuid.UUID) (Project, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, description, status, owner_id, start_date, due_date, created_at
		FROM projects
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	var p Project
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Status, &p.OwnerID, &p.StartDate, &p.DueDate, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProjects(ctx context.Context, orgID uuid.UUID, status ProjectStatus) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, description, status, owner_id, start_date, due_date, created_at
		FROM projects
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		orgID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Status, &p.OwnerID, &p.StartDate, &p.DueDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListTasks(ctx context.Context, orgID, projectID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.project_id, t.title, t.status, t.assignee_id, t.due_date, t.created_at
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.org_id = $1 AND t.project_id = $2
		ORDER BY t.created_at`,
		orgID, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.AssigneeID, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
