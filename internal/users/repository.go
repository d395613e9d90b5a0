package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one users transaction may perform.
type TxRepository interface {
	InsertUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, u User) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the users module.
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

func (t *txRepo) InsertUser(ctx context.Context, u User) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (id, org_id, branch_id, email, name, role, password_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.OrgID, u.BranchID, u.Email, u.Name, u.Role, u.PasswordHash, u.Active, u.CreatedAt,
	)
	if err != nil {
		// unique (org_id, email)
		if shared.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateUser(ctx context.Context, u User) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users
		SET branch_id = $3, name = $4, role = $5, active = $6
		WHERE org_id = $1 AND id = $2`,
		u.OrgID, u.ID, u.BranchID, u.Name, u.Role, u.Active,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
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

func (r *Repository) GetUser(ctx context.Context, orgID, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, email, name, role, password_hash, active, created_at
		FROM users
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	return scanUser(row)
}

func (r *Repository) GetUserByEmail(ctx context.Context, orgID uuid.UUID, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, email, name, role, password_hash, active, created_at
		FROM users
		WHERE org_id = $1 AND email = $2`,
		orgID, email,
	)
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context, orgID uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, email, name, role, password_hash, active, created_at
		FROM users
		WHERE org_id = $1
		ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OrgID, &u.BranchID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
