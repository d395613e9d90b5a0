package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one settings transaction may perform.
type TxRepository interface {
	InsertBranch(ctx context.Context, b Branch) error
	SeedZeroStockLevels(ctx context.Context, orgID, branchID uuid.UUID) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the settings module.
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

func (t *txRepo) InsertBranch(ctx context.Context, b Branch) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO branches (id, org_id, name, code, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.OrgID, b.Name, b.Code, b.Address, b.CreatedAt,
	)
	if err != nil {
		// unique (org_id, code)
		if shared.IsUniqueViolation(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

// SeedZeroStockLevels gives the new branch a zero balance for every product
// the org already tracks, so reports and low-stock scans see it at once.
func (t *txRepo) SeedZeroStockLevels(ctx context.Context, orgID, branchID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_levels (org_id, branch_id, product_id, quantity, updated_at)
		SELECT org_id, $2, id, 0, NOW()
		FROM products
		WHERE org_id = $1
		ON CONFLICT (org_id, branch_id, product_id) DO NOTHING`,
		orgID, branchID,
	)
	if err != nil {
		return fmt.Errorf("seed stock levels: %w", err)
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetBranch(ctx context.Context, orgID, id uuid.UUID) (Branch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, code, address, created_at
		FROM branches
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	var b Branch
	err := row.Scan(&b.ID, &b.OrgID, &b.Name, &b.Code, &b.Address, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, ErrNotFound
	}
	if err != nil {
		return Branch{}, fmt.Errorf("get branch: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBranches(ctx context.Context, orgID uuid.UUID) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, code, address, created_at
		FROM branches
		WHERE org_id = $1
		ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.OrgID, &b.Name, &b.Code, &b.Address, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
