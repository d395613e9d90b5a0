package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Insert creates a PENDING approval inside the caller's transaction.
// Submitting state machines call this so the request commits atomically
// with the SUBMITTED transition; they guarantee at most one PENDING
// approval per (entityType, entityID).
func Insert(ctx context.Context, tx pgx.Tx, a Approval) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.RequestedAt.IsZero() {
		a.RequestedAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `INSERT INTO approvals (id, org_id, branch_id, entity_type, entity_id, purchase_request_id, status, requested_by, requested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OrgID, a.BranchID, string(a.EntityType), a.EntityID, a.PurchaseRequestID, string(a.Status), a.RequestedBy, a.RequestedAt)
	return err
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Approval, error)
	SetDecision(ctx context.Context, id uuid.UUID, status Status, approverID uuid.UUID, note string, at time.Time) error
	SetPurchaseRequestDecision(ctx context.Context, prID uuid.UUID, approved bool, at time.Time) error
	SetExpenseDecision(ctx context.Context, expenseID uuid.UUID, approved bool, approverID uuid.UUID) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (t *txRepo) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Approval, error) {
	var a Approval
	var entityType, status string
	err := t.tx.QueryRow(ctx, `SELECT id, org_id, branch_id, entity_type, entity_id, purchase_request_id, status, requested_by, approver_id, COALESCE(note, ''), requested_at, acted_at
FROM approvals WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id).
		Scan(&a.ID, &a.OrgID, &a.BranchID, &entityType, &a.EntityID, &a.PurchaseRequestID, &status, &a.RequestedBy, &a.ApproverID, &a.Note, &a.RequestedAt, &a.ActedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrNotFound
		}
		return Approval{}, err
	}
	a.EntityType = EntityType(entityType)
	a.Status = Status(status)
	return a, nil
}

func (t *txRepo) SetDecision(ctx context.Context, id uuid.UUID, status Status, approverID uuid.UUID, note string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE approvals SET status=$2, approver_id=$3, note=NULLIF($4, ''), acted_at=$5 WHERE id=$1`,
		id, string(status), approverID, note, at)
	return err
}

func (t *txRepo) SetPurchaseRequestDecision(ctx context.Context, prID uuid.UUID, approved bool, at time.Time) error {
	var err error
	if approved {
		_, err = t.tx.Exec(ctx, `UPDATE purchase_requests SET status='APPROVED', approved_at=$2 WHERE id=$1`, prID, at)
	} else {
		_, err = t.tx.Exec(ctx, `UPDATE purchase_requests SET status='REJECTED', rejected_at=$2 WHERE id=$1`, prID, at)
	}
	return err
}

func (t *txRepo) SetExpenseDecision(ctx context.Context, expenseID uuid.UUID, approved bool, approverID uuid.UUID) error {
	status := "APPROVED"
	if !approved {
		status = "REJECTED"
	}
	_, err := t.tx.Exec(ctx, `UPDATE expenses SET status=$2, approved_by=$3 WHERE id=$1`, expenseID, status, approverID)
	return err
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// ListPending returns the organization's pending approvals, newest first.
func (r *Repository) ListPending(ctx context.Context, orgID uuid.UUID) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, branch_id, entity_type, entity_id, purchase_request_id, status, requested_by, approver_id, COALESCE(note, ''), requested_at, acted_at
FROM approvals WHERE org_id=$1 AND status='PENDING' ORDER BY requested_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var approvals []Approval
	for rows.Next() {
		var a Approval
		var entityType, status string
		if err := rows.Scan(&a.ID, &a.OrgID, &a.BranchID, &entityType, &a.EntityID, &a.PurchaseRequestID, &status, &a.RequestedBy, &a.ApproverID, &a.Note, &a.RequestedAt, &a.ActedAt); err != nil {
			return nil, err
		}
		a.EntityType = EntityType(entityType)
		a.Status = Status(status)
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
