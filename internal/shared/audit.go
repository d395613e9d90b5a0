package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	OrgID    uuid.UUID
	BranchID *uuid.UUID
	ActorID  *uuid.UUID
	Action   string
	Entity   string
	EntityID string
	Details  map[string]any
	At       time.Time
}

const insertAuditSQL = `INSERT INTO audit_logs (org_id, branch_id, actor_id, action, entity, entity_id, details, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8::timestamptz, '0001-01-01'::timestamptz), NOW()))`

// AuditLogger writes records into audit_logs outside a transaction. Use
// RecordAuditTx for writes that must commit atomically with a mutation.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if err := validateAudit(log); err != nil {
		return err
	}
	details, err := json.Marshal(log.Details)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, insertAuditSQL,
		log.OrgID, log.BranchID, log.ActorID, log.Action, log.Entity, log.EntityID, details, log.At)
	return err
}

// RecordAuditTx writes an audit row inside the caller's transaction so the
// trail commits or rolls back together with the mutation it documents.
func RecordAuditTx(ctx context.Context, tx pgx.Tx, log AuditLog) error {
	if err := validateAudit(log); err != nil {
		return err
	}
	details, err := json.Marshal(log.Details)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertAuditSQL,
		log.OrgID, log.BranchID, log.ActorID, log.Action, log.Entity, log.EntityID, details, log.At)
	return err
}

func validateAudit(log AuditLog) error {
	if log.OrgID == uuid.Nil {
		return errors.New("audit log requires org id")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}
