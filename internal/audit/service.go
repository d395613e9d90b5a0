// Package audit exposes the read side of the audit trail: a filterable
// timeline over audit_logs and a CSV export for compliance reviews.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Entry is one audit trail row as read back from storage.
type Entry struct {
	ID         int64
	OrgID      uuid.UUID
	BranchID   *uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	Entity     string
	EntityID   string
	Details    map[string]any
	OccurredAt time.Time
}

// Filter narrows the timeline. Zero values mean "no constraint".
type Filter struct {
	Entity   string
	EntityID string
	Action   string
	ActorID  *uuid.UUID
	From     time.Time
	To       time.Time
	Limit    int
}

const defaultTimelineLimit = 100

// RepositoryPort abstracts audit trail reads.
type RepositoryPort interface {
	Timeline(ctx context.Context, orgID uuid.UUID, f Filter) ([]Entry, error)
}

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Timeline(ctx context.Context, orgID uuid.UUID, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultTimelineLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, actor_id, action, entity, entity_id, details, occurred_at
		FROM audit_logs
		WHERE org_id = $1
		  AND ($2 = '' OR entity = $2)
		  AND ($3 = '' OR entity_id = $3)
		  AND ($4 = '' OR action = $4)
		  AND ($5::uuid IS NULL OR actor_id = $5)
		  AND ($6::timestamptz IS NULL OR occurred_at >= $6)
		  AND ($7::timestamptz IS NULL OR occurred_at <= $7)
		ORDER BY occurred_at DESC, id DESC
		LIMIT $8`,
		orgID, f.Entity, f.EntityID, f.Action, f.ActorID, nullTime(f.From), nullTime(f.To), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit timeline: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.OrgID, &e.BranchID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &details, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Service gates audit reads behind the audit-view role.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Timeline(ctx context.Context, actor rbac.Actor, f Filter) ([]Entry, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionAuditView) {
		return nil, fmt.Errorf("audit timeline: %w", shared.ErrForbidden)
	}
	return s.repo.Timeline(ctx, actor.OrgID, f)
}
