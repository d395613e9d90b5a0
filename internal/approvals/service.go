package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPending(ctx context.Context, orgID uuid.UUID) ([]Approval, error)
}

// Service resolves pending approvals.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the approval service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// DecideInput carries one approval decision.
type DecideInput struct {
	ApprovalID uuid.UUID
	Decision   Status
	Note       string
}

// Decide resolves a pending approval exactly once and dispatches the
// entity-specific follow-up (purchase request or expense transition) plus
// the audit row, all in a single transaction. The status guard is
// re-checked against the row read inside the transaction, so two
// concurrent decisions cannot both win.
func (s *Service) Decide(ctx context.Context, actor rbac.Actor, input DecideInput) (Approval, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionApprovalDecide) {
		return Approval{}, shared.ErrForbidden
	}
	if input.Decision != StatusApproved && input.Decision != StatusRejected {
		return Approval{}, fmt.Errorf("%w: %q", ErrInvalidDecision, input.Decision)
	}
	now := s.now().UTC()
	var decided Approval
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		approval, err := tx.GetForUpdate(ctx, actor.OrgID, input.ApprovalID)
		if err != nil {
			return err
		}
		if approval.Status != StatusPending {
			return ErrAlreadyDecided
		}
		if err := tx.SetDecision(ctx, approval.ID, input.Decision, actor.UserID, input.Note, now); err != nil {
			return err
		}
		approved := input.Decision == StatusApproved
		switch approval.EntityType {
		case EntityPurchaseRequest:
			target := approval.EntityID
			if approval.PurchaseRequestID != nil {
				target = *approval.PurchaseRequestID
			}
			if err := tx.SetPurchaseRequestDecision(ctx, target, approved, now); err != nil {
				return err
			}
		case EntityExpense:
			if err := tx.SetExpenseDecision(ctx, approval.EntityID, approved, actor.UserID); err != nil {
				return err
			}
		}
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: approval.BranchID,
			ActorID:  &actor.UserID,
			Action:   string(input.Decision),
			Entity:   string(approval.EntityType),
			EntityID: approval.EntityID.String(),
			Details: map[string]any{
				"from": string(StatusPending),
				"to":   string(input.Decision),
				"note": input.Note,
			},
		}); err != nil {
			return err
		}
		decided = approval
		decided.Status = input.Decision
		decided.ApproverID = &actor.UserID
		decided.Note = input.Note
		decided.ActedAt = &now
		return nil
	})
	if err != nil {
		return Approval{}, err
	}
	return decided, nil
}

// ListPending returns pending approvals for the org.
func (s *Service) ListPending(ctx context.Context, actor rbac.Actor) ([]Approval, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionApprovalDecide) {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListPending(ctx, actor.OrgID)
}
