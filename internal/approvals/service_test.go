package approvals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	approvals map[uuid.UUID]*Approval
	prStatus  map[uuid.UUID]string
	expStatus map[uuid.UUID]string
	audits    []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		approvals: map[uuid.UUID]*Approval{},
		prStatus:  map[uuid.UUID]string{},
		expStatus: map[uuid.UUID]string{},
	}
}

type memoryTx struct{ repo *memoryRepo }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListPending(ctx context.Context, orgID uuid.UUID) ([]Approval, error) {
	var out []Approval
	for _, a := range r.approvals {
		if a.OrgID == orgID && a.Status == StatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Approval, error) {
	a, ok := tx.repo.approvals[id]
	if !ok || a.OrgID != orgID {
		return Approval{}, ErrNotFound
	}
	return *a, nil
}

func (tx *memoryTx) SetDecision(ctx context.Context, id uuid.UUID, status Status, approverID uuid.UUID, note string, at time.Time) error {
	a := tx.repo.approvals[id]
	a.Status = status
	a.ApproverID = &approverID
	a.Note = note
	a.ActedAt = &at
	return nil
}

func (tx *memoryTx) SetPurchaseRequestDecision(ctx context.Context, prID uuid.UUID, approved bool, at time.Time) error {
	if approved {
		tx.repo.prStatus[prID] = "APPROVED"
	} else {
		tx.repo.prStatus[prID] = "REJECTED"
	}
	return nil
}

func (tx *memoryTx) SetExpenseDecision(ctx context.Context, expenseID uuid.UUID, approved bool, approverID uuid.UUID) error {
	if approved {
		tx.repo.expStatus[expenseID] = "APPROVED"
	} else {
		tx.repo.expStatus[expenseID] = "REJECTED"
	}
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

func seedApproval(repo *memoryRepo, orgID uuid.UUID, entityType EntityType) Approval {
	entityID := uuid.New()
	a := Approval{
		ID:          uuid.New(),
		OrgID:       orgID,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      StatusPending,
		RequestedBy: uuid.New(),
		RequestedAt: time.Now(),
	}
	if entityType == EntityPurchaseRequest {
		a.PurchaseRequestID = &entityID
	}
	repo.approvals[a.ID] = &a
	return a
}

func manager(orgID uuid.UUID) rbac.Actor {
	return rbac.Actor{OrgID: orgID, UserID: uuid.New(), Role: rbac.RoleManager}
}

func TestDecideResolvesOnce(t *testing.T) {
	repo := newMemoryRepo()
	orgID := uuid.New()
	approval := seedApproval(repo, orgID, EntityPurchaseRequest)
	svc := NewService(repo, nil)
	ctx := context.Background()

	decided, err := svc.Decide(ctx, manager(orgID), DecideInput{ApprovalID: approval.ID, Decision: StatusApproved})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, "APPROVED", repo.prStatus[approval.EntityID])

	// Second decision must fail and leave the first outcome in place.
	_, err = svc.Decide(ctx, manager(orgID), DecideInput{ApprovalID: approval.ID, Decision: StatusRejected})
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, "APPROVED", repo.prStatus[approval.EntityID])
	require.Len(t, repo.audits, 1)
}

func TestDecideRejectDispatchesExpense(t *testing.T) {
	repo := newMemoryRepo()
	orgID := uuid.New()
	approval := seedApproval(repo, orgID, EntityExpense)
	svc := NewService(repo, nil)

	_, err := svc.Decide(context.Background(), manager(orgID), DecideInput{ApprovalID: approval.ID, Decision: StatusRejected, Note: "missing receipt"})
	require.NoError(t, err)
	require.Equal(t, "REJECTED", repo.expStatus[approval.EntityID])
	require.Len(t, repo.audits, 1)
	require.Equal(t, "REJECTED", repo.audits[0].Action)
	require.Equal(t, "EXPENSE", repo.audits[0].Entity)
}

func TestDecideAuthorization(t *testing.T) {
	repo := newMemoryRepo()
	orgID := uuid.New()
	approval := seedApproval(repo, orgID, EntityExpense)
	svc := NewService(repo, nil)
	ctx := context.Background()

	staff := rbac.Actor{OrgID: orgID, UserID: uuid.New(), Role: rbac.RoleStaff}
	_, err := svc.Decide(ctx, staff, DecideInput{ApprovalID: approval.ID, Decision: StatusApproved})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Org scope: a manager from another org must not see the approval.
	_, err = svc.Decide(ctx, manager(uuid.New()), DecideInput{ApprovalID: approval.ID, Decision: StatusApproved})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	repo := newMemoryRepo()
	orgID := uuid.New()
	approval := seedApproval(repo, orgID, EntityExpense)
	svc := NewService(repo, nil)

	_, err := svc.Decide(context.Background(), manager(orgID), DecideInput{ApprovalID: approval.ID, Decision: StatusPending})
	require.ErrorIs(t, err, shared.ErrValidation)
}
