package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/approvals"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	expenses  map[uuid.UUID]Expense
	journals  map[uuid.UUID]JournalEntry
	lines     map[uuid.UUID][]JournalLine
	approvals []approvals.Approval
	counters  map[string]int64
	audits    []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		expenses: map[uuid.UUID]Expense{},
		journals: map[uuid.UUID]JournalEntry{},
		lines:    map[uuid.UUID][]JournalLine{},
		counters: map[string]int64{},
	}
}

type memoryTx struct {
	repo      *memoryRepo
	expenses  map[uuid.UUID]Expense
	journals  map[uuid.UUID]JournalEntry
	lines     map[uuid.UUID][]JournalLine
	counters  map[string]int64
	approvals []approvals.Approval
	audits    []shared.AuditLog
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:     r,
		expenses: map[uuid.UUID]Expense{},
		journals: map[uuid.UUID]JournalEntry{},
		lines:    map[uuid.UUID][]JournalLine{},
		counters: map[string]int64{},
	}
	for k, v := range r.expenses {
		tx.expenses[k] = v
	}
	for k, v := range r.journals {
		tx.journals[k] = v
	}
	for k, v := range r.lines {
		tx.lines[k] = append([]JournalLine(nil), v...)
	}
	for k, v := range r.counters {
		tx.counters[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.expenses = tx.expenses
	r.journals = tx.journals
	r.lines = tx.lines
	r.counters = tx.counters
	r.approvals = append(r.approvals, tx.approvals...)
	r.audits = append(r.audits, tx.audits...)
	return nil
}

func (r *memoryRepo) GetExpense(ctx context.Context, orgID, id uuid.UUID) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok || e.OrgID != orgID {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListExpenses(ctx context.Context, orgID uuid.UUID, status ExpenseStatus) ([]Expense, error) {
	var out []Expense
	for _, e := range r.expenses {
		if e.OrgID == orgID && (status == "" || e.Status == status) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetJournal(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, []JournalLine, error) {
	e, ok := r.journals[id]
	if !ok || e.OrgID != orgID {
		return JournalEntry{}, nil, ErrNotFound
	}
	return e, r.lines[id], nil
}

func (r *memoryRepo) ListJournals(ctx context.Context, orgID uuid.UUID) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.journals {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memoryTx) NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error) {
	key := orgID.String() + ":" + prefix
	number := numbering.Format(prefix, tx.counters[key], asOf)
	tx.counters[key]++
	return number, nil
}

func (tx *memoryTx) InsertExpense(ctx context.Context, e Expense) error {
	tx.expenses[e.ID] = e
	return nil
}

func (tx *memoryTx) GetExpenseForUpdate(ctx context.Context, orgID, id uuid.UUID) (Expense, error) {
	e, ok := tx.expenses[id]
	if !ok || e.OrgID != orgID {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (tx *memoryTx) SetExpensePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	e, ok := tx.expenses[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = ExpenseStatusPaid
	e.PaidAt = &at
	tx.expenses[id] = e
	return nil
}

func (tx *memoryTx) InsertApproval(ctx context.Context, a approvals.Approval) error {
	tx.approvals = append(tx.approvals, a)
	return nil
}

func (tx *memoryTx) InsertJournalEntry(ctx context.Context, e JournalEntry) error {
	tx.journals[e.ID] = e
	return nil
}

func (tx *memoryTx) InsertJournalLine(ctx context.Context, l JournalLine) error {
	tx.lines[l.JournalEntryID] = append(tx.lines[l.JournalEntryID], l)
	return nil
}

func (tx *memoryTx) GetJournalForUpdate(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, error) {
	e, ok := tx.journals[id]
	if !ok || e.OrgID != orgID {
		return JournalEntry{}, ErrNotFound
	}
	return e, nil
}

func (tx *memoryTx) GetJournalLines(ctx context.Context, entryID uuid.UUID) ([]JournalLine, error) {
	return tx.lines[entryID], nil
}

func (tx *memoryTx) SetJournalPosted(ctx context.Context, id uuid.UUID, postedBy uuid.UUID, at time.Time) error {
	e, ok := tx.journals[id]
	if !ok {
		return ErrNotFound
	}
	if e.PostedAt != nil {
		return ErrInvalidState
	}
	e.PostedBy = &postedBy
	e.PostedAt = &at
	tx.journals[id] = e
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.audits = append(tx.audits, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedActor(role rbac.Role) rbac.Actor {
	branchID := uuid.New()
	return rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), BranchID: &branchID, Role: role}
}

func TestCreateExpenseSelfApproval(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())

	manager := seedActor(rbac.RoleManager)
	expense, err := svc.CreateExpense(context.Background(), manager, CreateExpenseInput{
		Category: "TRAVEL",
		Amount:   decimal.NewFromInt(250000),
	})
	require.NoError(t, err)
	require.Equal(t, ExpenseStatusApproved, expense.Status)
	require.NotNil(t, expense.ApprovedBy)
	require.Equal(t, manager.UserID, *expense.ApprovedBy)
	require.Empty(t, repo.approvals, "self-approved expenses open no approval")

	staff := seedActor(rbac.RoleStaff)
	expense, err = svc.CreateExpense(context.Background(), staff, CreateExpenseInput{
		Category: "SUPPLIES",
		Amount:   decimal.NewFromInt(80000),
	})
	require.NoError(t, err)
	require.Equal(t, ExpenseStatusSubmitted, expense.Status)
	require.Nil(t, expense.ApprovedBy)
	require.Len(t, repo.approvals, 1)
	require.Equal(t, approvals.EntityExpense, repo.approvals[0].EntityType)
	require.Equal(t, expense.ID, repo.approvals[0].EntityID)
}

func TestMarkExpensePaidRequiresApproved(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	staff := seedActor(rbac.RoleStaff)

	expense, err := svc.CreateExpense(context.Background(), staff, CreateExpenseInput{
		Category: "SUPPLIES",
		Amount:   decimal.NewFromInt(80000),
	})
	require.NoError(t, err)

	_, err = svc.MarkExpensePaid(context.Background(), staff, expense.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	approved := repo.expenses[expense.ID]
	approved.Status = ExpenseStatusApproved
	repo.expenses[expense.ID] = approved

	paid, err := svc.MarkExpensePaid(context.Background(), staff, expense.ID)
	require.NoError(t, err)
	require.Equal(t, ExpenseStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = svc.MarkExpensePaid(context.Background(), staff, expense.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateJournalValidatesLineShape(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(rbac.RoleStaff)

	_, err := svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Lines: []JournalLineInput{{AccountCode: "1000", Debit: decimal.NewFromInt(100)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation, "single line entry must be rejected")

	_, err = svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromInt(100), Credit: decimal.NewFromInt(100)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(100)},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation, "line with both sides must be rejected")

	entry, err := svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Memo: "monthly accrual",
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromInt(100)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(60)},
		},
	})
	require.NoError(t, err, "unbalanced entries may be drafted, balance is checked at post")
	require.Regexp(t, `^JR-\d{4}-0001$`, entry.Number)
	require.False(t, entry.Posted())
}

func TestPostJournalChecksBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(rbac.RoleStaff)

	unbalanced, err := svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromInt(100)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(60)},
		},
	})
	require.NoError(t, err)

	_, err = svc.PostJournalEntry(context.Background(), actor, unbalanced.ID)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.False(t, repo.journals[unbalanced.ID].Posted())

	balanced, err := svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromFloat(99.99995)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	posted, err := svc.PostJournalEntry(context.Background(), actor, balanced.ID)
	require.NoError(t, err, "difference inside the epsilon still posts")
	require.True(t, posted.Posted())
	require.Equal(t, actor.UserID, *posted.PostedBy)

	_, err = svc.PostJournalEntry(context.Background(), actor, balanced.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState, "posting is one-way")
}

func TestFinanceAuthorization(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	viewer := seedActor(rbac.RoleViewer)

	_, err := svc.CreateExpense(context.Background(), viewer, CreateExpenseInput{
		Category: "TRAVEL",
		Amount:   decimal.NewFromInt(1000),
	})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.CreateJournalEntry(context.Background(), viewer, CreateJournalInput{
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromInt(100)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(100)},
		},
	})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// cross-org journal is invisible
	actor := seedActor(rbac.RoleStaff)
	entry, err := svc.CreateJournalEntry(context.Background(), actor, CreateJournalInput{
		Lines: []JournalLineInput{
			{AccountCode: "1000", Debit: decimal.NewFromInt(100)},
			{AccountCode: "4000", Credit: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	other := seedActor(rbac.RoleStaff)
	_, err = svc.PostJournalEntry(context.Background(), other, entry.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
