package finance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/approvals"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the finance service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetExpense(ctx context.Context, orgID, id uuid.UUID) (Expense, error)
	ListExpenses(ctx context.Context, orgID uuid.UUID, status ExpenseStatus) ([]Expense, error)
	GetJournal(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, []JournalLine, error)
	ListJournals(ctx context.Context, orgID uuid.UUID) ([]JournalEntry, error)
}

// Service implements expense approval shortcuts and double-entry journals.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateExpenseInput struct {
	Category    string
	Amount      decimal.Decimal
	Description string
}

// CreateExpense records a spend. Managers and above self-approve; other
// roles get a SUBMITTED expense and a pending approval in the same
// transaction.
func (s *Service) CreateExpense(ctx context.Context, actor rbac.Actor, in CreateExpenseInput) (Expense, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionFinanceWrite) {
		return Expense{}, fmt.Errorf("create expense: %w", shared.ErrForbidden)
	}
	if actor.BranchID == nil {
		return Expense{}, fmt.Errorf("actor has no branch: %w", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("expense amount must be positive: %w", ErrValidation)
	}
	if in.Category == "" {
		return Expense{}, fmt.Errorf("expense category is required: %w", ErrValidation)
	}

	now := s.now().UTC()
	expense := Expense{
		ID:          uuid.New(),
		OrgID:       actor.OrgID,
		BranchID:    *actor.BranchID,
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      ExpenseStatusSubmitted,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
	}
	selfApproved := actor.Role.AtLeast(rbac.RoleManager)
	if selfApproved {
		expense.Status = ExpenseStatusApproved
		approver := actor.UserID
		expense.ApprovedBy = &approver
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		if !selfApproved {
			if err := tx.InsertApproval(ctx, approvals.Approval{
				ID:          uuid.New(),
				OrgID:       actor.OrgID,
				BranchID:    actor.BranchID,
				EntityType:  approvals.EntityExpense,
				EntityID:    expense.ID,
				Status:      approvals.StatusPending,
				RequestedBy: actor.UserID,
				RequestedAt: now,
			}); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "EXPENSE",
			EntityID: expense.ID.String(),
			Details:  map[string]any{"category": expense.Category, "amount": expense.Amount.String(), "status": string(expense.Status)},
			At:       now,
		})
	})
	if err != nil {
		return Expense{}, err
	}

	s.logger.Info("expense created",
		slog.String("category", expense.Category),
		slog.String("status", string(expense.Status)),
	)
	return expense, nil
}

// MarkExpensePaid settles an approved expense.
func (s *Service) MarkExpensePaid(ctx context.Context, actor rbac.Actor, expenseID uuid.UUID) (Expense, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionFinanceWrite) {
		return Expense{}, fmt.Errorf("mark expense paid: %w", shared.ErrForbidden)
	}

	var expense Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		expense, err = tx.GetExpenseForUpdate(ctx, actor.OrgID, expenseID)
		if err != nil {
			return err
		}
		if expense.Status != ExpenseStatusApproved {
			return fmt.Errorf("expense is %s, only approved expenses can be paid: %w", expense.Status, ErrInvalidState)
		}

		now := s.now().UTC()
		if err := tx.SetExpensePaid(ctx, expense.ID, now); err != nil {
			return err
		}
		expense.Status = ExpenseStatusPaid
		expense.PaidAt = &now

		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &expense.BranchID,
			ActorID:  &actor.UserID,
			Action:   "STATUS_CHANGE",
			Entity:   "EXPENSE",
			EntityID: expense.ID.String(),
			Details:  map[string]any{"from": string(ExpenseStatusApproved), "to": string(ExpenseStatusPaid)},
			At:       now,
		})
	})
	if err != nil {
		return Expense{}, err
	}
	return expense, nil
}

type JournalLineInput struct {
	AccountCode string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

type CreateJournalInput struct {
	Memo      string
	EntryDate time.Time
	Lines     []JournalLineInput
}

// CreateJournalEntry stores an unposted entry with its lines and a
// document number. Line shape is validated here; the balance check waits
// until posting.
func (s *Service) CreateJournalEntry(ctx context.Context, actor rbac.Actor, in CreateJournalInput) (JournalEntry, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionFinanceWrite) {
		return JournalEntry{}, fmt.Errorf("create journal entry: %w", shared.ErrForbidden)
	}

	lines := make([]JournalLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, JournalLine{
			ID:          uuid.New(),
			AccountCode: l.AccountCode,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}
	if err := validateLines(lines); err != nil {
		return JournalEntry{}, err
	}

	now := s.now().UTC()
	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	entry := JournalEntry{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		Memo:      in.Memo,
		EntryDate: entryDate,
		CreatedBy: actor.UserID,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, actor.OrgID, numbering.PrefixJournal, entryDate)
		if err != nil {
			return err
		}
		entry.Number = number
		if err := tx.InsertJournalEntry(ctx, entry); err != nil {
			return err
		}
		for i := range lines {
			lines[i].JournalEntryID = entry.ID
			if err := tx.InsertJournalLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "JOURNAL_ENTRY",
			EntityID: entry.ID.String(),
			Details:  map[string]any{"number": entry.Number, "lines": len(lines)},
			At:       now,
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}

	s.logger.Info("journal entry created", slog.String("number", entry.Number))
	return entry, nil
}

// PostJournalEntry posts an entry after re-validating its lines and
// checking that debits balance credits within the bookkeeping epsilon.
// Posting is irreversible.
func (s *Service) PostJournalEntry(ctx context.Context, actor rbac.Actor, entryID uuid.UUID) (JournalEntry, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionFinanceWrite) {
		return JournalEntry{}, fmt.Errorf("post journal entry: %w", shared.ErrForbidden)
	}

	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalForUpdate(ctx, actor.OrgID, entryID)
		if err != nil {
			return err
		}
		if entry.Posted() {
			return fmt.Errorf("journal entry %s is already posted: %w", entry.Number, ErrInvalidState)
		}

		lines, err := tx.GetJournalLines(ctx, entry.ID)
		if err != nil {
			return err
		}
		if err := validateLines(lines); err != nil {
			return err
		}
		if err := checkBalance(lines); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.SetJournalPosted(ctx, entry.ID, actor.UserID, now); err != nil {
			return err
		}
		postedBy := actor.UserID
		entry.PostedBy = &postedBy
		entry.PostedAt = &now

		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "POST",
			Entity:   "JOURNAL_ENTRY",
			EntityID: entry.ID.String(),
			Details:  map[string]any{"number": entry.Number},
			At:       now,
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}

	s.logger.Info("journal entry posted", slog.String("number", entry.Number))
	return entry, nil
}

func (s *Service) GetExpense(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Expense, error) {
	return s.repo.GetExpense(ctx, actor.OrgID, id)
}

func (s *Service) ListExpenses(ctx context.Context, actor rbac.Actor, status ExpenseStatus) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, actor.OrgID, status)
}

func (s *Service) GetJournal(ctx context.Context, actor rbac.Actor, id uuid.UUID) (JournalEntry, []JournalLine, error) {
	return s.repo.GetJournal(ctx, actor.OrgID, id)
}

func (s *Service) ListJournals(ctx context.Context, actor rbac.Actor) ([]JournalEntry, error) {
	return s.repo.ListJournals(ctx, actor.OrgID)
}
