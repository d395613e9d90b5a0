package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Expense lifecycle statuses. Expenses created by managers and above are
// approved on the spot; anything below opens a pending approval.
type ExpenseStatus string

const (
	ExpenseStatusSubmitted ExpenseStatus = "SUBMITTED"
	ExpenseStatusApproved  ExpenseStatus = "APPROVED"
	ExpenseStatusRejected  ExpenseStatus = "REJECTED"
	ExpenseStatusPaid      ExpenseStatus = "PAID"
)

// Expense domain model.
type Expense struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	BranchID    uuid.UUID
	Category    string
	Amount      decimal.Decimal
	Description string
	Status      ExpenseStatus
	CreatedBy   uuid.UUID
	ApprovedBy  *uuid.UUID
	PaidAt      *time.Time
	CreatedAt   time.Time
}

// JournalEntry domain model. An entry is mutable bookkeeping until posted;
// posting is a one-way door.
type JournalEntry struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Number    string
	Memo      string
	EntryDate time.Time
	CreatedBy uuid.UUID
	PostedBy  *uuid.UUID
	PostedAt  *time.Time
	CreatedAt time.Time
}

// Posted reports whether the entry has been posted to the ledger.
func (e JournalEntry) Posted() bool { return e.PostedAt != nil }

// JournalLine carries either a debit or a credit, never both.
type JournalLine struct {
	ID             uuid.UUID
	JournalEntryID uuid.UUID
	AccountCode    string
	Description    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

var (
	// ErrNotFound indicates a missing or out-of-org record.
	ErrNotFound = fmt.Errorf("finance: %w", shared.ErrNotFound)
	// ErrInvalidState occurs when an action violates the document workflow.
	ErrInvalidState = fmt.Errorf("finance: %w", shared.ErrInvalidState)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("finance: %w", shared.ErrValidation)
	// ErrUnbalanced occurs when journal debits and credits do not match.
	ErrUnbalanced = fmt.Errorf("finance: %w", shared.ErrUnbalanced)
)

// validateLines checks the double-entry shape: at least two lines, every
// line carries exactly one side, account codes present.
func validateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("journal entry needs at least two lines: %w", ErrValidation)
	}
	for i, l := range lines {
		if l.AccountCode == "" {
			return fmt.Errorf("line %d: account code is required: %w", i+1, ErrValidation)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("line %d: amounts must not be negative: %w", i+1, ErrValidation)
		}
		debit := l.Debit.IsPositive()
		credit := l.Credit.IsPositive()
		if debit == credit {
			return fmt.Errorf("line %d: exactly one of debit or credit must be set: %w", i+1, ErrValidation)
		}
	}
	return nil
}

// checkBalance compares total debits against total credits within the
// bookkeeping epsilon.
func checkBalance(lines []JournalLine) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	if !shared.WithinEpsilon(debits, credits) {
		return fmt.Errorf("debits %s do not match credits %s: %w", debits, credits, ErrUnbalanced)
	}
	return nil
}
