package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/approvals"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one finance transaction may perform.
type TxRepository interface {
	NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error)
	InsertExpense(ctx context.Context, e Expense) error
	GetExpenseForUpdate(ctx context.Context, orgID, id uuid.UUID) (Expense, error)
	SetExpensePaid(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertApproval(ctx context.Context, a approvals.Approval) error
	InsertJournalEntry(ctx context.Context, e JournalEntry) error
	InsertJournalLine(ctx context.Context, l JournalLine) error
	GetJournalForUpdate(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, error)
	GetJournalLines(ctx context.Context, entryID uuid.UUID) ([]JournalLine, error)
	SetJournalPosted(ctx context.Context, id uuid.UUID, postedBy uuid.UUID, at time.Time) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the finance module.
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

func (t *txRepo) NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error) {
	return numbering.Next(ctx, t.tx, orgID, prefix, asOf)
}

func (t *txRepo) InsertExpense(ctx context.Context, e Expense) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO expenses
			(id, org_id, branch_id, category, amount, description, status,
			 created_by, approved_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OrgID, e.BranchID, e.Category, db.DecimalToNumeric(e.Amount), e.Description, e.Status,
		e.CreatedBy, e.ApprovedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (t *txRepo) GetExpenseForUpdate(ctx context.Context, orgID, id uuid.UUID) (Expense, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, branch_id, category, amount, description, status,
		       created_by, approved_by, paid_at, created_at
		FROM expenses
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`,
		orgID, id,
	)
	return scanExpense(row)
}

func (t *txRepo) SetExpensePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE expenses SET status = 'PAID', paid_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark expense paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertApproval(ctx context.Context, a approvals.Approval) error {
	return approvals.Insert(ctx, t.tx, a)
}

func (t *txRepo) InsertJournalEntry(ctx context.Context, e JournalEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO journal_entries
			(id, org_id, number, memo, entry_date, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrgID, e.Number, e.Memo, e.EntryDate, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("insert journal entry %s: %w", e.Number, shared.ErrConflict)
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (t *txRepo) InsertJournalLine(ctx context.Context, l JournalLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO journal_lines
			(id, journal_entry_id, account_code, description, debit, credit)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.JournalEntryID, l.AccountCode, l.Description,
		db.DecimalToNumeric(l.Debit), db.DecimalToNumeric(l.Credit),
	)
	if err != nil {
		return fmt.Errorf("insert journal line: %w", err)
	}
	return nil
}

func (t *txRepo) GetJournalForUpdate(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, number, memo, entry_date, created_by, posted_by, posted_at, created_at
		FROM journal_entries
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`,
		orgID, id,
	)
	return scanJournal(row)
}

func (t *txRepo) GetJournalLines(ctx context.Context, entryID uuid.UUID) ([]JournalLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, journal_entry_id, account_code, description, debit, credit
		FROM journal_lines
		WHERE journal_entry_id = $1
		ORDER BY id`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal lines: %w", err)
	}
	defer rows.Close()
	return collectJournalLines(rows)
}

func (t *txRepo) SetJournalPosted(ctx context.Context, id uuid.UUID, postedBy uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE journal_entries SET posted_by = $2, posted_at = $3 WHERE id = $1 AND posted_at IS NULL`,
		id, postedBy, at,
	)
	if err != nil {
		return fmt.Errorf("post journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetExpense(ctx context.Context, orgID, id uuid.UUID) (Expense, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, category, amount, description, status,
		       created_by, approved_by, paid_at, created_at
		FROM expenses
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	return scanExpense(row)
}

func (r *Repository) ListExpenses(ctx context.Context, orgID uuid.UUID, status ExpenseStatus) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, category, amount, description, status,
		       created_by, approved_by, paid_at, created_at
		FROM expenses
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		orgID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) GetJournal(ctx context.Context, orgID, id uuid.UUID) (JournalEntry, []JournalLine, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, number, memo, entry_date, created_by, posted_by, posted_at, created_at
		FROM journal_entries
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	entry, err := scanJournal(row)
	if err != nil {
		return JournalEntry{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, journal_entry_id, account_code, description, debit, credit
		FROM journal_lines
		WHERE journal_entry_id = $1
		ORDER BY id`,
		id,
	)
	if err != nil {
		return JournalEntry{}, nil, fmt.Errorf("list journal lines: %w", err)
	}
	defer rows.Close()
	lines, err := collectJournalLines(rows)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

func (r *Repository) ListJournals(ctx context.Context, orgID uuid.UUID) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, number, memo, entry_date, created_by, posted_by, posted_at, created_at
		FROM journal_entries
		WHERE org_id = $1
		ORDER BY entry_date DESC, created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var e Expense
	var amount pgtype.Numeric
	err := row.Scan(
		&e.ID, &e.OrgID, &e.BranchID, &e.Category, &amount, &e.Description, &e.Status,
		&e.CreatedBy, &e.ApprovedBy, &e.PaidAt, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Amount = db.NumericToDecimal(amount)
	return e, nil
}

func scanJournal(row rowScanner) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(
		&e.ID, &e.OrgID, &e.Number, &e.Memo, &e.EntryDate, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	return e, nil
}

func collectJournalLines(rows pgx.Rows) ([]JournalLine, error) {
	var out []JournalLine
	for rows.Next() {
		var l JournalLine
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountCode, &l.Description, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		l.Debit = db.NumericToDecimal(debit)
		l.Credit = db.NumericToDecimal(credit)
		out = append(out, l)
	}
	return out, rows.Err()
}
