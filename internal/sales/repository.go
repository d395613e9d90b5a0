package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one sales transaction may perform. The
// inventory ledger is embedded so issuing an invoice posts OUT movements
// inside the same transaction.
type TxRepository interface {
	inventory.LedgerTx

	NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error)
	InsertCustomer(ctx context.Context, c Customer) error
	InsertInvoice(ctx context.Context, inv Invoice) error
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) error
	GetInvoiceForUpdate(ctx context.Context, orgID, id uuid.UUID) (Invoice, error)
	GetInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error)
	SetInvoiceIssued(ctx context.Context, id uuid.UUID, at time.Time) error
	SetInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertPayment(ctx context.Context, p Payment) error
	SumPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the sales module.
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

	if err := fn(ctx, &txRepo{tx: tx, LedgerTx: inventory.NewLedgerTx(tx)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	inventory.LedgerTx
	tx pgx.Tx
}

func (t *txRepo) NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error) {
	return numbering.Next(ctx, t.tx, orgID, prefix, asOf)
}

func (t *txRepo) InsertCustomer(ctx context.Context, c Customer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO customers (id, org_id, name, email, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.OrgID, c.Name, c.Email, c.Phone, c.Address, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoices
			(id, org_id, branch_id, customer_id, number, status, subtotal,
			 tax_rate, tax_amount, total, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		inv.ID, inv.OrgID, inv.BranchID, inv.CustomerID, inv.Number, inv.Status, db.DecimalToNumeric(inv.Subtotal),
		db.DecimalToNumeric(inv.TaxRate), db.DecimalToNumeric(inv.TaxAmount), db.DecimalToNumeric(inv.Total),
		inv.Note, inv.CreatedBy, inv.CreatedAt,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("insert invoice %s: %w", inv.Number, shared.ErrConflict)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (t *txRepo) InsertInvoiceItem(ctx context.Context, item InvoiceItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, product_id, description, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.InvoiceID, item.ProductID, item.Description,
		db.DecimalToNumeric(item.Quantity), db.DecimalToNumeric(item.UnitPrice), db.DecimalToNumeric(item.LineTotal),
	)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, orgID, id uuid.UUID) (Invoice, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, branch_id, customer_id, number, status, subtotal,
		       tax_rate, tax_amount, total, note, created_by, issued_at, paid_at, created_at
		FROM invoices
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`,
		orgID, id,
	)
	return scanInvoice(row)
}

func (t *txRepo) GetInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, line_total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	return collectInvoiceItems(rows)
}

func (t *txRepo) SetInvoiceIssued(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET status = 'ISSUED', issued_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark invoice issued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET status = 'PAID', paid_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (id, org_id, invoice_id, amount, method, reference, received_by, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrgID, p.InvoiceID, db.DecimalToNumeric(p.Amount), p.Method, p.Reference, p.ReceivedBy, p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *txRepo) SumPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`,
		invoiceID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return db.NumericToDecimal(sum), nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetCustomer(ctx context.Context, orgID, id uuid.UUID) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, email, phone, address, created_at
		FROM customers
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	var c Customer
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCustomers(ctx context.Context, orgID uuid.UUID) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, email, phone, address, created_at
		FROM customers
		WHERE org_id = $1
		ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetInvoice(ctx context.Context, orgID, id uuid.UUID) (Invoice, []InvoiceItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, customer_id, number, status, subtotal,
		       tax_rate, tax_amount, total, note, created_by, issued_at, paid_at, created_at
		FROM invoices
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, line_total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`,
		id,
	)
	if err != nil {
		return Invoice{}, nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	items, err := collectInvoiceItems(rows)
	if err != nil {
		return Invoice{}, nil, err
	}
	return inv, items, nil
}

func (r *Repository) ListInvoices(ctx context.Context, orgID uuid.UUID, status InvoiceStatus) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, customer_id, number, status, subtotal,
		       tax_rate, tax_amount, total, note, created_by, issued_at, paid_at, created_at
		FROM invoices
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		orgID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, orgID, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, invoice_id, amount, method, reference, received_by, paid_at
		FROM payments
		WHERE org_id = $1 AND invoice_id = $2
		ORDER BY paid_at`,
		orgID, invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.OrgID, &p.InvoiceID, &amount, &p.Method, &p.Reference, &p.ReceivedBy, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = db.NumericToDecimal(amount)
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	var subtotal, taxRate, taxAmount, total pgtype.Numeric
	err := row.Scan(
		&inv.ID, &inv.OrgID, &inv.BranchID, &inv.CustomerID, &inv.Number, &inv.Status, &subtotal,
		&taxRate, &taxAmount, &total, &inv.Note, &inv.CreatedBy, &inv.IssuedAt, &inv.PaidAt, &inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Subtotal = db.NumericToDecimal(subtotal)
	inv.TaxRate = db.NumericToDecimal(taxRate)
	inv.TaxAmount = db.NumericToDecimal(taxAmount)
	inv.Total = db.NumericToDecimal(total)
	return inv, nil
}

func collectInvoiceItems(rows pgx.Rows) ([]InvoiceItem, error) {
	var out []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		var qty, unitPrice, lineTotal pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Description, &qty, &unitPrice, &lineTotal); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		it.Quantity = db.NumericToDecimal(qty)
		it.UnitPrice = db.NumericToDecimal(unitPrice)
		it.LineTotal = db.NumericToDecimal(lineTotal)
		out = append(out, it)
	}
	return out, rows.Err()
}
