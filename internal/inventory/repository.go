package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

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
	LedgerTx
	InsertProduct(ctx context.Context, p Product) error
	UpdateProductPricing(ctx context.Context, orgID, id uuid.UUID, cost, price, threshold decimal.Decimal) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type txRepo struct {
	ledgerTx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{ledgerTx: ledgerTx{tx: tx}}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ledgerTx implements LedgerTx over a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

// NewLedgerTx adapts a pgx transaction owned by another module's
// repository so its unit of work can mutate the stock ledger.
func NewLedgerTx(tx pgx.Tx) LedgerTx {
	return ledgerTx{tx: tx}
}

func (l ledgerTx) GetLevelForUpdate(ctx context.Context, orgID, branchID, productID uuid.UUID) (StockLevel, error) {
	var level StockLevel
	var qty pgtype.Numeric
	err := l.tx.QueryRow(ctx, `SELECT org_id, branch_id, product_id, quantity, updated_at
FROM stock_levels WHERE org_id=$1 AND branch_id=$2 AND product_id=$3 FOR UPDATE`,
		orgID, branchID, productID).
		Scan(&level.OrgID, &level.BranchID, &level.ProductID, &qty, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{}, ErrLevelNotFound
		}
		return StockLevel{}, err
	}
	level.Quantity = db.NumericToDecimal(qty)
	return level, nil
}

func (l ledgerTx) UpsertLevel(ctx context.Context, level StockLevel) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO stock_levels (org_id, branch_id, product_id, quantity, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (org_id, branch_id, product_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=EXCLUDED.updated_at`,
		level.OrgID, level.BranchID, level.ProductID, db.DecimalToNumeric(level.Quantity), level.UpdatedAt)
	return err
}

func (l ledgerTx) InsertMovement(ctx context.Context, m StockMovement) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO stock_movements (id, org_id, branch_id, product_id, type, quantity, to_branch_id, reference, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)`,
		m.ID, m.OrgID, m.BranchID, m.ProductID, string(m.Type), db.DecimalToNumeric(m.Quantity),
		m.ToBranchID, m.Reference, m.Note, m.CreatedBy, m.CreatedAt)
	return err
}

func (t *txRepo) InsertProduct(ctx context.Context, p Product) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO products (id, org_id, sku, name, unit, cost, price, low_stock_threshold, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		p.ID, p.OrgID, p.SKU, p.Name, p.Unit,
		db.DecimalToNumeric(p.Cost), db.DecimalToNumeric(p.Price), db.DecimalToNumeric(p.LowStockThreshold), p.CreatedAt)
	if shared.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	return err
}

func (t *txRepo) UpdateProductPricing(ctx context.Context, orgID, id uuid.UUID, cost, price, threshold decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET cost=$3, price=$4, low_stock_threshold=$5, updated_at=NOW()
WHERE org_id=$1 AND id=$2`,
		orgID, id, db.DecimalToNumeric(cost), db.DecimalToNumeric(price), db.DecimalToNumeric(threshold))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// GetProduct returns a product scoped to the organization.
func (r *Repository) GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, org_id, sku, name, unit, cost, price, low_stock_threshold, created_at, updated_at
FROM products WHERE org_id=$1 AND id=$2`, orgID, id)
	return scanProduct(row)
}

// ListProducts lists the organization's products by SKU.
func (r *Repository) ListProducts(ctx context.Context, orgID uuid.UUID) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, sku, name, unit, cost, price, low_stock_threshold, created_at, updated_at
FROM products WHERE org_id=$1 ORDER BY sku`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListMovements returns the most recent movements for the organization.
func (r *Repository) ListMovements(ctx context.Context, orgID uuid.UUID, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, branch_id, product_id, type, quantity, to_branch_id, COALESCE(reference, ''), COALESCE(note, ''), created_by, created_at
FROM stock_movements WHERE org_id=$1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var qty pgtype.Numeric
		var mtype string
		if err := rows.Scan(&m.ID, &m.OrgID, &m.BranchID, &m.ProductID, &mtype, &qty, &m.ToBranchID, &m.Reference, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(mtype)
		m.Quantity = db.NumericToDecimal(qty)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListLevels returns stock levels for the organization, optionally one branch.
func (r *Repository) ListLevels(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT org_id, branch_id, product_id, quantity, updated_at
FROM stock_levels WHERE org_id=$1 AND ($2::uuid IS NULL OR branch_id=$2) ORDER BY branch_id, product_id`, orgID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []StockLevel
	for rows.Next() {
		var level StockLevel
		var qty pgtype.Numeric
		if err := rows.Scan(&level.OrgID, &level.BranchID, &level.ProductID, &qty, &level.UpdatedAt); err != nil {
			return nil, err
		}
		level.Quantity = db.NumericToDecimal(qty)
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// SignedMovementTotal sums signed movements for one (branch, product) key.
// Used by the reconciliation check: the total must equal the stock level.
func (r *Repository) SignedMovementTotal(ctx context.Context, orgID, branchID, productID uuid.UUID) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN type='IN' THEN quantity ELSE -quantity END), 0)
FROM stock_movements WHERE org_id=$1 AND branch_id=$2 AND product_id=$3`, orgID, branchID, productID).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return db.NumericToDecimal(total), nil
}

// LowStockRow pairs a product with a branch balance under its threshold.
type LowStockRow struct {
	Product  Product
	BranchID uuid.UUID
	Quantity decimal.Decimal
}

// LowStock lists branch balances at or below the product threshold.
func (r *Repository) LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.org_id, p.sku, p.name, p.unit, p.cost, p.price, p.low_stock_threshold, p.created_at, p.updated_at, l.branch_id, l.quantity
FROM stock_levels l JOIN products p ON p.id = l.product_id
WHERE l.org_id=$1 AND l.quantity <= p.low_stock_threshold ORDER BY p.sku`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []LowStockRow
	for rows.Next() {
		var row LowStockRow
		var cost, price, threshold, qty pgtype.Numeric
		if err := rows.Scan(&row.Product.ID, &row.Product.OrgID, &row.Product.SKU, &row.Product.Name, &row.Product.Unit,
			&cost, &price, &threshold, &row.Product.CreatedAt, &row.Product.UpdatedAt, &row.BranchID, &qty); err != nil {
			return nil, err
		}
		row.Product.Cost = db.NumericToDecimal(cost)
		row.Product.Price = db.NumericToDecimal(price)
		row.Product.LowStockThreshold = db.NumericToDecimal(threshold)
		row.Quantity = db.NumericToDecimal(qty)
		result = append(result, row)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var cost, price, threshold pgtype.Numeric
	err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.Unit, &cost, &price, &threshold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	p.Cost = db.NumericToDecimal(cost)
	p.Price = db.NumericToDecimal(price)
	p.LowStockThreshold = db.NumericToDecimal(threshold)
	return p, nil
}
