package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository runs the read-only aggregate queries behind the overview.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) sumQuery(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return db.NumericToDecimal(sum), nil
}

// Revenue totals invoices issued inside the window.
func (r *Repository) Revenue(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	total, err := r.sumQuery(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM invoices
		WHERE org_id = $1 AND issued_at IS NOT NULL AND issued_at >= $2`,
		orgID, since,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

func (r *Repository) ExpenseTotal(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	total, err := r.sumQuery(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE org_id = $1 AND created_at >= $2`,
		orgID, since,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

func (r *Repository) PaymentsTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	total, err := r.sumQuery(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE org_id = $1`,
		orgID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// OutstandingReceivables totals issued-but-unpaid invoices in the window.
func (r *Repository) OutstandingReceivables(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	total, err := r.sumQuery(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM invoices
		WHERE org_id = $1 AND status = 'ISSUED' AND issued_at >= $2`,
		orgID, since,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum receivables: %w", err)
	}
	return total, nil
}

// OpenPurchaseTotal totals purchase orders not yet received.
func (r *Repository) OpenPurchaseTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	total, err := r.sumQuery(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM purchase_orders
		WHERE org_id = $1 AND status = 'ISSUED'`,
		orgID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum open purchases: %w", err)
	}
	return total, nil
}

func (r *Repository) LowStockCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_levels l
		JOIN products p ON p.id = l.product_id
		WHERE l.org_id = $1 AND l.quantity <= p.low_stock_threshold`,
		orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return count, nil
}

func (r *Repository) PendingApprovalCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM approvals WHERE org_id = $1 AND status = 'PENDING'`,
		orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return count, nil
}

// Search matches customers, suppliers, products and invoice numbers,
// a few rows per entity type.
func (r *Repository) Search(ctx context.Context, orgID uuid.UUID, query string, perType int) ([]SearchResult, error) {
	pattern := "%" + query + "%"
	rows, err := r.pool.Query(ctx, `
		(SELECT 'customer', id, name, COALESCE(NULLIF(email, ''), 'Customer') FROM customers
		 WHERE org_id = $1 AND name ILIKE $2 ORDER BY name LIMIT $3)
		UNION ALL
		(SELECT 'supplier', id, name, COALESCE(NULLIF(email, ''), 'Supplier') FROM suppliers
		 WHERE org_id = $1 AND name ILIKE $2 ORDER BY name LIMIT $3)
		UNION ALL
		(SELECT 'product', id, name, sku FROM products
		 WHERE org_id = $1 AND (name ILIKE $2 OR sku ILIKE $2) ORDER BY sku LIMIT $3)
		UNION ALL
		(SELECT 'invoice', id, number, status FROM invoices
		 WHERE org_id = $1 AND number ILIKE $2 ORDER BY number LIMIT $3)`,
		orgID, pattern, perType,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.Type, &res.ID, &res.Name, &res.Subtitle); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
