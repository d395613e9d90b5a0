package procurement

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
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes one procurement transaction may perform.
// It embeds the inventory ledger so receiving a purchase order can post
// stock movements in the same transaction.
type TxRepository interface {
	inventory.LedgerTx

	NextDocNumber(ctx context.Context, orgID uuid.UUID, prefix string, asOf time.Time) (string, error)
	InsertSupplier(ctx context.Context, s Supplier) error
	InsertPurchaseRequest(ctx context.Context, pr PurchaseRequest) error
	InsertPRItem(ctx context.Context, item PRItem) error
	GetPRForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, error)
	GetPRItems(ctx context.Context, prID uuid.UUID) ([]PRItem, error)
	SetPRStatus(ctx context.Context, id uuid.UUID, status PRStatus) error
	InsertApproval(ctx context.Context, a approvals.Approval) error
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error
	InsertPOItem(ctx context.Context, item POItem) error
	GetPOForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, error)
	GetPOItems(ctx context.Context, poID uuid.UUID) ([]POItem, error)
	SetPOReceived(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository wraps database access for the procurement module.
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

func (t *txRepo) InsertSupplier(ctx context.Context, s Supplier) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO suppliers (id, org_id, name, email, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OrgID, s.Name, s.Email, s.Phone, s.Address, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (t *txRepo) InsertPurchaseRequest(ctx context.Context, pr PurchaseRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO purchase_requests
			(id, org_id, branch_id, supplier_id, number, status, note, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pr.ID, pr.OrgID, pr.BranchID, pr.SupplierID, pr.Number, pr.Status, pr.Note, pr.RequestedBy, pr.CreatedAt,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("insert purchase request %s: %w", pr.Number, shared.ErrConflict)
		}
		return fmt.Errorf("insert purchase request: %w", err)
	}
	return nil
}

func (t *txRepo) InsertPRItem(ctx context.Context, item PRItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO purchase_request_items
			(id, purchase_request_id, product_id, quantity, unit_cost, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.PurchaseRequestID, item.ProductID,
		db.DecimalToNumeric(item.Quantity), db.DecimalToNumeric(item.UnitCost), db.DecimalToNumeric(item.LineTotal),
	)
	if err != nil {
		return fmt.Errorf("insert purchase request item: %w", err)
	}
	return nil
}

func (t *txRepo) GetPRForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, branch_id, supplier_id, number, status, note,
		       requested_by, approved_at, rejected_at, created_at
		FROM purchase_requests
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`,
		orgID, id,
	)
	return scanPR(row)
}

func (t *txRepo) GetPRItems(ctx context.Context, prID uuid.UUID) ([]PRItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, purchase_request_id, product_id, quantity, unit_cost, line_total
		FROM purchase_request_items
		WHERE purchase_request_id = $1
		ORDER BY id`,
		prID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchase request items: %w", err)
	}
	defer rows.Close()
	return collectPRItems(rows)
}

func (t *txRepo) SetPRStatus(ctx context.Context, id uuid.UUID, status PRStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_requests SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update purchase request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertApproval(ctx context.Context, a approvals.Approval) error {
	return approvals.Insert(ctx, t.tx, a)
}

func (t *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO purchase_orders
			(id, org_id, branch_id, supplier_id, purchase_request_id, number,
			 status, total, note, created_by, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		po.ID, po.OrgID, po.BranchID, po.SupplierID, po.PurchaseRequestID, po.Number,
		po.Status, db.DecimalToNumeric(po.Total), po.Note, po.CreatedBy, po.IssuedAt,
	)
	if err != nil {
		// unique index on purchase_request_id backstops the in-tx check
		if shared.IsUniqueViolation(err) {
			return ErrPOExists
		}
		return fmt.Errorf("insert purchase order: %w", err)
	}
	return nil
}

func (t *txRepo) InsertPOItem(ctx context.Context, item POItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO purchase_order_items
			(id, purchase_order_id, product_id, quantity, unit_cost, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.PurchaseOrderID, item.ProductID,
		db.DecimalToNumeric(item.Quantity), db.DecimalToNumeric(item.UnitCost), db.DecimalToNumeric(item.LineTotal),
	)
	if err != nil {
		return fmt.Errorf("insert purchase order item: %w", err)
	}
	return nil
}

func (t *txRepo) GetPOForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, org_id, branch_id, supplier_id, purchase_request_id, number,
		       status, total, note, created_by, issued_at, received_at
		FROM purchase_orders
		WHERE org_id = $1 AND id = $2
		FOR UPDATE`,
		orgID, id,
	)
	return scanPO(row)
}

func (t *txRepo) GetPOItems(ctx context.Context, poID uuid.UUID) ([]POItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost, line_total
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY id`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchase order items: %w", err)
	}
	defer rows.Close()
	return collectPOItems(rows)
}

func (t *txRepo) SetPOReceived(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders SET status = 'RECEIVED', received_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark purchase order received: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, t.tx, log)
}

// Pool-backed reads.

func (r *Repository) GetSupplier(ctx context.Context, orgID, id uuid.UUID) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, email, phone, address, created_at
		FROM suppliers
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	var s Supplier
	err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	if err != nil {
		return Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	return s, nil
}

func (r *Repository) ListSuppliers(ctx context.Context, orgID uuid.UUID) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, email, phone, address, created_at
		FROM suppliers
		WHERE org_id = $1
		ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.OrgID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetPurchaseRequest(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, []PRItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, supplier_id, number, status, note,
		       requested_by, approved_at, rejected_at, created_at
		FROM purchase_requests
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	pr, err := scanPR(row)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_request_id, product_id, quantity, unit_cost, line_total
		FROM purchase_request_items
		WHERE purchase_request_id = $1
		ORDER BY id`,
		id,
	)
	if err != nil {
		return PurchaseRequest{}, nil, fmt.Errorf("list purchase request items: %w", err)
	}
	defer rows.Close()
	items, err := collectPRItems(rows)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, items, nil
}

func (r *Repository) ListPurchaseRequests(ctx context.Context, orgID uuid.UUID, status PRStatus) ([]PurchaseRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, supplier_id, number, status, note,
		       requested_by, approved_at, rejected_at, created_at
		FROM purchase_requests
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		orgID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list purchase requests: %w", err)
	}
	defer rows.Close()

	var out []PurchaseRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r *Repository) GetPurchaseOrder(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, []POItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, branch_id, supplier_id, purchase_request_id, number,
		       status, total, note, created_by, issued_at, received_at
		FROM purchase_orders
		WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	po, err := scanPO(row)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost, line_total
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY id`,
		id,
	)
	if err != nil {
		return PurchaseOrder{}, nil, fmt.Errorf("list purchase order items: %w", err)
	}
	defer rows.Close()
	items, err := collectPOItems(rows)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, items, nil
}

func (r *Repository) ListPurchaseOrders(ctx context.Context, orgID uuid.UUID, status POStatus) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, branch_id, supplier_id, purchase_request_id, number,
		       status, total, note, created_by, issued_at, received_at
		FROM purchase_orders
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY issued_at DESC`,
		orgID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPR(row rowScanner) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := row.Scan(
		&pr.ID, &pr.OrgID, &pr.BranchID, &pr.SupplierID, &pr.Number, &pr.Status,
		&pr.Note, &pr.RequestedBy, &pr.ApprovedAt, &pr.RejectedAt, &pr.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRequest{}, ErrNotFound
	}
	if err != nil {
		return PurchaseRequest{}, fmt.Errorf("scan purchase request: %w", err)
	}
	return pr, nil
}

func scanPO(row rowScanner) (PurchaseOrder, error) {
	var po PurchaseOrder
	var total pgtype.Numeric
	err := row.Scan(
		&po.ID, &po.OrgID, &po.BranchID, &po.SupplierID, &po.PurchaseRequestID, &po.Number,
		&po.Status, &total, &po.Note, &po.CreatedBy, &po.IssuedAt, &po.ReceivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("scan purchase order: %w", err)
	}
	po.Total = db.NumericToDecimal(total)
	return po, nil
}

func collectPRItems(rows pgx.Rows) ([]PRItem, error) {
	var out []PRItem
	for rows.Next() {
		var it PRItem
		var qty, unitCost, lineTotal pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.PurchaseRequestID, &it.ProductID, &qty, &unitCost, &lineTotal); err != nil {
			return nil, fmt.Errorf("scan purchase request item: %w", err)
		}
		it.Quantity = db.NumericToDecimal(qty)
		it.UnitCost = db.NumericToDecimal(unitCost)
		it.LineTotal = db.NumericToDecimal(lineTotal)
		out = append(out, it)
	}
	return out, rows.Err()
}

func collectPOItems(rows pgx.Rows) ([]POItem, error) {
	var out []POItem
	for rows.Next() {
		var it POItem
		var qty, unitCost, lineTotal pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.ProductID, &qty, &unitCost, &lineTotal); err != nil {
			return nil, fmt.Errorf("scan purchase order item: %w", err)
		}
		it.Quantity = db.NumericToDecimal(qty)
		it.UnitCost = db.NumericToDecimal(unitCost)
		it.LineTotal = db.NumericToDecimal(lineTotal)
		out = append(out, it)
	}
	return out, rows.Err()
}
