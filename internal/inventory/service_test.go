package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	products  map[uuid.UUID]Product
	levels    map[string]StockLevel
	movements []StockMovement
	audits    []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[uuid.UUID]Product{}, levels: map[string]StockLevel{}}
}

func levelKey(orgID, branchID, productID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", orgID, branchID, productID)
}

type memoryTx struct {
	repo      *memoryRepo
	levels    map[string]StockLevel
	movements []StockMovement
	audits    []shared.AuditLog
	products  []Product
}

// WithTx applies the callback against staged state and commits only on success.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, levels: map[string]StockLevel{}}
	for k, v := range r.levels {
		tx.levels[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.levels = tx.levels
	r.movements = append(r.movements, tx.movements...)
	r.audits = append(r.audits, tx.audits...)
	for _, p := range tx.products {
		r.products[p.ID] = p
	}
	return nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error) {
	p, ok := r.products[id]
	if !ok || p.OrgID != orgID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context, orgID uuid.UUID) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, orgID uuid.UUID, limit int) ([]StockMovement, error) {
	out := make([]StockMovement, len(r.movements))
	copy(out, r.movements)
	return out, nil
}

func (r *memoryRepo) ListLevels(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID) ([]StockLevel, error) {
	var out []StockLevel
	for _, l := range r.levels {
		if branchID == nil || l.BranchID == *branchID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, error) {
	return nil, nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, orgID, branchID, productID uuid.UUID) (StockLevel, error) {
	if level, ok := tx.levels[levelKey(orgID, branchID, productID)]; ok {
		return level, nil
	}
	return StockLevel{}, ErrLevelNotFound
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level StockLevel) error {
	tx.levels[levelKey(level.OrgID, level.BranchID, level.ProductID)] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m StockMovement) error {
	tx.movements = append(tx.movements, m)
	return nil
}

func (tx *memoryTx) InsertProduct(ctx context.Context, p Product) error {
	tx.products = append(tx.products, p)
	return nil
}

func (tx *memoryTx) UpdateProductPricing(ctx context.Context, orgID, id uuid.UUID, cost, price, threshold decimal.Decimal) error {
	p, ok := tx.repo.products[id]
	if !ok || p.OrgID != orgID {
		return ErrProductNotFound
	}
	p.Cost, p.Price, p.LowStockThreshold = cost, price, threshold
	tx.products = append(tx.products, p)
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.audits = append(tx.audits, log)
	return nil
}

func seedProduct(repo *memoryRepo, orgID uuid.UUID) Product {
	p := Product{
		ID:    uuid.New(),
		OrgID: orgID,
		SKU:   "SKU-001",
		Name:  "Arabica Beans",
		Unit:  "kg",
		Cost:  decimal.NewFromInt(130000),
		Price: decimal.NewFromInt(180000),
	}
	repo.products[p.ID] = p
	return p
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestRecordMovementCreatesLevelLazily(t *testing.T) {
	repo := newMemoryRepo()
	orgID, branchID := uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)
	actor := rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &branchID, Role: rbac.RoleStaff}

	level, err := svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		ProductID: product.ID, Type: MovementIn, Quantity: qty(10),
	})
	require.NoError(t, err)
	require.True(t, level.Quantity.Equal(qty(10)))
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementIn, repo.movements[0].Type)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "STOCK_MOVEMENT", repo.audits[0].Entity)
}

func TestOversellRejected(t *testing.T) {
	repo := newMemoryRepo()
	orgID, branchID := uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)
	actor := rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &branchID, Role: rbac.RoleStaff}
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, actor, RecordMovementInput{ProductID: product.ID, Type: MovementIn, Quantity: qty(5)})
	require.NoError(t, err)

	_, err = svc.RecordMovement(ctx, actor, RecordMovementInput{ProductID: product.ID, Type: MovementOut, Quantity: qty(8)})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// Quantity unchanged and no movement appended after the failed attempt.
	level := repo.levels[levelKey(orgID, branchID, product.ID)]
	require.True(t, level.Quantity.Equal(qty(5)))
	require.Len(t, repo.movements, 1)
}

func TestTransferRecordsSourceSideOnly(t *testing.T) {
	repo := newMemoryRepo()
	orgID, src, dst := uuid.New(), uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)
	actor := rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &src, Role: rbac.RoleStaff}
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, actor, RecordMovementInput{ProductID: product.ID, Type: MovementIn, Quantity: qty(20)})
	require.NoError(t, err)

	level, err := svc.RecordMovement(ctx, actor, RecordMovementInput{
		ProductID: product.ID, Type: MovementTransfer, Quantity: qty(5), ToBranchID: &dst,
	})
	require.NoError(t, err)
	require.True(t, level.Quantity.Equal(qty(15)))

	dest := repo.levels[levelKey(orgID, dst, product.ID)]
	require.True(t, dest.Quantity.Equal(qty(5)))

	// Current behavior: one movement row on the source side, none at the
	// destination, so the destination balance intentionally exceeds its
	// signed movement total.
	var transferRows, destRows int
	for _, m := range repo.movements {
		if m.Type == MovementTransfer {
			transferRows++
			require.NotNil(t, m.ToBranchID)
			require.Equal(t, dst, *m.ToBranchID)
			require.Equal(t, src, m.BranchID)
		}
		if m.BranchID == dst {
			destRows++
		}
	}
	require.Equal(t, 1, transferRows)
	require.Zero(t, destRows)

	_, err = svc.RecordMovement(ctx, actor, RecordMovementInput{
		ProductID: product.ID, Type: MovementTransfer, Quantity: qty(50), ToBranchID: &dst,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestMovementReconciliation(t *testing.T) {
	repo := newMemoryRepo()
	orgID, branchID := uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)
	actor := rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &branchID, Role: rbac.RoleStaff}
	ctx := context.Background()

	steps := []struct {
		mtype MovementType
		q     int64
	}{
		{MovementIn, 10}, {MovementOut, 3}, {MovementIn, 7}, {MovementOut, 5},
	}
	for _, step := range steps {
		_, err := svc.RecordMovement(ctx, actor, RecordMovementInput{ProductID: product.ID, Type: step.mtype, Quantity: qty(step.q)})
		require.NoError(t, err)

		total := decimal.Zero
		for _, m := range repo.movements {
			if m.BranchID == branchID && m.ProductID == product.ID {
				total = total.Add(m.SignedQuantity())
			}
		}
		level := repo.levels[levelKey(orgID, branchID, product.ID)]
		require.True(t, total.Equal(level.Quantity), "signed movement total %s != level %s", total, level.Quantity)
	}
}

func TestRecordMovementAuthorization(t *testing.T) {
	repo := newMemoryRepo()
	orgID, branchID := uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	viewer := rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &branchID, Role: rbac.RoleViewer}
	_, err := svc.RecordMovement(ctx, viewer, RecordMovementInput{ProductID: product.ID, Type: MovementIn, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrForbidden)

	unbound := rbac.Actor{OrgID: orgID, UserID: uuid.New(), Role: rbac.RoleStaff}
	_, err = svc.RecordMovement(ctx, unbound, RecordMovementInput{ProductID: product.ID, Type: MovementIn, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordMovementOrgScope(t *testing.T) {
	repo := newMemoryRepo()
	orgID, branchID := uuid.New(), uuid.New()
	product := seedProduct(repo, orgID)
	svc := NewService(repo, nil, nil)

	otherOrg := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), BranchID: &branchID, Role: rbac.RoleStaff}
	_, err := svc.RecordMovement(context.Background(), otherOrg, RecordMovementInput{ProductID: product.ID, Type: MovementIn, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyMovementValidation(t *testing.T) {
	tx := &memoryTx{repo: newMemoryRepo(), levels: map[string]StockLevel{}}
	orgID, branchID := uuid.New(), uuid.New()

	_, err := ApplyMovement(context.Background(), tx, ApplyInput{
		OrgID: orgID, BranchID: branchID, ProductID: uuid.New(), Type: "ADJUST", Quantity: qty(1), At: time.Now(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ApplyMovement(context.Background(), tx, ApplyInput{
		OrgID: orgID, BranchID: branchID, ProductID: uuid.New(), Type: MovementTransfer, Quantity: qty(1), ToBranchID: &branchID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
