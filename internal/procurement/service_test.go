package procurement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/approvals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	suppliers map[uuid.UUID]Supplier
	prs       map[uuid.UUID]PurchaseRequest
	prItems   map[uuid.UUID][]PRItem
	pos       map[uuid.UUID]PurchaseOrder
	poItems   map[uuid.UUID][]POItem
	approvals []approvals.Approval
	levels    map[string]inventory.StockLevel
	movements []inventory.StockMovement
	counters  map[string]int64
	audits    []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: map[uuid.UUID]Supplier{},
		prs:       map[uuid.UUID]PurchaseRequest{},
		prItems:   map[uuid.UUID][]PRItem{},
		pos:       map[uuid.UUID]PurchaseOrder{},
		poItems:   map[uuid.UUID][]POItem{},
		levels:    map[string]inventory.StockLevel{},
		counters:  map[string]int64{},
	}
}

func levelKey(orgID, branchID, productID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", orgID, branchID, productID)
}

type memoryTx struct {
	repo      *memoryRepo
	prs       map[uuid.UUID]PurchaseRequest
	pos       map[uuid.UUID]PurchaseOrder
	levels    map[string]inventory.StockLevel
	counters  map[string]int64
	prItems   map[uuid.UUID][]PRItem
	poItems   map[uuid.UUID][]POItem
	suppliers []Supplier
	approvals []approvals.Approval
	movements []inventory.StockMovement
	audits    []shared.AuditLog
}

// WithTx stages all writes and commits only when the callback succeeds, so
// a failed transaction leaves no partial state behind.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:     r,
		prs:      map[uuid.UUID]PurchaseRequest{},
		pos:      map[uuid.UUID]PurchaseOrder{},
		levels:   map[string]inventory.StockLevel{},
		counters: map[string]int64{},
		prItems:  map[uuid.UUID][]PRItem{},
		poItems:  map[uuid.UUID][]POItem{},
	}
	for k, v := range r.prs {
		tx.prs[k] = v
	}
	for k, v := range r.pos {
		tx.pos[k] = v
	}
	for k, v := range r.levels {
		tx.levels[k] = v
	}
	for k, v := range r.counters {
		tx.counters[k] = v
	}
	for k, v := range r.prItems {
		tx.prItems[k] = append([]PRItem(nil), v...)
	}
	for k, v := range r.poItems {
		tx.poItems[k] = append([]POItem(nil), v...)
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.prs = tx.prs
	r.pos = tx.pos
	r.levels = tx.levels
	r.counters = tx.counters
	r.prItems = tx.prItems
	r.poItems = tx.poItems
	for _, s := range tx.suppliers {
		r.suppliers[s.ID] = s
	}
	r.approvals = append(r.approvals, tx.approvals...)
	r.movements = append(r.movements, tx.movements...)
	r.audits = append(r.audits, tx.audits...)
	return nil
}

func (r *memoryRepo) GetSupplier(ctx context.Context, orgID, id uuid.UUID) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok || s.OrgID != orgID {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListSuppliers(ctx context.Context, orgID uuid.UUID) ([]Supplier, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		if s.OrgID == orgID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetPurchaseRequest(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, []PRItem, error) {
	pr, ok := r.prs[id]
	if !ok || pr.OrgID != orgID {
		return PurchaseRequest{}, nil, ErrNotFound
	}
	return pr, r.prItems[id], nil
}

func (r *memoryRepo) ListPurchaseRequests(ctx context.Context, orgID uuid.UUID, status PRStatus) ([]PurchaseRequest, error) {
	var out []PurchaseRequest
	for _, pr := range r.prs {
		if pr.OrgID == orgID && (status == "" || pr.Status == status) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetPurchaseOrder(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, []POItem, error) {
	po, ok := r.pos[id]
	if !ok || po.OrgID != orgID {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	return po, r.poItems[id], nil
}

func (r *memoryRepo) ListPurchaseOrders(ctx context.Context, orgID uuid.UUID, status POStatus) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range r.pos {
		if po.OrgID == orgID && (status == "" || po.Status == status) {
			out = append(out, po)
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

func (tx *memoryTx) InsertSupplier(ctx context.Context, s Supplier) error {
	tx.suppliers = append(tx.suppliers, s)
	return nil
}

func (tx *memoryTx) InsertPurchaseRequest(ctx context.Context, pr PurchaseRequest) error {
	tx.prs[pr.ID] = pr
	return nil
}

func (tx *memoryTx) InsertPRItem(ctx context.Context, item PRItem) error {
	tx.prItems[item.PurchaseRequestID] = append(tx.prItems[item.PurchaseRequestID], item)
	return nil
}

func (tx *memoryTx) GetPRForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, error) {
	pr, ok := tx.prs[id]
	if !ok || pr.OrgID != orgID {
		return PurchaseRequest{}, ErrNotFound
	}
	return pr, nil
}

func (tx *memoryTx) GetPRItems(ctx context.Context, prID uuid.UUID) ([]PRItem, error) {
	return tx.prItems[prID], nil
}

func (tx *memoryTx) SetPRStatus(ctx context.Context, id uuid.UUID, status PRStatus) error {
	pr, ok := tx.prs[id]
	if !ok {
		return ErrNotFound
	}
	pr.Status = status
	tx.prs[id] = pr
	return nil
}

func (tx *memoryTx) InsertApproval(ctx context.Context, a approvals.Approval) error {
	tx.approvals = append(tx.approvals, a)
	return nil
}

func (tx *memoryTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	for _, existing := range tx.pos {
		if existing.PurchaseRequestID == po.PurchaseRequestID {
			return ErrPOExists
		}
	}
	tx.pos[po.ID] = po
	return nil
}

func (tx *memoryTx) InsertPOItem(ctx context.Context, item POItem) error {
	tx.poItems[item.PurchaseOrderID] = append(tx.poItems[item.PurchaseOrderID], item)
	return nil
}

func (tx *memoryTx) GetPOForUpdate(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, error) {
	po, ok := tx.pos[id]
	if !ok || po.OrgID != orgID {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (tx *memoryTx) GetPOItems(ctx context.Context, poID uuid.UUID) ([]POItem, error) {
	return tx.poItems[poID], nil
}

func (tx *memoryTx) SetPOReceived(ctx context.Context, id uuid.UUID, at time.Time) error {
	po, ok := tx.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = POStatusReceived
	po.ReceivedAt = &at
	tx.pos[id] = po
	return nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, orgID, branchID, productID uuid.UUID) (inventory.StockLevel, error) {
	if level, ok := tx.levels[levelKey(orgID, branchID, productID)]; ok {
		return level, nil
	}
	return inventory.StockLevel{}, inventory.ErrLevelNotFound
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level inventory.StockLevel) error {
	tx.levels[levelKey(level.OrgID, level.BranchID, level.ProductID)] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m inventory.StockMovement) error {
	tx.movements = append(tx.movements, m)
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.audits = append(tx.audits, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedActor(repo *memoryRepo, role rbac.Role) rbac.Actor {
	orgID := uuid.New()
	branchID := uuid.New()
	return rbac.Actor{OrgID: orgID, UserID: uuid.New(), BranchID: &branchID, Role: role}
}

func seedSupplier(repo *memoryRepo, orgID uuid.UUID) Supplier {
	s := Supplier{ID: uuid.New(), OrgID: orgID, Name: "PT Sumber Makmur", CreatedAt: time.Now().UTC()}
	repo.suppliers[s.ID] = s
	return s
}

func TestPurchaseLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(repo, rbac.RoleStaff)
	supplier := seedSupplier(repo, actor.OrgID)
	productID := uuid.New()

	pr, err := svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: supplier.ID,
		Items: []PRItemInput{{
			ProductID: productID,
			Quantity:  decimal.NewFromInt(12),
			UnitCost:  decimal.NewFromInt(130000),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, PRStatusDraft, pr.Status)
	require.Regexp(t, `^PR-\d{4}-0001$`, pr.Number)

	items := repo.prItems[pr.ID]
	require.Len(t, items, 1)
	require.True(t, items[0].LineTotal.Equal(decimal.NewFromInt(1560000)),
		"line total should be 12 x 130000, got %s", items[0].LineTotal)

	pr, err = svc.SubmitPurchaseRequest(context.Background(), actor, pr.ID)
	require.NoError(t, err)
	require.Equal(t, PRStatusSubmitted, pr.Status)
	require.Len(t, repo.approvals, 1)
	require.Equal(t, approvals.StatusPending, repo.approvals[0].Status)
	require.Equal(t, pr.ID, *repo.approvals[0].PurchaseRequestID)

	// approval engine resolves the request out of band
	approved := repo.prs[pr.ID]
	approved.Status = PRStatusApproved
	repo.prs[pr.ID] = approved

	manager := actor
	manager.Role = rbac.RoleManager
	po, err := svc.CreatePurchaseOrder(context.Background(), manager, CreatePOInput{PurchaseRequestID: pr.ID})
	require.NoError(t, err)
	require.Equal(t, POStatusIssued, po.Status)
	require.Regexp(t, `^PO-\d{4}-0001$`, po.Number)
	require.True(t, po.Total.Equal(decimal.NewFromInt(1560000)))
	require.Equal(t, PRStatusConverted, repo.prs[pr.ID].Status)

	poItems := repo.poItems[po.ID]
	require.Len(t, poItems, 1)
	require.True(t, poItems[0].UnitCost.Equal(decimal.NewFromInt(130000)))

	po, err = svc.ReceivePurchaseOrder(context.Background(), manager, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, po.Status)
	require.NotNil(t, po.ReceivedAt)

	level := repo.levels[levelKey(actor.OrgID, *actor.BranchID, productID)]
	require.True(t, level.Quantity.Equal(decimal.NewFromInt(12)),
		"receipt should raise stock to 12, got %s", level.Quantity)
	require.Len(t, repo.movements, 1)
	require.Equal(t, inventory.MovementIn, repo.movements[0].Type)
	require.Equal(t, po.Number, repo.movements[0].Reference)
}

func TestSubmitRequiresDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(repo, rbac.RoleStaff)
	supplier := seedSupplier(repo, actor.OrgID)

	pr, err := svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(500)}},
	})
	require.NoError(t, err)

	_, err = svc.SubmitPurchaseRequest(context.Background(), actor, pr.ID)
	require.NoError(t, err)

	_, err = svc.SubmitPurchaseRequest(context.Background(), actor, pr.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Len(t, repo.approvals, 1, "a second submit must not open another approval")
}

func TestCreatePOGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(repo, rbac.RoleManager)
	supplier := seedSupplier(repo, actor.OrgID)

	pr, err := svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(3), UnitCost: decimal.NewFromInt(1000)}},
	})
	require.NoError(t, err)

	// draft: cannot convert yet
	_, err = svc.CreatePurchaseOrder(context.Background(), actor, CreatePOInput{PurchaseRequestID: pr.ID})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	approved := repo.prs[pr.ID]
	approved.Status = PRStatusApproved
	repo.prs[pr.ID] = approved

	_, err = svc.CreatePurchaseOrder(context.Background(), actor, CreatePOInput{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	// converted: a second order is a conflict, not another issue
	_, err = svc.CreatePurchaseOrder(context.Background(), actor, CreatePOInput{PurchaseRequestID: pr.ID})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.pos, 1)
}

func TestReceiveOnlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(repo, rbac.RoleManager)
	supplier := seedSupplier(repo, actor.OrgID)
	productID := uuid.New()

	pr, err := svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: productID, Quantity: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(2000)}},
	})
	require.NoError(t, err)
	approved := repo.prs[pr.ID]
	approved.Status = PRStatusApproved
	repo.prs[pr.ID] = approved

	po, err := svc.CreatePurchaseOrder(context.Background(), actor, CreatePOInput{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	_, err = svc.ReceivePurchaseOrder(context.Background(), actor, po.ID)
	require.NoError(t, err)

	_, err = svc.ReceivePurchaseOrder(context.Background(), actor, po.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	level := repo.levels[levelKey(actor.OrgID, *actor.BranchID, productID)]
	require.True(t, level.Quantity.Equal(decimal.NewFromInt(5)), "double receive must not double stock")
	require.Len(t, repo.movements, 1)
}

func TestProcurementAuthorization(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	viewer := seedActor(repo, rbac.RoleViewer)
	supplier := seedSupplier(repo, viewer.OrgID)

	_, err := svc.CreatePurchaseRequest(context.Background(), viewer, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(10)}},
	})
	require.ErrorIs(t, err, shared.ErrForbidden)

	staff := seedActor(repo, rbac.RoleStaff)
	staff.BranchID = nil
	_, err = svc.CreatePurchaseRequest(context.Background(), staff, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(10)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePRValidatesItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	actor := seedActor(repo, rbac.RoleStaff)
	supplier := seedSupplier(repo, actor.OrgID)

	_, err := svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{SupplierID: supplier.ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: supplier.ID,
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.Zero, UnitCost: decimal.NewFromInt(10)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePurchaseRequest(context.Background(), actor, CreatePRInput{
		SupplierID: uuid.New(),
		Items:      []PRItemInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(10)}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
