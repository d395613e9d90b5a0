package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/approvals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the procurement service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetSupplier(ctx context.Context, orgID, id uuid.UUID) (Supplier, error)
	ListSuppliers(ctx context.Context, orgID uuid.UUID) ([]Supplier, error)
	GetPurchaseRequest(ctx context.Context, orgID, id uuid.UUID) (PurchaseRequest, []PRItem, error)
	ListPurchaseRequests(ctx context.Context, orgID uuid.UUID, status PRStatus) ([]PurchaseRequest, error)
	GetPurchaseOrder(ctx context.Context, orgID, id uuid.UUID) (PurchaseOrder, []POItem, error)
	ListPurchaseOrders(ctx context.Context, orgID uuid.UUID, status POStatus) ([]PurchaseOrder, error)
}

// Service implements the purchase request and purchase order workflows.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateSupplierInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (s *Service) CreateSupplier(ctx context.Context, actor rbac.Actor, in CreateSupplierInput) (Supplier, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProcurementWrite) {
		return Supplier{}, fmt.Errorf("create supplier: %w", shared.ErrForbidden)
	}
	if in.Name == "" {
		return Supplier{}, fmt.Errorf("supplier name is required: %w", ErrValidation)
	}

	supplier := Supplier{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: s.now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertSupplier(ctx, supplier); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "SUPPLIER",
			EntityID: supplier.ID.String(),
			Details:  map[string]any{"name": supplier.Name},
			At:       supplier.CreatedAt,
		})
	})
	if err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

type PRItemInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

type CreatePRInput struct {
	SupplierID uuid.UUID
	Note       string
	Items      []PRItemInput
}

// CreatePurchaseRequest creates a DRAFT request with its lines and a
// document number in one transaction.
func (s *Service) CreatePurchaseRequest(ctx context.Context, actor rbac.Actor, in CreatePRInput) (PurchaseRequest, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProcurementWrite) {
		return PurchaseRequest{}, fmt.Errorf("create purchase request: %w", shared.ErrForbidden)
	}
	if actor.BranchID == nil {
		return PurchaseRequest{}, fmt.Errorf("actor has no branch: %w", ErrValidation)
	}
	if len(in.Items) == 0 {
		return PurchaseRequest{}, fmt.Errorf("purchase request needs at least one item: %w", ErrValidation)
	}
	for _, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return PurchaseRequest{}, fmt.Errorf("item quantity must be positive: %w", ErrValidation)
		}
		if it.UnitCost.IsNegative() {
			return PurchaseRequest{}, fmt.Errorf("item unit cost must not be negative: %w", ErrValidation)
		}
	}

	if _, err := s.repo.GetSupplier(ctx, actor.OrgID, in.SupplierID); err != nil {
		return PurchaseRequest{}, err
	}

	now := s.now().UTC()
	pr := PurchaseRequest{
		ID:          uuid.New(),
		OrgID:       actor.OrgID,
		BranchID:    *actor.BranchID,
		SupplierID:  in.SupplierID,
		Status:      PRStatusDraft,
		Note:        in.Note,
		RequestedBy: actor.UserID,
		CreatedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, actor.OrgID, numbering.PrefixPurchaseRequest, now)
		if err != nil {
			return err
		}
		pr.Number = number
		if err := tx.InsertPurchaseRequest(ctx, pr); err != nil {
			return err
		}
		for _, it := range in.Items {
			item := PRItem{
				ID:                uuid.New(),
				PurchaseRequestID: pr.ID,
				ProductID:         it.ProductID,
				Quantity:          it.Quantity,
				UnitCost:          it.UnitCost,
				LineTotal:         it.Quantity.Mul(it.UnitCost),
			}
			if err := tx.InsertPRItem(ctx, item); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "PURCHASE_REQUEST",
			EntityID: pr.ID.String(),
			Details:  map[string]any{"number": pr.Number, "items": len(in.Items)},
			At:       now,
		})
	})
	if err != nil {
		return PurchaseRequest{}, err
	}

	s.logger.Info("purchase request created",
		slog.String("number", pr.Number),
		slog.String("org_id", actor.OrgID.String()),
	)
	return pr, nil
}

// SubmitPurchaseRequest moves a DRAFT request to SUBMITTED and opens a
// pending approval in the same transaction.
func (s *Service) SubmitPurchaseRequest(ctx context.Context, actor rbac.Actor, prID uuid.UUID) (PurchaseRequest, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProcurementWrite) {
		return PurchaseRequest{}, fmt.Errorf("submit purchase request: %w", shared.ErrForbidden)
	}

	var pr PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = tx.GetPRForUpdate(ctx, actor.OrgID, prID)
		if err != nil {
			return err
		}
		if pr.Status != PRStatusDraft {
			return fmt.Errorf("purchase request %s is %s, only drafts can be submitted: %w", pr.Number, pr.Status, ErrInvalidState)
		}
		if err := tx.SetPRStatus(ctx, pr.ID, PRStatusSubmitted); err != nil {
			return err
		}

		now := s.now().UTC()
		prID := pr.ID
		if err := tx.InsertApproval(ctx, approvals.Approval{
			ID:                uuid.New(),
			OrgID:             actor.OrgID,
			BranchID:          &pr.BranchID,
			EntityType:        approvals.EntityPurchaseRequest,
			EntityID:          pr.ID,
			PurchaseRequestID: &prID,
			Status:            approvals.StatusPending,
			RequestedBy:       actor.UserID,
			RequestedAt:       now,
		}); err != nil {
			return err
		}

		pr.Status = PRStatusSubmitted
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &pr.BranchID,
			ActorID:  &actor.UserID,
			Action:   "SUBMIT",
			Entity:   "PURCHASE_REQUEST",
			EntityID: pr.ID.String(),
			Details:  map[string]any{"number": pr.Number, "from": string(PRStatusDraft), "to": string(PRStatusSubmitted)},
			At:       now,
		})
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	return pr, nil
}

type CreatePOInput struct {
	PurchaseRequestID uuid.UUID
	Note              string
}

// CreatePurchaseOrder converts an APPROVED purchase request into an ISSUED
// purchase order. Items and prices are frozen copies of the request lines;
// the request moves to CONVERTED in the same transaction. At most one order
// may exist per request.
func (s *Service) CreatePurchaseOrder(ctx context.Context, actor rbac.Actor, in CreatePOInput) (PurchaseOrder, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProcurementWrite) {
		return PurchaseOrder{}, fmt.Errorf("create purchase order: %w", shared.ErrForbidden)
	}

	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetPRForUpdate(ctx, actor.OrgID, in.PurchaseRequestID)
		if err != nil {
			return err
		}
		switch pr.Status {
		case PRStatusApproved:
		case PRStatusConverted:
			return ErrPOExists
		default:
			return fmt.Errorf("purchase request %s is %s, only approved requests convert: %w", pr.Number, pr.Status, ErrInvalidState)
		}

		items, err := tx.GetPRItems(ctx, pr.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		number, err := tx.NextDocNumber(ctx, actor.OrgID, numbering.PrefixPurchaseOrder, now)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.LineTotal)
		}

		po = PurchaseOrder{
			ID:                uuid.New(),
			OrgID:             actor.OrgID,
			BranchID:          pr.BranchID,
			SupplierID:        pr.SupplierID,
			PurchaseRequestID: pr.ID,
			Number:            number,
			Status:            POStatusIssued,
			Total:             total,
			Note:              in.Note,
			CreatedBy:         actor.UserID,
			IssuedAt:          now,
		}
		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.InsertPOItem(ctx, POItem{
				ID:              uuid.New(),
				PurchaseOrderID: po.ID,
				ProductID:       it.ProductID,
				Quantity:        it.Quantity,
				UnitCost:        it.UnitCost,
				LineTotal:       it.LineTotal,
			}); err != nil {
				return err
			}
		}
		if err := tx.SetPRStatus(ctx, pr.ID, PRStatusConverted); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &pr.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "PURCHASE_ORDER",
			EntityID: po.ID.String(),
			Details:  map[string]any{"number": po.Number, "purchase_request": pr.Number, "total": po.Total.String()},
			At:       now,
		})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.logger.Info("purchase order issued",
		slog.String("number", po.Number),
		slog.String("total", po.Total.String()),
	)
	return po, nil
}

// ReceivePurchaseOrder marks an ISSUED order received and posts one IN
// stock movement per line, all inside a single transaction. A failure on
// any line rolls back the whole receipt.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, actor rbac.Actor, poID uuid.UUID) (PurchaseOrder, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProcurementWrite) {
		return PurchaseOrder{}, fmt.Errorf("receive purchase order: %w", shared.ErrForbidden)
	}

	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPOForUpdate(ctx, actor.OrgID, poID)
		if err != nil {
			return err
		}
		if po.Status != POStatusIssued {
			return fmt.Errorf("purchase order %s is %s, only issued orders can be received: %w", po.Number, po.Status, ErrInvalidState)
		}

		items, err := tx.GetPOItems(ctx, po.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, it := range items {
			if _, err := inventory.ApplyMovement(ctx, tx, inventory.ApplyInput{
				OrgID:     po.OrgID,
				BranchID:  po.BranchID,
				ProductID: it.ProductID,
				Type:      inventory.MovementIn,
				Quantity:  it.Quantity,
				Reference: po.Number,
				Note:      "purchase order receipt",
				ActorID:   &actor.UserID,
				At:        now,
			}); err != nil {
				return err
			}
		}

		if err := tx.SetPOReceived(ctx, po.ID, now); err != nil {
			return err
		}
		po.Status = POStatusReceived
		po.ReceivedAt = &now

		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &po.BranchID,
			ActorID:  &actor.UserID,
			Action:   "STATUS_CHANGE",
			Entity:   "PURCHASE_ORDER",
			EntityID: po.ID.String(),
			Details:  map[string]any{"number": po.Number, "from": string(POStatusIssued), "to": string(POStatusReceived)},
			At:       now,
		})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.logger.Info("purchase order received", slog.String("number", po.Number))
	return po, nil
}

func (s *Service) GetSupplier(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Supplier, error) {
	return s.repo.GetSupplier(ctx, actor.OrgID, id)
}

func (s *Service) ListSuppliers(ctx context.Context, actor rbac.Actor) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, actor.OrgID)
}

func (s *Service) GetPurchaseRequest(ctx context.Context, actor rbac.Actor, id uuid.UUID) (PurchaseRequest, []PRItem, error) {
	return s.repo.GetPurchaseRequest(ctx, actor.OrgID, id)
}

func (s *Service) ListPurchaseRequests(ctx context.Context, actor rbac.Actor, status PRStatus) ([]PurchaseRequest, error) {
	return s.repo.ListPurchaseRequests(ctx, actor.OrgID, status)
}

func (s *Service) GetPurchaseOrder(ctx context.Context, actor rbac.Actor, id uuid.UUID) (PurchaseOrder, []POItem, error) {
	return s.repo.GetPurchaseOrder(ctx, actor.OrgID, id)
}

func (s *Service) ListPurchaseOrders(ctx context.Context, actor rbac.Actor, status POStatus) ([]PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx, actor.OrgID, status)
}
