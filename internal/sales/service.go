package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts storage for the sales service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetCustomer(ctx context.Context, orgID, id uuid.UUID) (Customer, error)
	ListCustomers(ctx context.Context, orgID uuid.UUID) ([]Customer, error)
	GetInvoice(ctx context.Context, orgID, id uuid.UUID) (Invoice, []InvoiceItem, error)
	ListInvoices(ctx context.Context, orgID uuid.UUID, status InvoiceStatus) ([]Invoice, error)
	ListPayments(ctx context.Context, orgID, invoiceID uuid.UUID) ([]Payment, error)
}

// Service implements the invoice lifecycle: draft, issue with stock
// deduction, and payment settlement.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

type CreateCustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (s *Service) CreateCustomer(ctx context.Context, actor rbac.Actor, in CreateCustomerInput) (Customer, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSalesWrite) {
		return Customer{}, fmt.Errorf("create customer: %w", shared.ErrForbidden)
	}
	if in.Name == "" {
		return Customer{}, fmt.Errorf("customer name is required: %w", ErrValidation)
	}

	customer := Customer{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertCustomer(ctx, customer); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "CUSTOMER",
			EntityID: customer.ID.String(),
			Details:  map[string]any{"name": customer.Name},
			At:       customer.CreatedAt,
		})
	})
	if err != nil {
		return Customer{}, err
	}
	return customer, nil
}

type InvoiceItemInput struct {
	ProductID   *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type CreateInvoiceInput struct {
	CustomerID uuid.UUID
	TaxRate    decimal.Decimal
	Note       string
	Items      []InvoiceItemInput
}

// CreateInvoice derives subtotal, tax and total from the lines and stores
// a DRAFT invoice with its document number. Stock is untouched until issue.
func (s *Service) CreateInvoice(ctx context.Context, actor rbac.Actor, in CreateInvoiceInput) (Invoice, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSalesWrite) {
		return Invoice{}, fmt.Errorf("create invoice: %w", shared.ErrForbidden)
	}
	if actor.BranchID == nil {
		return Invoice{}, fmt.Errorf("actor has no branch: %w", ErrValidation)
	}
	if len(in.Items) == 0 {
		return Invoice{}, fmt.Errorf("invoice needs at least one item: %w", ErrValidation)
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Invoice{}, fmt.Errorf("tax rate must be between 0 and 1: %w", ErrValidation)
	}
	for _, it := range in.Items {
		if it.Description == "" {
			return Invoice{}, fmt.Errorf("item description is required: %w", ErrValidation)
		}
		if !it.Quantity.IsPositive() {
			return Invoice{}, fmt.Errorf("item quantity must be positive: %w", ErrValidation)
		}
		if it.UnitPrice.IsNegative() {
			return Invoice{}, fmt.Errorf("item unit price must not be negative: %w", ErrValidation)
		}
	}

	if _, err := s.repo.GetCustomer(ctx, actor.OrgID, in.CustomerID); err != nil {
		return Invoice{}, err
	}

	subtotal := decimal.Zero
	for _, it := range in.Items {
		subtotal = subtotal.Add(it.Quantity.Mul(it.UnitPrice))
	}
	taxAmount := subtotal.Mul(in.TaxRate)

	now := s.now().UTC()
	inv := Invoice{
		ID:         uuid.New(),
		OrgID:      actor.OrgID,
		BranchID:   *actor.BranchID,
		CustomerID: in.CustomerID,
		Status:     InvoiceStatusDraft,
		Subtotal:   subtotal,
		TaxRate:    in.TaxRate,
		TaxAmount:  taxAmount,
		Total:      subtotal.Add(taxAmount),
		Note:       in.Note,
		CreatedBy:  actor.UserID,
		CreatedAt:  now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocNumber(ctx, actor.OrgID, numbering.PrefixInvoice, now)
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		for _, it := range in.Items {
			if err := tx.InsertInvoiceItem(ctx, InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				ProductID:   it.ProductID,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				LineTotal:   it.Quantity.Mul(it.UnitPrice),
			}); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "INVOICE",
			EntityID: inv.ID.String(),
			Details:  map[string]any{"number": inv.Number, "total": inv.Total.String()},
			At:       now,
		})
	})
	if err != nil {
		return Invoice{}, err
	}

	s.logger.Info("invoice created",
		slog.String("number", inv.Number),
		slog.String("total", inv.Total.String()),
	)
	return inv, nil
}

// IssueInvoice moves a DRAFT invoice to ISSUED and posts one OUT stock
// movement per product line, all inside a single transaction. Lines without
// a product are billed only. Insufficient stock on any line rolls back the
// whole issue, including the status change.
func (s *Service) IssueInvoice(ctx context.Context, actor rbac.Actor, invoiceID uuid.UUID) (Invoice, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSalesWrite) {
		return Invoice{}, fmt.Errorf("issue invoice: %w", shared.ErrForbidden)
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, actor.OrgID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceStatusDraft {
			return fmt.Errorf("invoice %s is %s, only drafts can be issued: %w", inv.Number, inv.Status, ErrInvalidState)
		}

		items, err := tx.GetInvoiceItems(ctx, inv.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, it := range items {
			if it.ProductID == nil {
				continue
			}
			if _, err := inventory.ApplyMovement(ctx, tx, inventory.ApplyInput{
				OrgID:     inv.OrgID,
				BranchID:  inv.BranchID,
				ProductID: *it.ProductID,
				Type:      inventory.MovementOut,
				Quantity:  it.Quantity,
				Reference: inv.Number,
				Note:      "invoice issue",
				ActorID:   &actor.UserID,
				At:        now,
			}); err != nil {
				return err
			}
		}

		if err := tx.SetInvoiceIssued(ctx, inv.ID, now); err != nil {
			return err
		}
		inv.Status = InvoiceStatusIssued
		inv.IssuedAt = &now

		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &inv.BranchID,
			ActorID:  &actor.UserID,
			Action:   "STATUS_CHANGE",
			Entity:   "INVOICE",
			EntityID: inv.ID.String(),
			Details:  map[string]any{"number": inv.Number, "from": string(InvoiceStatusDraft), "to": string(InvoiceStatusIssued)},
			At:       now,
		})
	})
	if err != nil {
		return Invoice{}, err
	}

	s.logger.Info("invoice issued", slog.String("number", inv.Number))
	return inv, nil
}

type RecordPaymentInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Reference string
}

// RecordPayment settles an amount against an issued invoice. The payment
// and the paid-total recomputation happen in one transaction; when payments
// cover the total the invoice flips to PAID.
func (s *Service) RecordPayment(ctx context.Context, actor rbac.Actor, in RecordPaymentInput) (Payment, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionSalesWrite) {
		return Payment{}, fmt.Errorf("record payment: %w", shared.ErrForbidden)
	}
	if !in.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("payment amount must be positive: %w", ErrValidation)
	}

	now := s.now().UTC()
	payment := Payment{
		ID:         uuid.New(),
		OrgID:      actor.OrgID,
		InvoiceID:  in.InvoiceID,
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  in.Reference,
		ReceivedBy: actor.UserID,
		PaidAt:     now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, actor.OrgID, in.InvoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoiceStatusIssued:
		case InvoiceStatusDraft:
			return fmt.Errorf("invoice %s: %w", inv.Number, ErrInvoiceNotIssued)
		default:
			return fmt.Errorf("invoice %s is already %s: %w", inv.Number, inv.Status, ErrInvalidState)
		}

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		paid, err := tx.SumPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		if paid.GreaterThanOrEqual(inv.Total) {
			if err := tx.SetInvoicePaid(ctx, inv.ID, now); err != nil {
				return err
			}
			if err := tx.RecordAudit(ctx, shared.AuditLog{
				OrgID:    actor.OrgID,
				BranchID: &inv.BranchID,
				ActorID:  &actor.UserID,
				Action:   "STATUS_CHANGE",
				Entity:   "INVOICE",
				EntityID: inv.ID.String(),
				Details:  map[string]any{"number": inv.Number, "from": string(InvoiceStatusIssued), "to": string(InvoiceStatusPaid)},
				At:       now,
			}); err != nil {
				return err
			}
		}

		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: &inv.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "PAYMENT",
			EntityID: payment.ID.String(),
			Details:  map[string]any{"invoice": inv.Number, "amount": payment.Amount.String(), "paid": paid.String()},
			At:       now,
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (s *Service) GetCustomer(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Customer, error) {
	return s.repo.GetCustomer(ctx, actor.OrgID, id)
}

func (s *Service) ListCustomers(ctx context.Context, actor rbac.Actor) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, actor.OrgID)
}

func (s *Service) GetInvoice(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Invoice, []InvoiceItem, error) {
	return s.repo.GetInvoice(ctx, actor.OrgID, id)
}

func (s *Service) ListInvoices(ctx context.Context, actor rbac.Actor, status InvoiceStatus) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, actor.OrgID, status)
}

func (s *Service) ListPayments(ctx context.Context, actor rbac.Actor, invoiceID uuid.UUID) ([]Payment, error) {
	return s.repo.ListPayments(ctx, actor.OrgID, invoiceID)
}
