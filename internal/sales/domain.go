package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Invoice lifecycle statuses.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
)

// Customer is an org-scoped buyer master record.
type Customer struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// Invoice domain model. Monetary fields are derived once at creation and
// never recomputed afterwards.
type Invoice struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	BranchID   uuid.UUID
	CustomerID uuid.UUID
	Number     string
	Status     InvoiceStatus
	Subtotal   decimal.Decimal
	TaxRate    decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	Note       string
	CreatedBy  uuid.UUID
	IssuedAt   *time.Time
	PaidAt     *time.Time
	CreatedAt  time.Time
}

// InvoiceItem is one billed line. ProductID is optional: lines without a
// product (services, fees) are billed but never touch stock on issue.
type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ProductID   *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment is a settlement against an issued invoice. Payments accumulate;
// the invoice flips to PAID when their sum covers the total.
type Payment struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	InvoiceID  uuid.UUID
	Amount     decimal.Decimal
	Method     string
	Reference  string
	ReceivedBy uuid.UUID
	PaidAt     time.Time
}

var (
	// ErrNotFound indicates a missing or out-of-org record.
	ErrNotFound = fmt.Errorf("sales: %w", shared.ErrNotFound)
	// ErrInvalidState occurs when an action violates the invoice workflow.
	ErrInvalidState = fmt.Errorf("sales: %w", shared.ErrInvalidState)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("sales: %w", shared.ErrValidation)
	// ErrInvoiceNotIssued occurs when a payment targets a draft invoice.
	ErrInvoiceNotIssued = fmt.Errorf("sales: invoice is not issued: %w", shared.ErrInvalidState)
)
