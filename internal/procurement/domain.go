package procurement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Purchase request lifecycle statuses.
type PRStatus string

const (
	PRStatusDraft     PRStatus = "DRAFT"
	PRStatusSubmitted PRStatus = "SUBMITTED"
	PRStatusApproved  PRStatus = "APPROVED"
	PRStatusRejected  PRStatus = "REJECTED"
	PRStatusConverted PRStatus = "CONVERTED"
)

// Purchase order lifecycle statuses. A PO is born ISSUED from an approved
// PR; there is no draft stage.
type POStatus string

const (
	POStatusIssued   POStatus = "ISSUED"
	POStatusReceived POStatus = "RECEIVED"
)

// Supplier is an org-scoped vendor master record.
type Supplier struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// PurchaseRequest domain model. Line items freeze once the request leaves
// DRAFT.
type PurchaseRequest struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	BranchID    uuid.UUID
	SupplierID  uuid.UUID
	Number      string
	Status      PRStatus
	Note        string
	RequestedBy uuid.UUID
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	CreatedAt   time.Time
}

// PRItem represents a requested line.
type PRItem struct {
	ID                uuid.UUID
	PurchaseRequestID uuid.UUID
	ProductID         uuid.UUID
	Quantity          decimal.Decimal
	UnitCost          decimal.Decimal
	LineTotal         decimal.Decimal
}

// PurchaseOrder domain model. Items are copied from the source PR at
// creation time; prices are frozen, not re-derived.
type PurchaseOrder struct {
	ID                uuid.UUID
	OrgID             uuid.UUID
	BranchID          uuid.UUID
	SupplierID        uuid.UUID
	PurchaseRequestID uuid.UUID
	Number            string
	Status            POStatus
	Total             decimal.Decimal
	Note              string
	CreatedBy         uuid.UUID
	IssuedAt          time.Time
	ReceivedAt        *time.Time
}

// POItem is a frozen copy of a PR line.
type POItem struct {
	ID              uuid.UUID
	PurchaseOrderID uuid.UUID
	ProductID       uuid.UUID
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	LineTotal       decimal.Decimal
}

var (
	// ErrNotFound indicates a missing or out-of-org record.
	ErrNotFound = fmt.Errorf("procurement: %w", shared.ErrNotFound)
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = fmt.Errorf("procurement: %w", shared.ErrInvalidState)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: %w", shared.ErrValidation)
	// ErrPOExists occurs when a second purchase order targets the same PR.
	ErrPOExists = fmt.Errorf("procurement: purchase order already exists for request: %w", shared.ErrConflict)
)
