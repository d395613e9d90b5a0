package approvals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status enumerates approval lifecycle values.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// EntityType names the document kind an approval guards.
type EntityType string

const (
	EntityPurchaseRequest EntityType = "PURCHASE_REQUEST"
	EntityExpense         EntityType = "EXPENSE"
)

// Approval is a generic pending decision record. One approval exists per
// submitted entity requiring sign-off; it is resolved exactly once.
type Approval struct {
	ID                uuid.UUID
	OrgID             uuid.UUID
	BranchID          *uuid.UUID
	EntityType        EntityType
	EntityID          uuid.UUID
	PurchaseRequestID *uuid.UUID
	Status            Status
	RequestedBy       uuid.UUID
	ApproverID        *uuid.UUID
	Note              string
	RequestedAt       time.Time
	ActedAt           *time.Time
}

var (
	// ErrNotFound indicates a missing or out-of-org approval.
	ErrNotFound = fmt.Errorf("approvals: %w", shared.ErrNotFound)
	// ErrAlreadyDecided occurs when an approval is resolved twice.
	ErrAlreadyDecided = fmt.Errorf("approvals: already decided: %w", shared.ErrConflict)
	// ErrInvalidDecision indicates a decision other than APPROVED/REJECTED.
	ErrInvalidDecision = fmt.Errorf("approvals: decision %w", shared.ErrValidation)
)
