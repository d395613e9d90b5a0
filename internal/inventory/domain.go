package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
	// MovementTransfer moves stock to another branch; the row records the
	// source-side decrement, the destination gets a level increment only.
	MovementTransfer MovementType = "TRANSFER"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementTransfer:
		return true
	}
	return false
}

// Product is an org-scoped SKU. Identity is immutable; cost, price and
// the low-stock threshold change through authorized updates.
type Product struct {
	ID                uuid.UUID
	OrgID             uuid.UUID
	SKU               string
	Name              string
	Unit              string
	Cost              decimal.Decimal
	Price             decimal.Decimal
	LowStockThreshold decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StockLevel is the running quantity balance per (org, branch, product).
// Created lazily on first movement, never deleted.
type StockLevel struct {
	OrgID     uuid.UUID
	BranchID  uuid.UUID
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

// StockMovement is the immutable log entry explaining a level change.
type StockMovement struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	BranchID   uuid.UUID
	ProductID  uuid.UUID
	Type       MovementType
	Quantity   decimal.Decimal
	ToBranchID *uuid.UUID
	Reference  string
	Note       string
	CreatedBy  *uuid.UUID
	CreatedAt  time.Time
}

// SignedQuantity returns the movement's effect on its source branch:
// IN is positive, OUT and TRANSFER are negative.
func (m StockMovement) SignedQuantity() decimal.Decimal {
	if m.Type == MovementIn {
		return m.Quantity
	}
	return m.Quantity.Neg()
}

var (
	// ErrInsufficientStock occurs when an outbound quantity exceeds the balance.
	ErrInsufficientStock = fmt.Errorf("inventory: %w", shared.ErrInsufficientStock)
	// ErrProductNotFound indicates a missing or out-of-org product.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrInvalidMovement indicates a malformed movement request.
	ErrInvalidMovement = fmt.Errorf("inventory: movement %w", shared.ErrValidation)
)
