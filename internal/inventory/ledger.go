package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLevelNotFound indicates a missing stock level row.
var ErrLevelNotFound = errors.New("inventory: stock level not found")

// LedgerTx exposes the row operations ApplyMovement needs. Modules whose
// transactions touch stock (sales issue, purchase order receipt) embed it
// in their own TxRepository so the ledger mutates inside their unit of work.
type LedgerTx interface {
	GetLevelForUpdate(ctx context.Context, orgID, branchID, productID uuid.UUID) (StockLevel, error)
	UpsertLevel(ctx context.Context, level StockLevel) error
	InsertMovement(ctx context.Context, movement StockMovement) error
}

// ApplyInput describes one quantity change.
type ApplyInput struct {
	OrgID      uuid.UUID
	BranchID   uuid.UUID
	ProductID  uuid.UUID
	Type       MovementType
	Quantity   decimal.Decimal
	ToBranchID *uuid.UUID
	Reference  string
	Note       string
	ActorID    *uuid.UUID
	At         time.Time
}

// ApplyMovement checks, decrements or increments the stock level and
// appends the movement row, all against the caller's transaction. The
// check-then-act sequence is safe because GetLevelForUpdate takes a row
// lock: two concurrent OUT movements racing for the last unit serialize,
// and the loser observes the decremented balance.
func ApplyMovement(ctx context.Context, tx LedgerTx, in ApplyInput) (StockLevel, error) {
	if !in.Type.Valid() {
		return StockLevel{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, in.Type)
	}
	if !in.Quantity.IsPositive() {
		return StockLevel{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidMovement)
	}
	if in.Type == MovementTransfer {
		if in.ToBranchID == nil {
			return StockLevel{}, fmt.Errorf("%w: transfer requires destination branch", ErrInvalidMovement)
		}
		if *in.ToBranchID == in.BranchID {
			return StockLevel{}, fmt.Errorf("%w: transfer destination equals source", ErrInvalidMovement)
		}
	}
	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}

	level, err := tx.GetLevelForUpdate(ctx, in.OrgID, in.BranchID, in.ProductID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return StockLevel{}, err
	}
	if errors.Is(err, ErrLevelNotFound) {
		level = StockLevel{OrgID: in.OrgID, BranchID: in.BranchID, ProductID: in.ProductID, Quantity: decimal.Zero}
	}

	switch in.Type {
	case MovementIn:
		level.Quantity = level.Quantity.Add(in.Quantity)
	case MovementOut, MovementTransfer:
		if level.Quantity.LessThan(in.Quantity) {
			return StockLevel{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientStock, level.Quantity, in.Quantity)
		}
		level.Quantity = level.Quantity.Sub(in.Quantity)
	}
	level.UpdatedAt = in.At
	if err := tx.UpsertLevel(ctx, level); err != nil {
		return StockLevel{}, err
	}

	movement := StockMovement{
		ID:         uuid.New(),
		OrgID:      in.OrgID,
		BranchID:   in.BranchID,
		ProductID:  in.ProductID,
		Type:       in.Type,
		Quantity:   in.Quantity,
		ToBranchID: in.ToBranchID,
		Reference:  in.Reference,
		Note:       in.Note,
		CreatedBy:  in.ActorID,
		CreatedAt:  in.At,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return StockLevel{}, err
	}

	if in.Type == MovementTransfer {
		dest, err := tx.GetLevelForUpdate(ctx, in.OrgID, *in.ToBranchID, in.ProductID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return StockLevel{}, err
		}
		if errors.Is(err, ErrLevelNotFound) {
			dest = StockLevel{OrgID: in.OrgID, BranchID: *in.ToBranchID, ProductID: in.ProductID, Quantity: decimal.Zero}
		}
		dest.Quantity = dest.Quantity.Add(in.Quantity)
		dest.UpdatedAt = in.At
		if err := tx.UpsertLevel(ctx, dest); err != nil {
			return StockLevel{}, err
		}
	}

	return level, nil
}
