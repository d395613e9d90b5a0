package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, orgID uuid.UUID) ([]Product, error)
	ListMovements(ctx context.Context, orgID uuid.UUID, limit int) ([]StockMovement, error)
	ListLevels(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID) ([]StockLevel, error)
	LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, error)
}

// Service coordinates stock ledger operations.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	cache       *LowStockCache
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idempotency: idem, logger: logger}
}

// WithLowStockCache enables redis memoization of the low-stock scan.
func (s *Service) WithLowStockCache(c *LowStockCache) *Service {
	s.cache = c
	return s
}

// RecordMovementInput describes a manual stock movement request.
type RecordMovementInput struct {
	ProductID      uuid.UUID
	Type           MovementType
	Quantity       decimal.Decimal
	ToBranchID     *uuid.UUID
	Reference      string
	Note           string
	IdempotencyKey string
}

// RecordMovement posts an IN, OUT or TRANSFER movement against the acting
// user's branch. Level check, level mutation, movement row and audit row
// commit in one transaction.
func (s *Service) RecordMovement(ctx context.Context, actor rbac.Actor, input RecordMovementInput) (StockLevel, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionInventoryWrite) {
		return StockLevel{}, shared.ErrForbidden
	}
	if actor.BranchID == nil {
		return StockLevel{}, fmt.Errorf("%w: actor has no branch", ErrInvalidMovement)
	}
	product, err := s.repo.GetProduct(ctx, actor.OrgID, input.ProductID)
	if err != nil {
		return StockLevel{}, err
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return StockLevel{}, fmt.Errorf("inventory: duplicate movement: %w", shared.ErrConflict)
			}
			return StockLevel{}, err
		}
		insertedKey = true
	}

	var level StockLevel
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetLevelForUpdate(ctx, actor.OrgID, *actor.BranchID, product.ID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		level, err = ApplyMovement(ctx, tx, ApplyInput{
			OrgID:      actor.OrgID,
			BranchID:   *actor.BranchID,
			ProductID:  product.ID,
			Type:       input.Type,
			Quantity:   input.Quantity,
			ToBranchID: input.ToBranchID,
			Reference:  input.Reference,
			Note:       input.Note,
			ActorID:    &actor.UserID,
		})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "POST",
			Entity:   "STOCK_MOVEMENT",
			EntityID: product.ID.String(),
			Details: map[string]any{
				"sku":      product.SKU,
				"type":     string(input.Type),
				"quantity": input.Quantity.String(),
				"from_qty": before.Quantity.String(),
				"to_qty":   level.Quantity.String(),
			},
		})
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return StockLevel{}, err
	}
	s.cache.Invalidate(ctx, actor.OrgID)
	return level, nil
}

// CreateProductInput describes a new SKU.
type CreateProductInput struct {
	SKU               string
	Name              string
	Unit              string
	Cost              decimal.Decimal
	Price             decimal.Decimal
	LowStockThreshold decimal.Decimal
}

// CreateProduct registers a product for the organization.
func (s *Service) CreateProduct(ctx context.Context, actor rbac.Actor, input CreateProductInput) (Product, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProductManage) {
		return Product{}, shared.ErrForbidden
	}
	if input.SKU == "" || input.Name == "" {
		return Product{}, fmt.Errorf("inventory: sku and name required: %w", shared.ErrValidation)
	}
	if input.Cost.IsNegative() || input.Price.IsNegative() {
		return Product{}, fmt.Errorf("inventory: cost and price must be >= 0: %w", shared.ErrValidation)
	}
	product := Product{
		ID:                uuid.New(),
		OrgID:             actor.OrgID,
		SKU:               input.SKU,
		Name:              input.Name,
		Unit:              input.Unit,
		Cost:              input.Cost,
		Price:             input.Price,
		LowStockThreshold: input.LowStockThreshold,
		CreatedAt:         time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "CREATE",
			Entity:   "PRODUCT",
			EntityID: product.ID.String(),
			Details:  map[string]any{"sku": product.SKU, "name": product.Name},
		})
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// UpdatePricingInput carries the mutable product fields.
type UpdatePricingInput struct {
	Cost              decimal.Decimal
	Price             decimal.Decimal
	LowStockThreshold decimal.Decimal
}

// UpdateProductPricing updates cost, price and low-stock threshold.
func (s *Service) UpdateProductPricing(ctx context.Context, actor rbac.Actor, productID uuid.UUID, input UpdatePricingInput) (Product, error) {
	if !rbac.Allowed(actor.Role, rbac.ActionProductManage) {
		return Product{}, shared.ErrForbidden
	}
	if input.Cost.IsNegative() || input.Price.IsNegative() {
		return Product{}, fmt.Errorf("inventory: cost and price must be >= 0: %w", shared.ErrValidation)
	}
	product, err := s.repo.GetProduct(ctx, actor.OrgID, productID)
	if err != nil {
		return Product{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProductPricing(ctx, actor.OrgID, productID, input.Cost, input.Price, input.LowStockThreshold); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			BranchID: actor.BranchID,
			ActorID:  &actor.UserID,
			Action:   "UPDATE",
			Entity:   "PRODUCT",
			EntityID: productID.String(),
			Details: map[string]any{
				"sku":        product.SKU,
				"from_cost":  product.Cost.String(),
				"to_cost":    input.Cost.String(),
				"from_price": product.Price.String(),
				"to_price":   input.Price.String(),
			},
		})
	})
	if err != nil {
		return Product{}, err
	}
	product.Cost = input.Cost
	product.Price = input.Price
	product.LowStockThreshold = input.LowStockThreshold
	return product, nil
}

// ListProducts returns the org's products.
func (s *Service) ListProducts(ctx context.Context, actor rbac.Actor) ([]Product, error) {
	return s.repo.ListProducts(ctx, actor.OrgID)
}

// ListMovements returns recent movements.
func (s *Service) ListMovements(ctx context.Context, actor rbac.Actor, limit int) ([]StockMovement, error) {
	return s.repo.ListMovements(ctx, actor.OrgID, limit)
}

// ListLevels returns current balances.
func (s *Service) ListLevels(ctx context.Context, actor rbac.Actor, branchID *uuid.UUID) ([]StockLevel, error) {
	return s.repo.ListLevels(ctx, actor.OrgID, branchID)
}

// LowStock lists balances under their product threshold. Results are
// served from the redis cache when one is configured; movements posted
// through other modules rely on the TTL rather than invalidation.
func (s *Service) LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, error) {
	if rows, ok := s.cache.Get(ctx, orgID); ok {
		return rows, nil
	}
	rows, err := s.repo.LowStock(ctx, orgID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, orgID, rows)
	return rows, nil
}
