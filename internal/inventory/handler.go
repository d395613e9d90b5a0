package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/products/export", h.handleExportProducts)
	r.Get("/movements", h.handleListMovements)
	r.Get("/levels", h.handleListLevels)
	r.Get("/low-stock", h.handleLowStock)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionProductManage))
		r.Post("/products", h.handleCreateProduct)
		r.Patch("/products/{id}", h.handleUpdateProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionInventoryWrite))
		r.Post("/movements", h.handleRecordMovement)
	})
}

type createProductRequest struct {
	SKU               string  `json:"sku" validate:"required,max=64"`
	Name              string  `json:"name" validate:"required,max=255"`
	Unit              string  `json:"unit" validate:"max=32"`
	Cost              float64 `json:"cost" validate:"gte=0"`
	Price             float64 `json:"price" validate:"gte=0"`
	LowStockThreshold float64 `json:"lowStockThreshold" validate:"gte=0"`
}

type updateProductRequest struct {
	Cost              float64 `json:"cost" validate:"gte=0"`
	Price             float64 `json:"price" validate:"gte=0"`
	LowStockThreshold float64 `json:"lowStockThreshold" validate:"gte=0"`
}

type recordMovementRequest struct {
	ProductID      string  `json:"productId" validate:"required,uuid"`
	Type           string  `json:"type" validate:"required,oneof=IN OUT TRANSFER"`
	Quantity       float64 `json:"quantity" validate:"required,gt=0"`
	ToBranchID     string  `json:"toBranchId" validate:"omitempty,uuid"`
	Reference      string  `json:"reference" validate:"max=64"`
	Note           string  `json:"note" validate:"max=255"`
	IdempotencyKey string  `json:"idempotencyKey" validate:"max=128"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createProductRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), actor, CreateProductInput{
		SKU:               req.SKU,
		Name:              req.Name,
		Unit:              req.Unit,
		Cost:              decimal.NewFromFloat(req.Cost),
		Price:             decimal.NewFromFloat(req.Price),
		LowStockThreshold: decimal.NewFromFloat(req.LowStockThreshold),
	})
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid product id")
		return
	}
	var req updateProductRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	product, err := h.service.UpdateProductPricing(r.Context(), actor, productID, UpdatePricingInput{
		Cost:              decimal.NewFromFloat(req.Cost),
		Price:             decimal.NewFromFloat(req.Price),
		LowStockThreshold: decimal.NewFromFloat(req.LowStockThreshold),
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req recordMovementRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid product id")
		return
	}
	input := RecordMovementInput{
		ProductID:      productID,
		Type:           MovementType(req.Type),
		Quantity:       decimal.NewFromFloat(req.Quantity),
		Reference:      req.Reference,
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.ToBranchID != "" {
		toBranch, err := uuid.Parse(req.ToBranchID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid destination branch id")
			return
		}
		input.ToBranchID = &toBranch
	}
	level, err := h.service.RecordMovement(r.Context(), actor, input)
	if err != nil {
		h.logger.Error("record movement", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, level)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	products, err := h.service.ListProducts(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleExportProducts(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	if err := h.service.ExportProductsCSV(r.Context(), actor, w); err != nil {
		h.logger.Error("export products", slog.Any("error", err))
	}
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), actor, limit)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	rows, err := h.service.LowStock(r.Context(), actor.OrgID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var branchID *uuid.UUID
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid branch id")
			return
		}
		branchID = &id
	}
	levels, err := h.service.ListLevels(r.Context(), actor, branchID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}
