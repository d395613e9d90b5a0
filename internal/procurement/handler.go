package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the procurement module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.handleListSuppliers)
	r.Get("/suppliers/{id}", h.handleGetSupplier)
	r.Get("/purchase-requests", h.handleListPRs)
	r.Get("/purchase-requests/{id}", h.handleGetPR)
	r.Get("/purchase-orders", h.handleListPOs)
	r.Get("/purchase-orders/{id}", h.handleGetPO)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionProcurementWrite))
		r.Post("/suppliers", h.handleCreateSupplier)
		r.Post("/purchase-requests", h.handleCreatePR)
		r.Post("/purchase-requests/{id}/submit", h.handleSubmitPR)
		r.Post("/purchase-orders", h.handleCreatePO)
		r.Post("/purchase-orders/{id}/receive", h.handleReceivePO)
	})
}

type createSupplierRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=512"`
}

type prItemRequest struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitCost  float64 `json:"unitCost" validate:"gte=0"`
}

type createPRRequest struct {
	SupplierID string          `json:"supplierId" validate:"required,uuid"`
	Note       string          `json:"note" validate:"max=255"`
	Items      []prItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createPORequest struct {
	PurchaseRequestID string `json:"purchaseRequestId" validate:"required,uuid"`
	Note              string `json:"note" validate:"max=255"`
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createSupplierRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), actor, CreateSupplierInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) handleCreatePR(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createPRRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid supplier id")
		return
	}
	in := CreatePRInput{SupplierID: supplierID, Note: req.Note}
	for _, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid product id")
			return
		}
		in.Items = append(in.Items, PRItemInput{
			ProductID: productID,
			Quantity:  decimal.NewFromFloat(it.Quantity),
			UnitCost:  decimal.NewFromFloat(it.UnitCost),
		})
	}
	pr, err := h.service.CreatePurchaseRequest(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("create purchase request", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) handleSubmitPR(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	prID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid purchase request id")
		return
	}
	pr, err := h.service.SubmitPurchaseRequest(r.Context(), actor, prID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) handleCreatePO(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createPORequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	prID, err := uuid.Parse(req.PurchaseRequestID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid purchase request id")
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), actor, CreatePOInput{
		PurchaseRequestID: prID,
		Note:              req.Note,
	})
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleReceivePO(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	poID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid purchase order id")
		return
	}
	po, err := h.service.ReceivePurchaseOrder(r.Context(), actor, poID)
	if err != nil {
		h.logger.Error("receive purchase order", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	suppliers, err := h.service.ListSuppliers(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid supplier id")
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) handleListPRs(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := PRStatus(r.URL.Query().Get("status"))
	prs, err := h.service.ListPurchaseRequests(r.Context(), actor, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, prs)
}

func (h *Handler) handleGetPR(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid purchase request id")
		return
	}
	pr, items, err := h.service.GetPurchaseRequest(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": pr, "items": items})
}

func (h *Handler) handleListPOs(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := POStatus(r.URL.Query().Get("status"))
	pos, err := h.service.ListPurchaseOrders(r.Context(), actor, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pos)
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid purchase order id")
		return
	}
	po, items, err := h.service.GetPurchaseOrder(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": po, "items": items})
}
