package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.handleListCustomers)
	r.Get("/customers/{id}", h.handleGetCustomer)
	r.Get("/invoices", h.handleListInvoices)
	r.Get("/invoices/export", h.handleExportInvoices)
	r.Get("/invoices/{id}", h.handleGetInvoice)
	r.Get("/invoices/{id}/payments", h.handleListPayments)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionSalesWrite))
		r.Post("/customers", h.handleCreateCustomer)
		r.Post("/invoices", h.handleCreateInvoice)
		r.Post("/invoices/{id}/issue", h.handleIssueInvoice)
		r.Post("/invoices/{id}/payments", h.handleRecordPayment)
	})
}

type createCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=512"`
}

type invoiceItemRequest struct {
	ProductID   string  `json:"productId" validate:"omitempty,uuid"`
	Description string  `json:"description" validate:"required,min=2,max=150"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

type createInvoiceRequest struct {
	CustomerID string               `json:"customerId" validate:"required,uuid"`
	TaxRate    float64              `json:"taxRate" validate:"gte=0,lte=1"`
	Note       string               `json:"note" validate:"max=255"`
	Items      []invoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

type recordPaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"max=32"`
	Reference string  `json:"reference" validate:"max=64"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createCustomerRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), actor, CreateCustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createInvoiceRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid customer id")
		return
	}
	in := CreateInvoiceInput{
		CustomerID: customerID,
		TaxRate:    decimal.NewFromFloat(req.TaxRate),
		Note:       req.Note,
	}
	for _, it := range req.Items {
		var productID *uuid.UUID
		if it.ProductID != "" {
			parsed, err := uuid.Parse(it.ProductID)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid product id")
				return
			}
			productID = &parsed
		}
		in.Items = append(in.Items, InvoiceItemInput{
			ProductID:   productID,
			Description: it.Description,
			Quantity:    decimal.NewFromFloat(it.Quantity),
			UnitPrice:   decimal.NewFromFloat(it.UnitPrice),
		})
	}
	inv, err := h.service.CreateInvoice(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	invoiceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid invoice id")
		return
	}
	inv, err := h.service.IssueInvoice(r.Context(), actor, invoiceID)
	if err != nil {
		h.logger.Error("issue invoice", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	invoiceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid invoice id")
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), actor, RecordPaymentInput{
		InvoiceID: invoiceID,
		Amount:    decimal.NewFromFloat(req.Amount),
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	customers, err := h.service.ListCustomers(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid customer id")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.service.ListInvoices(r.Context(), actor, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleExportInvoices(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := InvoiceStatus(r.URL.Query().Get("status"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.csv"`)
	if err := h.service.ExportInvoicesCSV(r.Context(), actor, status, w); err != nil {
		h.logger.Error("export invoices", slog.Any("error", err))
	}
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid invoice id")
		return
	}
	inv, items, err := h.service.GetInvoice(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv, "items": items})
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid invoice id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}
