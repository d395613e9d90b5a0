package finance

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the finance module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.handleListExpenses)
	r.Get("/expenses/export", h.handleExportExpenses)
	r.Get("/expenses/{id}", h.handleGetExpense)
	r.Get("/journal-entries", h.handleListJournals)
	r.Get("/journal-entries/{id}", h.handleGetJournal)
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionFinanceWrite))
		r.Post("/expenses", h.handleCreateExpense)
		r.Post("/expenses/{id}/pay", h.handlePayExpense)
		r.Post("/journal-entries", h.handleCreateJournal)
		r.Post("/journal-entries/{id}/post", h.handlePostJournal)
	})
}

type createExpenseRequest struct {
	Category    string  `json:"category" validate:"required,max=64"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=512"`
}

type journalLineRequest struct {
	AccountCode string  `json:"accountCode" validate:"required,max=32"`
	Description string  `json:"description" validate:"max=255"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

type createJournalRequest struct {
	Memo      string               `json:"memo" validate:"max=255"`
	EntryDate string               `json:"entryDate" validate:"omitempty,datetime=2006-01-02"`
	Lines     []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createExpenseRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	expense, err := h.service.CreateExpense(r.Context(), actor, CreateExpenseInput{
		Category:    req.Category,
		Amount:      decimal.NewFromFloat(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		h.logger.Error("create expense", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) handlePayExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid expense id")
		return
	}
	expense, err := h.service.MarkExpensePaid(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createJournalRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := CreateJournalInput{Memo: req.Memo}
	if req.EntryDate != "" {
		date, err := time.Parse("2006-01-02", req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid entry date")
			return
		}
		in.EntryDate = date
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, JournalLineInput{
			AccountCode: l.AccountCode,
			Description: l.Description,
			Debit:       decimal.NewFromFloat(l.Debit),
			Credit:      decimal.NewFromFloat(l.Credit),
		})
	}
	entry, err := h.service.CreateJournalEntry(r.Context(), actor, in)
	if err != nil {
		h.logger.Error("create journal entry", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handlePostJournal(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid journal entry id")
		return
	}
	entry, err := h.service.PostJournalEntry(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("post journal entry", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := ExpenseStatus(r.URL.Query().Get("status"))
	expenses, err := h.service.ListExpenses(r.Context(), actor, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expenses)
}

func (h *Handler) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	status := ExpenseStatus(r.URL.Query().Get("status"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if err := h.service.ExportExpensesCSV(r.Context(), actor, status, w); err != nil {
		h.logger.Error("export expenses", slog.Any("error", err))
	}
}

func (h *Handler) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid expense id")
		return
	}
	expense, err := h.service.GetExpense(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) handleListJournals(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	entries, err := h.service.ListJournals(r.Context(), actor)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "invalid journal entry id")
		return
	}
	entry, lines, err := h.service.GetJournal(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entry": entry, "lines": lines})
}
