package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.ActionAuditView))
		r.Get("/audit-logs", h.handleTimeline)
		r.Get("/audit-logs/export", h.handleExport)
	})
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	f, err := filterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	entries, err := h.service.Timeline(r.Context(), actor, f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	f, err := filterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-logs.csv"`)
	if err := h.service.ExportCSV(r.Context(), actor, f, w); err != nil {
		h.logger.Error("export audit logs", slog.Any("error", err))
	}
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		Action:   q.Get("action"),
	}
	if raw := q.Get("actorId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, errInvalidParam("actorId")
		}
		f.ActorID = &id
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filter{}, errInvalidParam("from")
		}
		f.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filter{}, errInvalidParam("to")
		}
		// inclusive end of day
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Filter{}, errInvalidParam("limit")
		}
		f.Limit = limit
	}
	return f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid query parameter " + string(e) }
