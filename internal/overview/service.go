package overview

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// RepositoryPort abstracts the aggregate queries behind the overview.
type RepositoryPort interface {
	Revenue(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error)
	ExpenseTotal(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error)
	PaymentsTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)
	OutstandingReceivables(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error)
	OpenPurchaseTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)
	LowStockCount(ctx context.Context, orgID uuid.UUID) (int, error)
	PendingApprovalCount(ctx context.Context, orgID uuid.UUID) (int, error)
	Search(ctx context.Context, orgID uuid.UUID, query string, perType int) ([]SearchResult, error)
}

// Service assembles read-only org projections.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

var rangeDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

const searchPerType = 5

// Snapshot computes the KPI block for the window. Unknown ranges fall back
// to 30 days.
func (s *Service) Snapshot(ctx context.Context, actor rbac.Actor, rng string) (Snapshot, error) {
	days, ok := rangeDays[rng]
	if !ok {
		rng, days = "30d", 30
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	revenue, err := s.repo.Revenue(ctx, actor.OrgID, since)
	if err != nil {
		return Snapshot{}, err
	}
	expenses, err := s.repo.ExpenseTotal(ctx, actor.OrgID, since)
	if err != nil {
		return Snapshot{}, err
	}
	payments, err := s.repo.PaymentsTotal(ctx, actor.OrgID)
	if err != nil {
		return Snapshot{}, err
	}
	receivables, err := s.repo.OutstandingReceivables(ctx, actor.OrgID, since)
	if err != nil {
		return Snapshot{}, err
	}
	openPurchases, err := s.repo.OpenPurchaseTotal(ctx, actor.OrgID)
	if err != nil {
		return Snapshot{}, err
	}
	lowStock, err := s.repo.LowStockCount(ctx, actor.OrgID)
	if err != nil {
		return Snapshot{}, err
	}
	pending, err := s.repo.PendingApprovalCount(ctx, actor.OrgID)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Range: rng,
		KPIs: KPIs{
			Revenue:          revenue,
			Expenses:         expenses,
			NetProfit:        revenue.Sub(expenses),
			ReceivedPayments: payments,
			OutstandingAR:    receivables,
			OpenPurchases:    openPurchases,
			LowStock:         lowStock,
			PendingApprovals: pending,
		},
	}, nil
}

// Search runs a cross-entity name lookup. Queries shorter than two
// characters return nothing rather than scanning everything.
func (s *Service) Search(ctx context.Context, actor rbac.Actor, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []SearchResult{}, nil
	}
	return s.repo.Search(ctx, actor.OrgID, query, searchPerType)
}
