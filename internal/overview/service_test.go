package overview

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

type stubRepo struct {
	revenue     decimal.Decimal
	expenses    decimal.Decimal
	payments    decimal.Decimal
	receivables decimal.Decimal
	purchases   decimal.Decimal
	lowStock    int
	pending     int

	since       time.Time
	searchQuery string
	searchLimit int
	results     []SearchResult
}

func (s *stubRepo) Revenue(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	s.since = since
	return s.revenue, nil
}

func (s *stubRepo) ExpenseTotal(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	return s.expenses, nil
}

func (s *stubRepo) PaymentsTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	return s.payments, nil
}

func (s *stubRepo) OutstandingReceivables(ctx context.Context, orgID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	return s.receivables, nil
}

func (s *stubRepo) OpenPurchaseTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	return s.purchases, nil
}

func (s *stubRepo) LowStockCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.lowStock, nil
}

func (s *stubRepo) PendingApprovalCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.pending, nil
}

func (s *stubRepo) Search(ctx context.Context, orgID uuid.UUID, query string, perType int) ([]SearchResult, error) {
	s.searchQuery = query
	s.searchLimit = perType
	return s.results, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotAssemblesKPIs(t *testing.T) {
	repo := &stubRepo{
		revenue:     decimal.NewFromInt(500000),
		expenses:    decimal.NewFromInt(120000),
		payments:    decimal.NewFromInt(310000),
		receivables: decimal.NewFromInt(190000),
		purchases:   decimal.NewFromInt(75000),
		lowStock:    3,
		pending:     2,
	}
	svc := NewService(repo, testLogger())
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	actor := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleViewer}

	snap, err := svc.Snapshot(context.Background(), actor, "7d")
	require.NoError(t, err)
	require.Equal(t, "7d", snap.Range)
	require.Equal(t, now.AddDate(0, 0, -7), repo.since)
	require.True(t, snap.KPIs.NetProfit.Equal(decimal.NewFromInt(380000)), "net profit %s", snap.KPIs.NetProfit)
	require.Equal(t, 3, snap.KPIs.LowStock)
	require.Equal(t, 2, snap.KPIs.PendingApprovals)

	// unknown window falls back to 30 days
	snap, err = svc.Snapshot(context.Background(), actor, "1y")
	require.NoError(t, err)
	require.Equal(t, "30d", snap.Range)
	require.Equal(t, now.AddDate(0, 0, -30), repo.since)
}

func TestSearchShortQueriesReturnNothing(t *testing.T) {
	repo := &stubRepo{results: []SearchResult{{Type: "product", Name: "Kopi", Subtitle: "SKU-1"}}}
	svc := NewService(repo, testLogger())
	actor := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleStaff}

	results, err := svc.Search(context.Background(), actor, " k ")
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, repo.searchQuery, "repository is never hit for short queries")

	results, err = svc.Search(context.Background(), actor, "kopi")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "kopi", repo.searchQuery)
	require.Equal(t, searchPerType, repo.searchLimit)
}
