package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LowStockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLowStockCache(client, time.Minute), mr
}

func TestLowStockCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	orgID := uuid.New()
	rows := []LowStockRow{{
		Product: Product{
			ID:                uuid.New(),
			OrgID:             orgID,
			SKU:               "WID-1",
			Name:              "Widget",
			LowStockThreshold: decimal.NewFromInt(5),
		},
		BranchID: uuid.New(),
		Quantity: decimal.NewFromInt(2),
	}}

	_, ok := cache.Get(context.Background(), orgID)
	assert.False(t, ok)

	cache.Set(context.Background(), orgID, rows)
	got, ok := cache.Get(context.Background(), orgID)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "WID-1", got[0].Product.SKU)
	assert.True(t, got[0].Quantity.Equal(decimal.NewFromInt(2)))

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(context.Background(), orgID)
	assert.False(t, ok)
}

func TestLowStockCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	orgID := uuid.New()
	cache.Set(context.Background(), orgID, []LowStockRow{})

	cache.Invalidate(context.Background(), orgID)
	_, ok := cache.Get(context.Background(), orgID)
	assert.False(t, ok)
}

type countingLowStockRepo struct {
	memoryRepo
	calls int
}

func (r *countingLowStockRepo) LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, error) {
	r.calls++
	return r.memoryRepo.LowStock(ctx, orgID)
}

func TestServiceLowStockUsesCache(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &countingLowStockRepo{memoryRepo: *newMemoryRepo()}
	svc := NewService(repo, nil, nil).WithLowStockCache(cache)
	orgID := uuid.New()

	_, err := svc.LowStock(context.Background(), orgID)
	require.NoError(t, err)
	_, err = svc.LowStock(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}
