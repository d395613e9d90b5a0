package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LowStockCache memoizes per-org low-stock scans in redis. The scan
// joins every balance against its product threshold, so dashboards
// polling it would otherwise hit that query on each refresh.
type LowStockCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLowStockCache builds the cache. A zero ttl falls back to 5 minutes.
func NewLowStockCache(client redis.Cmdable, ttl time.Duration) *LowStockCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LowStockCache{client: client, ttl: ttl}
}

func lowStockKey(orgID uuid.UUID) string {
	return "inventory:low_stock:" + orgID.String()
}

// Get returns the cached rows, or (nil, false) on miss or decode failure.
func (c *LowStockCache) Get(ctx context.Context, orgID uuid.UUID) ([]LowStockRow, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, lowStockKey(orgID)).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []LowStockRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// Set stores the rows. Encoding or redis failures are swallowed: the
// cache is an optimization, never a source of truth.
func (c *LowStockCache) Set(ctx context.Context, orgID uuid.UUID, rows []LowStockRow) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, lowStockKey(orgID), raw, c.ttl).Err()
}

// Invalidate drops the org's entry after stock changes.
func (c *LowStockCache) Invalidate(ctx context.Context, orgID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, lowStockKey(orgID)).Err()
}
