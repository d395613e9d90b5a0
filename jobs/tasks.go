// Package jobs holds background task definitions and the Asynq worker
// wiring around them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan walks every org looking for balances under threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanHandler returns the handler for TaskLowStockScan. It
// logs a warning per balance at or below its product threshold so the
// log pipeline can alert on them.
func NewLowStockScanHandler(pool *pgxpool.Pool, repo *inventory.Repository, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		rows, err := pool.Query(ctx, `SELECT DISTINCT org_id FROM stock_levels`)
		if err != nil {
			return err
		}
		var orgIDs []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			orgIDs = append(orgIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		var total atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, orgID := range orgIDs {
			g.Go(func() error {
				low, err := repo.LowStock(gctx, orgID)
				if err != nil {
					return err
				}
				for _, row := range low {
					logger.Warn("stock below threshold",
						slog.String("org_id", orgID.String()),
						slog.String("branch_id", row.BranchID.String()),
						slog.String("sku", row.Product.SKU),
						slog.String("quantity", row.Quantity.String()),
						slog.String("threshold", row.Product.LowStockThreshold.String()),
					)
				}
				total.Add(int64(len(low)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("low stock scan complete",
			slog.Int("orgs", len(orgIDs)),
			slog.Int64("flagged", total.Load()),
		)
		return nil
	}
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key pruning.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler returns the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		olderThan := payload.OlderThan
		if olderThan <= 0 {
			olderThan = 24 * time.Hour
		}
		if err := store.Cleanup(ctx, olderThan); err != nil {
			return err
		}
		logger.Info("idempotency cleanup complete", slog.Duration("older_than", olderThan))
		return nil
	}
}
