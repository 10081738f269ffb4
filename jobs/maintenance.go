package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// IdempotencyCleanupJob prunes idempotency keys past their retention window.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the cleanup job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = 7 * 24 * time.Hour
	}
	if err := j.store.Cleanup(ctx, olderThan); err != nil {
		return err
	}
	j.logger.Info("idempotency cleanup done", slog.Duration("older_than", olderThan))
	return nil
}

// ValuationSnapshotJob copies per-company totals from the ledger into the
// valuation_snapshots history table.
type ValuationSnapshotJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewValuationSnapshotJob constructs the snapshot job.
func NewValuationSnapshotJob(pool *pgxpool.Pool, logger *slog.Logger) *ValuationSnapshotJob {
	return &ValuationSnapshotJob{pool: pool, logger: logger}
}

// Handle processes TaskValuationSnapshot tasks.
func (j *ValuationSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ValuationSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	at := payload.ScheduledFor
	if at.IsZero() {
		at = time.Now().UTC()
	}
	tag, err := j.pool.Exec(ctx, `
		INSERT INTO valuation_snapshots (company_id, item_count, total_on_hand, total_value, taken_at)
		SELECT company_id,
		       COUNT(*),
		       COALESCE(SUM(qty_on_hand), 0),
		       COALESCE(SUM(total_value), 0),
		       $1
		FROM stock_items
		WHERE is_active
		GROUP BY company_id
	`, at)
	if err != nil {
		return err
	}
	j.logger.Info("valuation snapshot taken",
		slog.Int64("companies", tag.RowsAffected()),
		slog.Time("taken_at", at))
	return nil
}

// LowStockScanJob reports items whose available quantity fell below the
// configured minimum. The scan only logs; purchasing is out of scope here.
type LowStockScanJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLowStockScanJob constructs the scan job.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{pool: pool, logger: logger}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	rows, err := j.pool.Query(ctx, `
		SELECT company_id, id, code, qty_available, min_qty
		FROM stock_items
		WHERE is_active AND min_qty > 0 AND qty_available < min_qty
		ORDER BY company_id, code
	`)
	if err != nil {
		return err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var companyID, itemID int64
		var code string
		var available, minQty float64
		if err := rows.Scan(&companyID, &itemID, &code, &available, &minQty); err != nil {
			return err
		}
		count++
		j.logger.Warn("item below minimum quantity",
			slog.Int64("company_id", companyID),
			slog.Int64("item_id", itemID),
			slog.String("code", code),
			slog.Float64("available", available),
			slog.Float64("min_quantity", minQty))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.logger.Info("low stock scan done", slog.Int("flagged", count))
	return nil
}
