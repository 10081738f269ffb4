package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs read-only rollups over the stock, transaction and movement
// tables. Nothing is cached; every call reads current persisted state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Valuation sums the active ledger rows for a company.
func (r *Repository) Valuation(ctx context.Context, companyID int64) (Valuation, error) {
	var v Valuation
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
COALESCE(SUM(qty_on_hand), 0), COALESCE(SUM(qty_reserved), 0), COALESCE(SUM(total_value), 0)
FROM stock_items WHERE company_id=$1 AND is_active`, companyID).
		Scan(&v.ItemCount, &v.QuantityOnHand, &v.QuantityReserved, &v.TotalValue)
	return v, err
}

// TransactionSummary aggregates log entries per kind within the range.
func (r *Repository) TransactionSummary(ctx context.Context, companyID int64, rng DateRange) (TransactionSummary, error) {
	var s TransactionSummary
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(COUNT(*) FILTER (WHERE kind='INPUT'), 0),
COALESCE(SUM(total_value) FILTER (WHERE kind='INPUT'), 0),
COALESCE(COUNT(*) FILTER (WHERE kind='OUTPUT'), 0),
COALESCE(SUM(total_value) FILTER (WHERE kind='OUTPUT'), 0),
COALESCE(COUNT(*) FILTER (WHERE kind='RETURN_IN'), 0),
COALESCE(SUM(total_value) FILTER (WHERE kind='RETURN_IN'), 0),
COALESCE(COUNT(*) FILTER (WHERE kind='RETURN_OUT'), 0),
COALESCE(SUM(total_value) FILTER (WHERE kind='RETURN_OUT'), 0),
COALESCE(SUM(vat_amount), 0),
COALESCE(SUM(customs_amount), 0)
FROM stock_entries
WHERE company_id=$1 AND status='CONFIRMED'
  AND doc_date BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')`,
		companyID, nullTime(rng.From), nullTime(rng.To)).
		Scan(&s.InputCount, &s.InputValue, &s.OutputCount, &s.OutputValue,
			&s.ReturnInCount, &s.ReturnInValue, &s.ReturnOutCount, &s.ReturnOutValue,
			&s.VATTotal, &s.CustomsTotal)
	return s, err
}

// JobMaterialsSummary aggregates cost, revenue and margin over non-cancelled
// movements reserved within the range.
func (r *Repository) JobMaterialsSummary(ctx context.Context, companyID int64, rng DateRange) (JobMaterialsSummary, error) {
	var s JobMaterialsSummary
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
COALESCE(SUM(total_cost), 0), COALESCE(SUM(total_price), 0), COALESCE(SUM(margin), 0)
FROM job_movements
WHERE company_id=$1 AND status <> 'CANCELLED'
  AND reserved_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')`,
		companyID, nullTime(rng.From), nullTime(rng.To)).
		Scan(&s.MovementCount, &s.TotalCost, &s.TotalRevenue, &s.TotalMargin)
	if err != nil {
		return JobMaterialsSummary{}, err
	}
	if s.TotalCost != 0 {
		s.MarginPercentage = s.TotalMargin / s.TotalCost * 100
	}
	return s, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
