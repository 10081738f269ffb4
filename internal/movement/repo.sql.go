package movement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/platform/db"
	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Repository persists job movements in PostgreSQL. Its transactions span both
// the movement row and the stock ledger row so that a reservation and its
// ledger effect commit together.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, companyID, itemID int64) (stock.Item, error)
	UpdateItemLevels(ctx context.Context, item stock.Item) error
	GetOpenMovementForUpdate(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64) (Movement, error)
	GetMovementForUpdate(ctx context.Context, companyID, movementID int64) (Movement, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpdateMovement(ctx context.Context, m Movement) error
	InsertStockEntry(ctx context.Context, entry stock.Entry) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

const movementColumns = `id, company_id, job_ref, item_id, qty, unit_cost, total_cost,
unit_price, total_price, margin, margin_pct, status, worker_id,
reserved_at, issued_at, returned_at, created_at, updated_at`

// WithTx executes the callback inside a repeatable-read transaction. Lost
// serialization races surface as shared.ErrConflict so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("movement repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return mapSerializationError(err)
}

// GetMovement reads one movement scoped to a company.
func (r *Repository) GetMovement(ctx context.Context, companyID, movementID int64) (Movement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM job_movements WHERE company_id=$1 AND id=$2`, companyID, movementID)
	return scanMovement(row)
}

// ListMovements returns movements for a company.
func (r *Repository) ListMovements(ctx context.Context, companyID int64, filter Filter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM job_movements
WHERE company_id=$1
  AND ($2::uuid IS NULL OR job_ref=$2)
  AND ($3::bigint = 0 OR item_id=$3)
  AND ($4::text = '' OR status=$4)
ORDER BY reserved_at DESC, id DESC
LIMIT $5`,
		companyID, nullUUID(filter.JobRef), filter.ItemID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (stock.Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, unit, qty_on_hand, qty_reserved, qty_available,
avg_cost, total_value, selling_price, min_qty, max_qty, vat_rate, customs_rate,
is_imported, is_active, created_at, updated_at
FROM stock_items WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, itemID)
	var item stock.Item
	err := row.Scan(&item.ID, &item.CompanyID, &item.Code, &item.Name, &item.Unit,
		&item.QuantityOnHand, &item.QuantityReserved, &item.QuantityAvailable,
		&item.AverageCost, &item.TotalValue, &item.SellingPrice, &item.MinQuantity, &item.MaxQuantity,
		&item.VATRate, &item.CustomsRate, &item.IsImported, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Item{}, stock.ErrItemNotFound
		}
		return stock.Item{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItemLevels(ctx context.Context, item stock.Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_items
SET qty_on_hand=$3, qty_reserved=$4, qty_available=$5, avg_cost=$6, total_value=$7, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		item.CompanyID, item.ID, item.QuantityOnHand, item.QuantityReserved, item.QuantityAvailable, item.AverageCost, item.TotalValue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrItemNotFound
	}
	return nil
}

func (r *txRepository) GetOpenMovementForUpdate(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64) (Movement, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM job_movements
WHERE company_id=$1 AND job_ref=$2 AND item_id=$3 AND status='RESERVED' FOR UPDATE`, companyID, jobRef, itemID)
	return scanMovement(row)
}

func (r *txRepository) GetMovementForUpdate(ctx context.Context, companyID, movementID int64) (Movement, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM job_movements WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, movementID)
	return scanMovement(row)
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO job_movements (company_id, job_ref, item_id, qty, unit_cost, total_cost,
unit_price, total_price, margin, margin_pct, status, worker_id, reserved_at, issued_at, returned_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),NOW()) RETURNING id`,
		m.CompanyID, m.JobRef, m.ItemID, m.Quantity, m.UnitCost, m.TotalCost,
		m.UnitSellingPrice, m.TotalSellingPrice, m.Margin, m.MarginPercentage, string(m.Status),
		nullInt(m.WorkerID), nullTime(m.ReservedAt), nullTime(m.IssuedAt), nullTime(m.ReturnedAt)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateMovement(ctx context.Context, m Movement) error {
	tag, err := r.tx.Exec(ctx, `UPDATE job_movements
SET qty=$3, unit_cost=$4, total_cost=$5, unit_price=$6, total_price=$7, margin=$8, margin_pct=$9,
status=$10, worker_id=$11, reserved_at=$12, issued_at=$13, returned_at=$14, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		m.CompanyID, m.ID, m.Quantity, m.UnitCost, m.TotalCost, m.UnitSellingPrice, m.TotalSellingPrice,
		m.Margin, m.MarginPercentage, string(m.Status), nullInt(m.WorkerID),
		nullTime(m.ReservedAt), nullTime(m.IssuedAt), nullTime(m.ReturnedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (r *txRepository) InsertStockEntry(ctx context.Context, entry stock.Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_entries (company_id, item_id, kind, status, doc_number, doc_date, qty, unit_price,
total_value, vat_amount, customs_amount, landed_cost, job_ref, partner_ref, declaration_ref, from_location, to_location, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW()) RETURNING id`,
		entry.CompanyID, entry.ItemID, string(entry.Kind), string(entry.Status), entry.DocumentNumber, entry.DocumentDate,
		entry.Quantity, entry.UnitPrice, entry.TotalValue, entry.VATAmount, entry.CustomsAmount, entry.LandedCost,
		nullUUID(entry.JobRef), entry.PartnerRef, nullUUID(entry.DeclarationRef),
		entry.FromLocation, entry.ToLocation, entry.Note, nullInt(entry.CreatedBy)).Scan(&id)
	return id, err
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var workerID *int64
	var reservedAt, issuedAt, returnedAt *time.Time
	err := row.Scan(&m.ID, &m.CompanyID, &m.JobRef, &m.ItemID, &m.Quantity, &m.UnitCost, &m.TotalCost,
		&m.UnitSellingPrice, &m.TotalSellingPrice, &m.Margin, &m.MarginPercentage, &m.Status, &workerID,
		&reservedAt, &issuedAt, &returnedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrMovementNotFound
		}
		return Movement{}, err
	}
	if workerID != nil {
		m.WorkerID = *workerID
	}
	if reservedAt != nil {
		m.ReservedAt = *reservedAt
	}
	if issuedAt != nil {
		m.IssuedAt = *issuedAt
	}
	if returnedAt != nil {
		m.ReturnedAt = *returnedAt
	}
	return m, nil
}

func mapSerializationError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return shared.ErrConflict
	}
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullUUID(value uuid.UUID) any {
	if value == uuid.Nil {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
