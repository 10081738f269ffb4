package stock

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
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, companyID, itemID int64) (Item, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItemLevels(ctx context.Context, item Item) error
	SetItemActive(ctx context.Context, companyID, itemID int64, active bool) error
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	MarkMovementIssued(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64, issuedAt time.Time) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

const itemColumns = `id, company_id, code, name, unit, qty_on_hand, qty_reserved, qty_available,
avg_cost, total_value, selling_price, min_qty, max_qty, vat_rate, customs_rate,
is_imported, is_active, created_at, updated_at`

// WithTx executes the callback inside a repeatable-read transaction. Lost
// serialization races surface as shared.ErrConflict so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return mapSerializationError(err)
}

// GetItem reads one ledger row scoped to a company.
func (r *Repository) GetItem(ctx context.Context, companyID, itemID int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE company_id=$1 AND id=$2`, companyID, itemID)
	return scanItem(row)
}

// ListItems returns the active ledger rows for a company. Deactivated items
// are excluded from listing but their history stays readable.
func (r *Repository) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE company_id=$1 AND is_active ORDER BY code ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEntries returns one page of transaction log entries for a company.
func (r *Repository) ListEntries(ctx context.Context, companyID int64, filter EntryFilter) ([]Entry, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * perPage
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, item_id, kind, status, doc_number, doc_date, qty, unit_price,
total_value, vat_amount, customs_amount, landed_cost, job_ref, partner_ref, declaration_ref,
from_location, to_location, note, created_by, created_at
FROM stock_entries
WHERE company_id=$1
  AND ($2::bigint = 0 OR item_id=$2)
  AND ($3::text = '' OR kind=$3)
  AND doc_date BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY doc_date ASC, id ASC
LIMIT $6 OFFSET $7`,
		companyID, filter.ItemID, string(filter.Kind), nullTime(filter.From), nullTime(filter.To), perPage, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountEntries returns the total row count matching the filter, used for
// pagination metadata.
func (r *Repository) CountEntries(ctx context.Context, companyID int64, filter EntryFilter) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)
FROM stock_entries
WHERE company_id=$1
  AND ($2::bigint = 0 OR item_id=$2)
  AND ($3::text = '' OR kind=$3)
  AND doc_date BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')`,
		companyID, filter.ItemID, string(filter.Kind), nullTime(filter.From), nullTime(filter.To)).Scan(&total)
	return total, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, itemID)
	return scanItem(row)
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_items (company_id, code, name, unit, qty_on_hand, qty_reserved, qty_available,
avg_cost, total_value, selling_price, min_qty, max_qty, vat_rate, customs_rate, is_imported, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW()) RETURNING id`,
		item.CompanyID, item.Code, item.Name, item.Unit, item.QuantityOnHand, item.QuantityReserved, item.QuantityAvailable,
		item.AverageCost, item.TotalValue, item.SellingPrice, item.MinQuantity, item.MaxQuantity,
		item.VATRate, item.CustomsRate, item.IsImported, item.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrItemExists
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateItemLevels(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_items
SET qty_on_hand=$3, qty_reserved=$4, qty_available=$5, avg_cost=$6, total_value=$7, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		item.CompanyID, item.ID, item.QuantityOnHand, item.QuantityReserved, item.QuantityAvailable, item.AverageCost, item.TotalValue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) SetItemActive(ctx context.Context, companyID, itemID int64, active bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_items SET is_active=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, itemID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
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

func (r *txRepository) MarkMovementIssued(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64, issuedAt time.Time) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE job_movements
SET status='ISSUED', issued_at=COALESCE(issued_at, $4), updated_at=NOW()
WHERE company_id=$1 AND job_ref=$2 AND item_id=$3 AND status='RESERVED'`,
		companyID, jobRef, itemID, issuedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.CompanyID, &item.Code, &item.Name, &item.Unit,
		&item.QuantityOnHand, &item.QuantityReserved, &item.QuantityAvailable,
		&item.AverageCost, &item.TotalValue, &item.SellingPrice, &item.MinQuantity, &item.MaxQuantity,
		&item.VATRate, &item.CustomsRate, &item.IsImported, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var jobRef, declRef *uuid.UUID
	var createdBy *int64
	err := row.Scan(&entry.ID, &entry.CompanyID, &entry.ItemID, &entry.Kind, &entry.Status,
		&entry.DocumentNumber, &entry.DocumentDate, &entry.Quantity, &entry.UnitPrice,
		&entry.TotalValue, &entry.VATAmount, &entry.CustomsAmount, &entry.LandedCost,
		&jobRef, &entry.PartnerRef, &declRef,
		&entry.FromLocation, &entry.ToLocation, &entry.Note, &createdBy, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if jobRef != nil {
		entry.JobRef = *jobRef
	}
	if declRef != nil {
		entry.DeclarationRef = *declRef
	}
	if createdBy != nil {
		entry.CreatedBy = *createdBy
	}
	return entry, nil
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
