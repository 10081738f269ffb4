package customs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists customs declarations in PostgreSQL. Declarations are a
// single-row resource; no cross-entity transaction is needed here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const declarationColumns = `id, company_id, number, supplier_ref, currency, invoice_value, exchange_rate,
freight_cost, insurance_cost, other_costs, duty_rate, vat_rate, total_qty,
landed_cost, customs_basis, customs_duty, vat_basis, vat_amount, total_amount, unit_landed_cost,
created_at, updated_at`

// Insert stores a new declaration.
func (r *Repository) Insert(ctx context.Context, d Declaration) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO customs_declarations (id, company_id, number, supplier_ref, currency,
invoice_value, exchange_rate, freight_cost, insurance_cost, other_costs, duty_rate, vat_rate, total_qty,
landed_cost, customs_basis, customs_duty, vat_basis, vat_amount, total_amount, unit_landed_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),NOW())`,
		d.ID, d.CompanyID, d.Input.Number, d.Input.SupplierRef, d.Input.Currency,
		d.Input.TotalInvoiceValue, d.Input.ExchangeRate, d.Input.FreightCost, d.Input.InsuranceCost, d.Input.OtherCosts,
		d.Input.CustomsDutyRate, d.Input.VATRate, d.Input.TotalQuantity,
		d.Totals.TotalLandedCost, d.Totals.CustomsBasis, d.Totals.CustomsDuty,
		d.Totals.VATBasis, d.Totals.VATAmount, d.Totals.TotalAmount, d.Totals.UnitLandedCost)
	return err
}

// Update rewrites all inputs and all derived totals of a declaration.
func (r *Repository) Update(ctx context.Context, d Declaration) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customs_declarations
SET number=$3, supplier_ref=$4, currency=$5, invoice_value=$6, exchange_rate=$7, freight_cost=$8,
insurance_cost=$9, other_costs=$10, duty_rate=$11, vat_rate=$12, total_qty=$13,
landed_cost=$14, customs_basis=$15, customs_duty=$16, vat_basis=$17, vat_amount=$18, total_amount=$19,
unit_landed_cost=$20, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		d.CompanyID, d.ID, d.Input.Number, d.Input.SupplierRef, d.Input.Currency,
		d.Input.TotalInvoiceValue, d.Input.ExchangeRate, d.Input.FreightCost, d.Input.InsuranceCost, d.Input.OtherCosts,
		d.Input.CustomsDutyRate, d.Input.VATRate, d.Input.TotalQuantity,
		d.Totals.TotalLandedCost, d.Totals.CustomsBasis, d.Totals.CustomsDuty,
		d.Totals.VATBasis, d.Totals.VATAmount, d.Totals.TotalAmount, d.Totals.UnitLandedCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeclarationNotFound
	}
	return nil
}

// Get reads one declaration scoped to a company.
func (r *Repository) Get(ctx context.Context, companyID int64, id uuid.UUID) (Declaration, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+declarationColumns+` FROM customs_declarations WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanDeclaration(row)
}

// List returns declarations for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID int64, limit int) ([]Declaration, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+declarationColumns+` FROM customs_declarations
WHERE company_id=$1 ORDER BY created_at DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	declarations := []Declaration{}
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		declarations = append(declarations, d)
	}
	return declarations, rows.Err()
}

func scanDeclaration(row pgx.Row) (Declaration, error) {
	var d Declaration
	err := row.Scan(&d.ID, &d.CompanyID, &d.Input.Number, &d.Input.SupplierRef, &d.Input.Currency,
		&d.Input.TotalInvoiceValue, &d.Input.ExchangeRate, &d.Input.FreightCost, &d.Input.InsuranceCost, &d.Input.OtherCosts,
		&d.Input.CustomsDutyRate, &d.Input.VATRate, &d.Input.TotalQuantity,
		&d.Totals.TotalLandedCost, &d.Totals.CustomsBasis, &d.Totals.CustomsDuty,
		&d.Totals.VATBasis, &d.Totals.VATAmount, &d.Totals.TotalAmount, &d.Totals.UnitLandedCost,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Declaration{}, ErrDeclarationNotFound
		}
		return Declaration{}, err
	}
	return d, nil
}
