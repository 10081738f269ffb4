package customs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeclarationInput holds the caller-supplied figures of an import declaration.
// Monetary values are decimals; rates are percentages.
type DeclarationInput struct {
	Number            string
	SupplierRef       string
	Currency          string
	TotalInvoiceValue decimal.Decimal
	ExchangeRate      decimal.Decimal
	FreightCost       decimal.Decimal
	InsuranceCost     decimal.Decimal
	OtherCosts        decimal.Decimal
	CustomsDutyRate   decimal.Decimal
	VATRate           decimal.Decimal
	TotalQuantity     decimal.Decimal
}

// Totals are the derived figures. They are always recomputed together;
// a declaration never carries partially recomputed totals.
type Totals struct {
	TotalLandedCost decimal.Decimal
	CustomsBasis    decimal.Decimal
	CustomsDuty     decimal.Decimal
	VATBasis        decimal.Decimal
	VATAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	UnitLandedCost  decimal.Decimal
}

// Declaration is a persisted import declaration. Created as a draft, mutated
// by full-recompute updates, never auto-deleted. The unit landed cost feeds
// the unit price of imported stock receipts.
type Declaration struct {
	ID        uuid.UUID
	CompanyID int64
	Input     DeclarationInput
	Totals    Totals
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrDeclarationNotFound indicates an unknown declaration within the caller's company.
var ErrDeclarationNotFound = errors.New("customs: declaration not found")

// ErrInvalidExchangeRate indicates a non-positive exchange rate.
var ErrInvalidExchangeRate = errors.New("customs: exchange rate must be positive")

// ErrNegativeAmount indicates a negative monetary input.
var ErrNegativeAmount = errors.New("customs: amounts must be >= 0")
