package customs

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func declInput() DeclarationInput {
	return DeclarationInput{
		TotalInvoiceValue: decimal.NewFromInt(1000),
		ExchangeRate:      decimal.NewFromInt(1),
		FreightCost:       decimal.NewFromInt(50),
		InsuranceCost:     decimal.NewFromInt(20),
		OtherCosts:        decimal.Zero,
		CustomsDutyRate:   decimal.NewFromInt(10),
		VATRate:           decimal.NewFromInt(20),
	}
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, actual.Equal(decimal.RequireFromString(expected)),
		"expected %s, got %s", expected, actual.String())
}

func TestComputeTotals(t *testing.T) {
	totals := Compute(declInput())

	requireDecimal(t, "1070", totals.TotalLandedCost)
	requireDecimal(t, "1070", totals.CustomsBasis)
	requireDecimal(t, "107", totals.CustomsDuty)
	requireDecimal(t, "1177", totals.VATBasis)
	requireDecimal(t, "235.4", totals.VATAmount)
	requireDecimal(t, "342.4", totals.TotalAmount)
}

func TestComputeWithExchangeRate(t *testing.T) {
	in := declInput()
	in.ExchangeRate = decimal.RequireFromString("2.5")
	totals := Compute(in)

	requireDecimal(t, "1070", totals.TotalLandedCost)
	requireDecimal(t, "2675", totals.CustomsBasis)
	requireDecimal(t, "267.5", totals.CustomsDuty)
	requireDecimal(t, "588.5", totals.VATAmount)
}

func TestUnitLandedCostCapitalisesDutyOnly(t *testing.T) {
	in := declInput()
	in.TotalQuantity = decimal.NewFromInt(100)
	totals := Compute(in)

	// (basis + duty) / quantity; VAT is reclaimable and excluded.
	requireDecimal(t, "11.77", totals.UnitLandedCost)

	in.TotalQuantity = decimal.Zero
	totals = Compute(in)
	require.True(t, totals.UnitLandedCost.IsZero())
}

func TestZeroRates(t *testing.T) {
	in := declInput()
	in.CustomsDutyRate = decimal.Zero
	in.VATRate = decimal.Zero
	totals := Compute(in)

	require.True(t, totals.CustomsDuty.IsZero())
	require.True(t, totals.VATAmount.IsZero())
	require.True(t, totals.TotalAmount.IsZero())
	requireDecimal(t, "1070", totals.CustomsBasis)
}

func TestValidateInput(t *testing.T) {
	in := declInput()
	in.ExchangeRate = decimal.Zero
	require.ErrorIs(t, validateInput(in), ErrInvalidExchangeRate)

	in = declInput()
	in.FreightCost = decimal.NewFromInt(-1)
	require.ErrorIs(t, validateInput(in), ErrNegativeAmount)

	require.NoError(t, validateInput(declInput()))
}
