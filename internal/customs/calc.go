package customs

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Compute derives all declaration totals from the input figures. It is pure:
// no state, no side effects. All seven derived fields come out of one call so
// a partial recompute cannot exist.
//
// Chain: landed = invoice + freight + insurance + other;
// basis = landed * fx; duty = basis * dutyRate%; vatBasis = basis + duty;
// vat = vatBasis * vatRate%; total = duty + vat.
func Compute(in DeclarationInput) Totals {
	landed := in.TotalInvoiceValue.Add(in.FreightCost).Add(in.InsuranceCost).Add(in.OtherCosts)
	basis := landed.Mul(in.ExchangeRate)
	duty := basis.Mul(in.CustomsDutyRate).Div(hundred)
	vatBasis := basis.Add(duty)
	vat := vatBasis.Mul(in.VATRate).Div(hundred)
	total := duty.Add(vat)

	// Duty is capitalised into the inventory cost basis; VAT is reclaimable
	// and stays out of it.
	unit := decimal.Zero
	if in.TotalQuantity.IsPositive() {
		unit = basis.Add(duty).Div(in.TotalQuantity)
	}

	return Totals{
		TotalLandedCost: landed,
		CustomsBasis:    basis,
		CustomsDuty:     duty,
		VATBasis:        vatBasis,
		VATAmount:       vat,
		TotalAmount:     total,
		UnitLandedCost:  unit,
	}
}

func validateInput(in DeclarationInput) error {
	if !in.ExchangeRate.IsPositive() {
		return ErrInvalidExchangeRate
	}
	for _, v := range []decimal.Decimal{
		in.TotalInvoiceValue, in.FreightCost, in.InsuranceCost, in.OtherCosts,
		in.CustomsDutyRate, in.VATRate, in.TotalQuantity,
	} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}
