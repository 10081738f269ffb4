package stock

import (
	"fmt"
	"math"
)

const qtyEpsilon = 1e-9

// recompute refreshes the derived fields. Every mutator ends here so that
// QuantityAvailable and TotalValue can never drift from their inputs.
func (i *Item) recompute() {
	if i.QuantityOnHand < 0 {
		i.QuantityOnHand = 0
	}
	if i.QuantityReserved < 0 {
		i.QuantityReserved = 0
	}
	i.QuantityAvailable = i.QuantityOnHand - i.QuantityReserved
	i.TotalValue = i.QuantityOnHand * i.AverageCost
}

// ApplyReceipt blends a receipt into the moving average and increments the
// on-hand quantity. Returns the new average cost.
func (i *Item) ApplyReceipt(quantity, unitPrice float64) (float64, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if unitPrice < 0 {
		return 0, ErrInvalidUnitPrice
	}
	newQty := i.QuantityOnHand + quantity
	if newQty > qtyEpsilon {
		i.AverageCost = (i.QuantityOnHand*i.AverageCost + quantity*unitPrice) / newQty
	} else {
		i.AverageCost = unitPrice
	}
	i.QuantityOnHand = newQty
	i.recompute()
	return i.AverageCost, nil
}

// ApplyIssue removes quantity from stock at the current average cost. The
// average is never recomputed on issue. Returns the unit cost used.
func (i *Item) ApplyIssue(quantity float64) (float64, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if quantity > i.QuantityAvailable+qtyEpsilon {
		return 0, fmt.Errorf("%w: requested %g, available %g", ErrInsufficientStock, quantity, i.QuantityAvailable)
	}
	unitCost := i.AverageCost
	i.QuantityOnHand -= quantity
	if math.Abs(i.QuantityOnHand) < qtyEpsilon {
		i.QuantityOnHand = 0
	}
	i.recompute()
	return unitCost, nil
}

// ApplyReturnToStock re-enters returned goods at the given unit price,
// blended into the average exactly like a receipt.
func (i *Item) ApplyReturnToStock(quantity, unitPrice float64) error {
	_, err := i.ApplyReceipt(quantity, unitPrice)
	return err
}

// Reserve promises quantity to a job without removing it from stock.
func (i *Item) Reserve(quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.QuantityAvailable+qtyEpsilon {
		return fmt.Errorf("%w: requested %g, available %g", ErrInsufficientAvailable, quantity, i.QuantityAvailable)
	}
	i.QuantityReserved += quantity
	i.recompute()
	return nil
}

// Release gives a reserved quantity back, clamped at zero.
func (i *Item) Release(quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.QuantityReserved -= quantity
	if i.QuantityReserved < qtyEpsilon {
		i.QuantityReserved = 0
	}
	i.recompute()
	return nil
}
