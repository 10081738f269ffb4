package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	item := Item{IsActive: true}

	avg, err := item.ApplyReceipt(10, 100)
	require.NoError(t, err)
	require.InDelta(t, 100.0, avg, 0.0001)
	require.InDelta(t, 10.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 1000.0, item.TotalValue, 0.0001)

	avg, err = item.ApplyReceipt(5, 130)
	require.NoError(t, err)
	require.InDelta(t, 110.0, avg, 0.0001)
	require.InDelta(t, 15.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 1650.0, item.TotalValue, 0.0001)

	// Issues move quantity, never the average.
	cost, err := item.ApplyIssue(8)
	require.NoError(t, err)
	require.InDelta(t, 110.0, cost, 0.0001)
	require.InDelta(t, 110.0, item.AverageCost, 0.0001)
	require.InDelta(t, 7.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 770.0, item.TotalValue, 0.0001)
}

func TestReceiptIntoEmptyLedger(t *testing.T) {
	item := Item{IsActive: true}
	avg, err := item.ApplyReceipt(3, 42.5)
	require.NoError(t, err)
	require.InDelta(t, 42.5, avg, 0.0001)
	require.InDelta(t, 127.5, item.TotalValue, 0.0001)
}

func TestIssueExactRemainder(t *testing.T) {
	item := Item{IsActive: true}
	_, err := item.ApplyReceipt(3, 10.0/3.0)
	require.NoError(t, err)

	_, err = item.ApplyIssue(3)
	require.NoError(t, err)
	require.InDelta(t, 0.0, item.QuantityOnHand, qtyEpsilon)
	require.InDelta(t, 0.0, item.TotalValue, qtyEpsilon)
}

func TestIssueInsufficientLeavesStateUnchanged(t *testing.T) {
	item := Item{IsActive: true}
	_, err := item.ApplyReceipt(5, 20)
	require.NoError(t, err)
	before := item

	_, err = item.ApplyIssue(6)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, before, item)
}

func TestReserveRespectsAvailable(t *testing.T) {
	item := Item{IsActive: true}
	_, err := item.ApplyReceipt(10, 100)
	require.NoError(t, err)

	require.NoError(t, item.Reserve(4))
	require.InDelta(t, 6.0, item.QuantityAvailable, 0.0001)
	require.InDelta(t, 10.0, item.QuantityOnHand, 0.0001)

	// Reserved stock cannot be issued past the available quantity.
	_, err = item.ApplyIssue(7)
	require.ErrorIs(t, err, ErrInsufficientStock)

	err = item.Reserve(7)
	require.ErrorIs(t, err, ErrInsufficientAvailable)

	item.Release(4)
	require.InDelta(t, 10.0, item.QuantityAvailable, 0.0001)
}

func TestReleaseClampsAtZero(t *testing.T) {
	item := Item{IsActive: true}
	_, err := item.ApplyReceipt(2, 5)
	require.NoError(t, err)
	require.NoError(t, item.Reserve(1))

	item.Release(3)
	require.InDelta(t, 0.0, item.QuantityReserved, 0.0001)
	require.InDelta(t, 2.0, item.QuantityAvailable, 0.0001)
}

func TestReturnToStockBlendsLikeReceipt(t *testing.T) {
	item := Item{IsActive: true}
	_, err := item.ApplyReceipt(10, 100)
	require.NoError(t, err)
	_, err = item.ApplyIssue(4)
	require.NoError(t, err)

	require.NoError(t, item.ApplyReturnToStock(1, 100))
	require.InDelta(t, 7.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 100.0, item.AverageCost, 0.0001)
}

func TestInvalidInputs(t *testing.T) {
	item := Item{IsActive: true}

	_, err := item.ApplyReceipt(0, 10)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = item.ApplyReceipt(1, -10)
	require.ErrorIs(t, err, ErrInvalidUnitPrice)
	_, err = item.ApplyIssue(-1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.ErrorIs(t, item.Reserve(0), ErrInvalidQuantity)
}
