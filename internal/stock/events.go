package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MovementPostedEvent represents a posted warehouse movement for external broadcast.
type MovementPostedEvent struct {
	Kind           TransactionKind
	CompanyID      int64
	ItemID         int64
	Quantity       float64
	UnitPrice      float64
	DocumentNumber string
	JobRef         uuid.UUID
	PostedAt       time.Time
}

// Notifier broadcasts stock events after a successful mutation. Delivery is
// fire and forget; a failed broadcast never rolls back the mutation.
type Notifier interface {
	StockMoved(ctx context.Context, evt MovementPostedEvent)
}
