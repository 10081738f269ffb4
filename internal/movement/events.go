package movement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionEvent represents a reservation lifecycle change for external broadcast.
type TransitionEvent struct {
	CompanyID  int64
	MovementID int64
	JobRef     uuid.UUID
	ItemID     int64
	Quantity   float64
	Status     Status
	OccurredAt time.Time
}

// Notifier broadcasts movement events after a successful transition.
// Delivery is fire and forget and never rolls back the transition.
type Notifier interface {
	MovementChanged(ctx context.Context, evt TransitionEvent)
}
