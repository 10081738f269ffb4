package movement

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the reservation lifecycle. CANCELLED is declared so a
// future cancellation transition does not require a schema change; no
// operation currently targets it.
type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusIssued    Status = "ISSUED"
	StatusReturned  Status = "RETURNED"
	StatusUsed      Status = "USED"
	StatusCancelled Status = "CANCELLED"
)

// Movement is a job-linked reservation row tracking promised-then-consumed
// stock and its margin. At most one row per (job, item) is open (RESERVED)
// at any time.
type Movement struct {
	ID                int64
	CompanyID         int64
	JobRef            uuid.UUID
	ItemID            int64
	Quantity          float64
	UnitCost          float64
	TotalCost         float64
	UnitSellingPrice  float64
	TotalSellingPrice float64
	Margin            float64
	MarginPercentage  float64
	Status            Status
	WorkerID          int64
	ReservedAt        time.Time
	IssuedAt          time.Time
	ReturnedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// repriceQuantity recomputes the cost, revenue and margin figures for a new
// quantity. The unit figures stay as snapshotted at reservation time.
func (m *Movement) repriceQuantity(quantity float64) {
	m.Quantity = quantity
	m.TotalCost = quantity * m.UnitCost
	m.TotalSellingPrice = quantity * m.UnitSellingPrice
	m.Margin = m.TotalSellingPrice - m.TotalCost
	if m.TotalCost != 0 {
		m.MarginPercentage = m.Margin / m.TotalCost * 100
	} else {
		m.MarginPercentage = 0
	}
}

// ReserveInput describes a reservation request. A nil SellingPrice falls back
// to the item's selling price.
type ReserveInput struct {
	JobRef       uuid.UUID
	ItemID       int64
	Quantity     float64
	SellingPrice *float64
	ActorID      int64
}

// Filter filters movement listings.
type Filter struct {
	JobRef uuid.UUID
	ItemID int64
	Status Status
	Limit  int
}

// ErrMovementNotFound indicates an unknown movement within the caller's company.
var ErrMovementNotFound = errors.New("movement: not found")

// ErrInvalidState indicates an illegal lifecycle transition.
var ErrInvalidState = errors.New("movement: invalid state for transition")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("movement: quantity must be positive")

// ErrReturnExceedsQuantity indicates a return larger than the movement.
var ErrReturnExceedsQuantity = errors.New("movement: return exceeds reserved quantity")
