package stock

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionKind enumerates supported warehouse movements.
type TransactionKind string

const (
	// KindInput represents an inbound receipt.
	KindInput TransactionKind = "INPUT"
	// KindOutput represents an outbound issue.
	KindOutput TransactionKind = "OUTPUT"
	// KindReturnIn represents goods returned into stock by a customer.
	KindReturnIn TransactionKind = "RETURN_IN"
	// KindReturnOut represents goods sent back to a supplier.
	KindReturnOut TransactionKind = "RETURN_OUT"
	// KindTransfer is used for transfer meta records between locations.
	KindTransfer TransactionKind = "TRANSFER"
	// KindAdjustment indicates manual adjustments.
	KindAdjustment TransactionKind = "ADJUSTMENT"
)

// TransactionStatus enumerates entry statuses. Every posted entry is written
// CONFIRMED; DRAFT and CANCELLED are declared so future transitions do not
// require a schema change.
type TransactionStatus string

const (
	StatusDraft     TransactionStatus = "DRAFT"
	StatusConfirmed TransactionStatus = "CONFIRMED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// ReturnDirection distinguishes the two return flows.
type ReturnDirection string

const (
	// ReturnFromCustomer re-enters stock and blends into the average cost.
	ReturnFromCustomer ReturnDirection = "FROM_CUSTOMER"
	// ReturnToSupplier is logged only; the ledger quantity is not touched.
	ReturnToSupplier ReturnDirection = "TO_SUPPLIER"
)

// Item is the per-company stock ledger row: one row per item code holding
// on-hand, reserved and available quantities plus the moving-average cost.
type Item struct {
	ID                int64
	CompanyID         int64
	Code              string
	Name              string
	Unit              string
	QuantityOnHand    float64
	QuantityReserved  float64
	QuantityAvailable float64
	AverageCost       float64
	TotalValue        float64
	SellingPrice      float64
	MinQuantity       float64
	MaxQuantity       float64
	VATRate           float64
	CustomsRate       float64
	IsImported        bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Entry is an immutable transaction log record. Appending a validated entry is
// the only way the ledger quantities change.
type Entry struct {
	ID             int64
	CompanyID      int64
	ItemID         int64
	Kind           TransactionKind
	Status         TransactionStatus
	DocumentNumber string
	DocumentDate   time.Time
	Quantity       float64
	UnitPrice      float64
	TotalValue     float64
	VATAmount      float64
	CustomsAmount  float64
	LandedCost     float64
	JobRef         uuid.UUID
	PartnerRef     string
	DeclarationRef uuid.UUID
	FromLocation   string
	ToLocation     string
	Note           string
	CreatedBy      int64
	CreatedAt      time.Time
}

// DocumentInfo carries caller-supplied document metadata. The date is not
// validated against a calendar.
type DocumentInfo struct {
	Number       string
	Date         time.Time
	PartnerRef   string
	FromLocation string
	ToLocation   string
	Note         string
}

// TaxMeta is copied onto transactions at the time they occur.
type TaxMeta struct {
	VATRate        float64
	CustomsRate    float64
	CustomsAmount  float64
	LandedCost     float64
	DeclarationRef uuid.UUID
}

// RegisterItemInput describes a new ledger row. Quantity always starts at zero.
type RegisterItemInput struct {
	Code         string
	Name         string
	Unit         string
	SellingPrice float64
	MinQuantity  float64
	MaxQuantity  float64
	VATRate      float64
	CustomsRate  float64
	IsImported   bool
}

// ReceiveInput describes an inbound receipt.
type ReceiveInput struct {
	ItemID    int64
	Quantity  float64
	UnitPrice float64
	Tax       TaxMeta
	Document  DocumentInfo
	ActorID   int64
}

// IssueInput describes an outbound issue. The unit price is always the ledger's
// current average cost; callers cannot set it.
type IssueInput struct {
	ItemID   int64
	Quantity float64
	Document DocumentInfo
	JobRef   uuid.UUID
	ActorID  int64
}

// ReturnInput describes a return in either direction.
type ReturnInput struct {
	ItemID    int64
	Quantity  float64
	UnitPrice float64
	Direction ReturnDirection
	Document  DocumentInfo
	JobRef    uuid.UUID
	ActorID   int64
}

// EntryFilter filters transaction listings.
type EntryFilter struct {
	ItemID  int64
	Kind    TransactionKind
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// ErrInsufficientStock is returned when an issue exceeds the available quantity.
var ErrInsufficientStock = errors.New("stock: insufficient quantity available")

// ErrInsufficientAvailable is returned when a reservation exceeds the available quantity.
var ErrInsufficientAvailable = errors.New("stock: insufficient quantity available to reserve")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")

// ErrInvalidUnitPrice indicates a negative unit price.
var ErrInvalidUnitPrice = errors.New("stock: unit price must be >= 0")

// ErrItemNotFound indicates an unknown item within the caller's company.
var ErrItemNotFound = errors.New("stock: item not found")

// ErrItemInactive indicates the item was deactivated.
var ErrItemInactive = errors.New("stock: item is inactive")

// ErrItemExists indicates a duplicate item code within the company.
var ErrItemExists = errors.New("stock: item code already registered")

// ErrInvalidReturnDirection indicates an unknown return direction.
var ErrInvalidReturnDirection = errors.New("stock: unknown return direction")
