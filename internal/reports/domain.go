package reports

import "time"

// DateRange bounds a report window. Zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Valuation sums the active ledger rows of a company.
type Valuation struct {
	ItemCount        int64
	QuantityOnHand   float64
	QuantityReserved float64
	TotalValue       float64
}

// TransactionSummary aggregates the transaction log per direction.
type TransactionSummary struct {
	InputCount     int64
	InputValue     float64
	OutputCount    int64
	OutputValue    float64
	ReturnInCount  int64
	ReturnInValue  float64
	ReturnOutCount int64
	ReturnOutValue float64
	VATTotal       float64
	CustomsTotal   float64
}

// JobMaterialsSummary aggregates cost, revenue and margin across job-linked
// movements.
type JobMaterialsSummary struct {
	MovementCount    int64
	TotalCost        float64
	TotalRevenue     float64
	TotalMargin      float64
	MarginPercentage float64
}

// Report is the combined dashboard rollup. Aggregates tolerate zero rows and
// come back zeroed, never as an error.
type Report struct {
	CompanyID    int64
	Range        DateRange
	Valuation    Valuation
	Transactions TransactionSummary
	JobMaterials JobMaterialsSummary
	GeneratedAt  time.Time
}
