package movement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fieldserve/fieldserve/internal/stock"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[int64]stock.Item
	movements map[int64]Movement
	entries   []stock.Entry
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64]stock.Item),
		movements: make(map[int64]Movement),
	}
}

func (r *memoryRepo) seedItem(item stock.Item) {
	r.items[item.ID] = item
}

// WithTx serializes callbacks with a mutex, mirroring the row lock the SQL
// repository takes on the item.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetMovement(ctx context.Context, companyID, movementID int64) (Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.movements[movementID]
	if !ok || m.CompanyID != companyID {
		return Movement{}, ErrMovementNotFound
	}
	return m, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, companyID int64, filter Filter) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Movement{}
	for _, m := range r.movements {
		if m.CompanyID != companyID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.ItemID != 0 && m.ItemID != filter.ItemID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (stock.Item, error) {
	item, ok := tx.repo.items[itemID]
	if !ok || item.CompanyID != companyID {
		return stock.Item{}, stock.ErrItemNotFound
	}
	return item, nil
}

func (tx *memoryTx) UpdateItemLevels(ctx context.Context, item stock.Item) error {
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryTx) GetOpenMovementForUpdate(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64) (Movement, error) {
	for _, m := range tx.repo.movements {
		if m.CompanyID == companyID && m.JobRef == jobRef && m.ItemID == itemID && m.Status == StatusReserved {
			return m, nil
		}
	}
	return Movement{}, ErrMovementNotFound
}

func (tx *memoryTx) GetMovementForUpdate(ctx context.Context, companyID, movementID int64) (Movement, error) {
	m, ok := tx.repo.movements[movementID]
	if !ok || m.CompanyID != companyID {
		return Movement{}, ErrMovementNotFound
	}
	return m, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements[m.ID] = m
	return m.ID, nil
}

func (tx *memoryTx) UpdateMovement(ctx context.Context, m Movement) error {
	if _, ok := tx.repo.movements[m.ID]; !ok {
		return ErrMovementNotFound
	}
	tx.repo.movements[m.ID] = m
	return nil
}

func (tx *memoryTx) InsertStockEntry(ctx context.Context, entry stock.Entry) (int64, error) {
	tx.repo.entries = append(tx.repo.entries, entry)
	return int64(len(tx.repo.entries)), nil
}

func seedLedger(repo *memoryRepo, quantity, avgCost, sellingPrice float64) stock.Item {
	item := stock.Item{
		ID:           1,
		CompanyID:    1,
		Code:         "PIPE-040",
		Name:         "PVC pipe 40mm",
		AverageCost:  avgCost,
		SellingPrice: sellingPrice,
		IsActive:     true,
	}
	if quantity > 0 {
		_, _ = item.ApplyReceipt(quantity, avgCost)
	}
	repo.seedItem(item)
	return item
}

func TestReserveSnapshotsCostAndMargin(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 10, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	m, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: uuid.New(), ItemID: 1, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, StatusReserved, m.Status)
	require.InDelta(t, 100.0, m.UnitCost, 0.0001)
	require.InDelta(t, 150.0, m.UnitSellingPrice, 0.0001)
	require.InDelta(t, 400.0, m.TotalCost, 0.0001)
	require.InDelta(t, 600.0, m.TotalSellingPrice, 0.0001)
	require.InDelta(t, 200.0, m.Margin, 0.0001)
	require.InDelta(t, 50.0, m.MarginPercentage, 0.0001)
	require.False(t, m.ReservedAt.IsZero())

	item := repo.items[1]
	require.InDelta(t, 10.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 4.0, item.QuantityReserved, 0.0001)
	require.InDelta(t, 6.0, item.QuantityAvailable, 0.0001)
}

func TestReserveReplacesOpenReservation(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 10, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	jobRef := uuid.New()

	first, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: jobRef, ItemID: 1, Quantity: 4})
	require.NoError(t, err)

	second, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: jobRef, ItemID: 1, Quantity: 7})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.InDelta(t, 7.0, second.Quantity, 0.0001)

	item := repo.items[1]
	require.InDelta(t, 7.0, item.QuantityReserved, 0.0001)
	require.Len(t, repo.movements, 1)
}

func TestReserveBeyondAvailable(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 5, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: uuid.New(), ItemID: 1, Quantity: 6})
	require.ErrorIs(t, err, stock.ErrInsufficientAvailable)
	require.Empty(t, repo.movements)
	require.InDelta(t, 0.0, repo.items[1].QuantityReserved, 0.0001)
}

func TestIssueTransitions(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 10, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	m, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: uuid.New(), ItemID: 1, Quantity: 4})
	require.NoError(t, err)

	issued, err := svc.Issue(ctx, 1, m.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusIssued, issued.Status)
	require.Equal(t, int64(7), issued.WorkerID)
	require.False(t, issued.IssuedAt.IsZero())

	// Issuing twice keeps the first issue timestamp.
	again, err := svc.Issue(ctx, 1, m.ID, 8)
	require.NoError(t, err)
	require.Equal(t, issued.IssuedAt, again.IssuedAt)
	require.Equal(t, int64(8), again.WorkerID)

	done, err := svc.MarkUsed(ctx, 1, m.ID)
	require.NoError(t, err)
	require.Equal(t, StatusUsed, done.Status)

	_, err = svc.Issue(ctx, 1, m.ID, 7)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestReturnExceedsQuantity(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 10, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	m, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: uuid.New(), ItemID: 1, Quantity: 4})
	require.NoError(t, err)

	_, err = svc.ReturnUnused(ctx, 1, m.ID, 5)
	require.ErrorIs(t, err, ErrReturnExceedsQuantity)
}

func TestReturnFromReservedReleasesOnly(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 10, 100, 150)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	m, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: uuid.New(), ItemID: 1, Quantity: 4})
	require.NoError(t, err)

	returned, err := svc.ReturnUnused(ctx, 1, m.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
	require.InDelta(t, 0.0, returned.Quantity, 0.0001)

	// The quantity never left the ledger, so nothing re-enters it.
	item := repo.items[1]
	require.InDelta(t, 10.0, item.QuantityOnHand, 0.0001)
	require.InDelta(t, 0.0, item.QuantityReserved, 0.0001)
	require.Empty(t, repo.entries)
}

func TestMaterialFlowAcrossModules(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	stockSvc := stock.NewService(stockPort{repo}, nil, nil, nil)
	ctx := context.Background()
	jobRef := uuid.New()

	item := stock.Item{ID: 1, CompanyID: 1, Code: "PIPE-040", SellingPrice: 150, IsActive: true}
	repo.seedItem(item)

	_, err := stockSvc.ReceiveStock(ctx, 1, stock.ReceiveInput{ItemID: 1, Quantity: 10, UnitPrice: 100})
	require.NoError(t, err)

	m, err := svc.Reserve(ctx, 1, ReserveInput{JobRef: jobRef, ItemID: 1, Quantity: 4})
	require.NoError(t, err)

	_, err = stockSvc.IssueStock(ctx, 1, stock.IssueInput{ItemID: 1, Quantity: 4, JobRef: jobRef})
	require.NoError(t, err)

	issued, err := svc.Issue(ctx, 1, m.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusIssued, issued.Status)

	returned, err := svc.ReturnUnused(ctx, 1, m.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
	require.InDelta(t, 3.0, returned.Quantity, 0.0001)

	got := repo.items[1]
	require.InDelta(t, 7.0, got.QuantityOnHand, 0.0001)
	require.InDelta(t, 3.0, got.QuantityReserved, 0.0001)
	require.InDelta(t, 4.0, got.QuantityAvailable, 0.0001)
	require.InDelta(t, 100.0, got.AverageCost, 0.0001)
	require.InDelta(t, 700.0, got.TotalValue, 0.0001)

	// The release path recorded a RETURN_IN entry for the issued quantity.
	require.Len(t, repo.entries, 1)
	require.Equal(t, stock.KindReturnIn, repo.entries[0].Kind)
	require.InDelta(t, 1.0, repo.entries[0].Quantity, 0.0001)
}

func TestConcurrentReservesLastUnit(t *testing.T) {
	repo := newMemoryRepo()
	seedLedger(repo, 1, 100, 150)
	svc := NewService(repo, nil, nil)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Reserve(context.Background(), 1, ReserveInput{
				JobRef: uuid.New(), ItemID: 1, Quantity: 1,
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded, failed := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, stock.ErrInsufficientAvailable)
			failed++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)
	require.InDelta(t, 1.0, repo.items[1].QuantityReserved, 0.0001)
}

// stockPort adapts the movement memory repo to the stock service so both
// services mutate the same in-memory ledger, the way the SQL repositories
// share tables.
type stockPort struct {
	repo *memoryRepo
}

func (p stockPort) WithTx(ctx context.Context, fn func(context.Context, stock.TxRepository) error) error {
	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()
	return fn(ctx, stockTx{repo: p.repo})
}

func (p stockPort) GetItem(ctx context.Context, companyID, itemID int64) (stock.Item, error) {
	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()
	item, ok := p.repo.items[itemID]
	if !ok || item.CompanyID != companyID {
		return stock.Item{}, stock.ErrItemNotFound
	}
	return item, nil
}

func (p stockPort) ListItems(ctx context.Context, companyID int64) ([]stock.Item, error) {
	return nil, nil
}

func (p stockPort) ListEntries(ctx context.Context, companyID int64, filter stock.EntryFilter) ([]stock.Entry, error) {
	return nil, nil
}

func (p stockPort) CountEntries(ctx context.Context, companyID int64, filter stock.EntryFilter) (int, error) {
	return 0, nil
}

type stockTx struct {
	repo *memoryRepo
}

func (tx stockTx) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (stock.Item, error) {
	item, ok := tx.repo.items[itemID]
	if !ok || item.CompanyID != companyID {
		return stock.Item{}, stock.ErrItemNotFound
	}
	return item, nil
}

func (tx stockTx) InsertItem(ctx context.Context, item stock.Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx stockTx) UpdateItemLevels(ctx context.Context, item stock.Item) error {
	tx.repo.items[item.ID] = item
	return nil
}

func (tx stockTx) SetItemActive(ctx context.Context, companyID, itemID int64, active bool) error {
	item := tx.repo.items[itemID]
	item.IsActive = active
	tx.repo.items[itemID] = item
	return nil
}

func (tx stockTx) InsertEntry(ctx context.Context, entry stock.Entry) (int64, error) {
	tx.repo.entries = append(tx.repo.entries, entry)
	return int64(len(tx.repo.entries)), nil
}

func (tx stockTx) MarkMovementIssued(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64, issuedAt time.Time) (bool, error) {
	for id, m := range tx.repo.movements {
		if m.CompanyID == companyID && m.JobRef == jobRef && m.ItemID == itemID && m.Status == StatusReserved {
			m.Status = StatusIssued
			if m.IssuedAt.IsZero() {
				m.IssuedAt = issuedAt
			}
			tx.repo.movements[id] = m
			return true, nil
		}
	}
	return false, nil
}
