package stock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/shared"
)

type memoryRepo struct {
	items       map[int64]Item
	entries     []Entry
	issuedJobs  []uuid.UUID
	nextItemID  int64
	nextEntryID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, companyID, itemID int64) (Item, error) {
	item, ok := r.items[itemID]
	if !ok || item.CompanyID != companyID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	result := []Item{}
	for _, item := range r.items {
		if item.CompanyID == companyID && item.IsActive {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, companyID int64, filter EntryFilter) ([]Entry, error) {
	result := []Entry{}
	for _, entry := range r.entries {
		if entry.CompanyID != companyID {
			continue
		}
		if filter.ItemID != 0 && entry.ItemID != filter.ItemID {
			continue
		}
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (r *memoryRepo) CountEntries(ctx context.Context, companyID int64, filter EntryFilter) (int, error) {
	entries, err := r.ListEntries(ctx, companyID, filter)
	return len(entries), err
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (Item, error) {
	return tx.repo.GetItem(ctx, companyID, itemID)
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	for _, existing := range tx.repo.items {
		if existing.CompanyID == item.CompanyID && existing.Code == item.Code {
			return 0, ErrItemExists
		}
	}
	tx.repo.nextItemID++
	item.ID = tx.repo.nextItemID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTx) UpdateItemLevels(ctx context.Context, item Item) error {
	if _, ok := tx.repo.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryTx) SetItemActive(ctx context.Context, companyID, itemID int64, active bool) error {
	item, err := tx.repo.GetItem(ctx, companyID, itemID)
	if err != nil {
		return err
	}
	item.IsActive = active
	tx.repo.items[itemID] = item
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextEntryID++
	entry.ID = tx.repo.nextEntryID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) MarkMovementIssued(ctx context.Context, companyID int64, jobRef uuid.UUID, itemID int64, issuedAt time.Time) (bool, error) {
	tx.repo.issuedJobs = append(tx.repo.issuedJobs, jobRef)
	return true, nil
}

func registerTestItem(t *testing.T, svc *Service, companyID int64) Item {
	t.Helper()
	item, err := svc.RegisterItem(context.Background(), companyID, RegisterItemInput{
		Code: "CBL-001",
		Name: "Coax cable",
		Unit: "m",
	})
	require.NoError(t, err)
	return item
}

func TestReceiveThenIssue(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	entry, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 10, UnitPrice: 100})
	require.NoError(t, err)
	require.Equal(t, KindInput, entry.Kind)
	require.Equal(t, StatusConfirmed, entry.Status)
	require.InDelta(t, 1000.0, entry.TotalValue, 0.0001)

	entry, err = svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 5, UnitPrice: 130})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 15.0, got.QuantityOnHand, 0.0001)
	require.InDelta(t, 110.0, got.AverageCost, 0.0001)

	entry, err = svc.IssueStock(ctx, 1, IssueInput{ItemID: item.ID, Quantity: 8})
	require.NoError(t, err)
	require.InDelta(t, 110.0, entry.UnitPrice, 0.0001)
	require.InDelta(t, 880.0, entry.TotalValue, 0.0001)

	got, err = svc.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 7.0, got.QuantityOnHand, 0.0001)
	require.InDelta(t, 110.0, got.AverageCost, 0.0001)
}

func TestIssueMoreThanOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	_, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 3, UnitPrice: 50})
	require.NoError(t, err)

	_, err = svc.IssueStock(ctx, 1, IssueInput{ItemID: item.ID, Quantity: 4})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// A failed issue leaves the ledger and log untouched.
	got, err := svc.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.0, got.QuantityOnHand, 0.0001)
	entries, _, err := svc.ListEntries(ctx, 1, EntryFilter{ItemID: item.ID, Kind: KindOutput})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReceiveComputesVAT(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	entry, err := svc.ReceiveStock(ctx, 1, ReceiveInput{
		ItemID:    item.ID,
		Quantity:  10,
		UnitPrice: 100,
		Tax:       TaxMeta{VATRate: 20},
	})
	require.NoError(t, err)
	require.InDelta(t, 200.0, entry.VATAmount, 0.0001)
}

func TestReturnDirections(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	_, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 10, UnitPrice: 100})
	require.NoError(t, err)
	_, err = svc.IssueStock(ctx, 1, IssueInput{ItemID: item.ID, Quantity: 4})
	require.NoError(t, err)

	entry, err := svc.ReturnStock(ctx, 1, ReturnInput{
		ItemID: item.ID, Quantity: 2, UnitPrice: 100, Direction: ReturnFromCustomer,
	})
	require.NoError(t, err)
	require.Equal(t, KindReturnIn, entry.Kind)
	got, err := svc.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 8.0, got.QuantityOnHand, 0.0001)

	// Supplier returns are logged without touching the ledger quantity.
	entry, err = svc.ReturnStock(ctx, 1, ReturnInput{
		ItemID: item.ID, Quantity: 1, UnitPrice: 100, Direction: ReturnToSupplier,
	})
	require.NoError(t, err)
	require.Equal(t, KindReturnOut, entry.Kind)
	got, err = svc.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 8.0, got.QuantityOnHand, 0.0001)

	_, err = svc.ReturnStock(ctx, 1, ReturnInput{
		ItemID: item.ID, Quantity: 1, UnitPrice: 100, Direction: "SIDEWAYS",
	})
	require.ErrorIs(t, err, ErrInvalidReturnDirection)
}

func TestInactiveItemRejectsMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	require.NoError(t, svc.DeactivateItem(ctx, 1, item.ID))
	_, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 1, UnitPrice: 10})
	require.ErrorIs(t, err, ErrItemInactive)
}

func TestDuplicateItemCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	registerTestItem(t, svc, 1)

	_, err := svc.RegisterItem(ctx, 1, RegisterItemInput{Code: "CBL-001", Name: "Duplicate"})
	require.ErrorIs(t, err, ErrItemExists)
}

func TestCompanyScopeRequired(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.GetItem(ctx, 0, 1)
	require.ErrorIs(t, err, shared.ErrCompanyRequired)
	_, err = svc.ReceiveStock(ctx, 0, ReceiveInput{ItemID: 1, Quantity: 1, UnitPrice: 1})
	require.ErrorIs(t, err, shared.ErrCompanyRequired)
}

func TestListEntriesPagination(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	for i := 0; i < 3; i++ {
		_, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 1, UnitPrice: 10})
		require.NoError(t, err)
	}

	entries, pagination, err := svc.ListEntries(ctx, 1, EntryFilter{ItemID: item.ID, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 2, pagination.PerPage)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 2, pagination.TotalPages)
}

func TestOutputWithJobRefBridgesReservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	item := registerTestItem(t, svc, 1)

	_, err := svc.ReceiveStock(ctx, 1, ReceiveInput{ItemID: item.ID, Quantity: 10, UnitPrice: 100})
	require.NoError(t, err)

	jobRef := uuid.New()
	_, err = svc.IssueStock(ctx, 1, IssueInput{ItemID: item.ID, Quantity: 4, JobRef: jobRef})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{jobRef}, repo.issuedJobs)
}
