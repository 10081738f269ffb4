package customs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	declarations map[uuid.UUID]Declaration
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{declarations: make(map[uuid.UUID]Declaration)}
}

func (r *memoryRepo) Insert(ctx context.Context, d Declaration) error {
	r.declarations[d.ID] = d
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, d Declaration) error {
	if _, ok := r.declarations[d.ID]; !ok {
		return ErrDeclarationNotFound
	}
	r.declarations[d.ID] = d
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, companyID int64, id uuid.UUID) (Declaration, error) {
	d, ok := r.declarations[id]
	if !ok || d.CompanyID != companyID {
		return Declaration{}, ErrDeclarationNotFound
	}
	return d, nil
}

func (r *memoryRepo) List(ctx context.Context, companyID int64, limit int) ([]Declaration, error) {
	result := []Declaration{}
	for _, d := range r.declarations {
		if d.CompanyID == companyID {
			result = append(result, d)
		}
	}
	return result, nil
}

func TestCreateComputesTotals(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	d, err := svc.Create(context.Background(), 1, declInput(), 0)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, d.ID)
	requireDecimal(t, "342.4", d.Totals.TotalAmount)
}

func TestUpdateRecomputesEverything(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	d, err := svc.Create(ctx, 1, declInput(), 0)
	require.NoError(t, err)

	in := declInput()
	in.FreightCost = decimal.NewFromInt(100)
	updated, err := svc.Update(ctx, 1, d.ID, in, 0)
	require.NoError(t, err)
	requireDecimal(t, "1120", updated.Totals.TotalLandedCost)
	requireDecimal(t, "112", updated.Totals.CustomsDuty)

	stored, err := svc.Get(ctx, 1, d.ID)
	require.NoError(t, err)
	require.True(t, stored.Totals.TotalLandedCost.Equal(updated.Totals.TotalLandedCost))
}

func TestUpdateUnknownDeclaration(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.Update(context.Background(), 1, uuid.New(), declInput(), 0)
	require.ErrorIs(t, err, ErrDeclarationNotFound)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	in := declInput()
	in.ExchangeRate = decimal.Zero
	_, err := svc.Create(context.Background(), 1, in, 0)
	require.ErrorIs(t, err, ErrInvalidExchangeRate)
}

func TestCompanyScopedGet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	d, err := svc.Create(ctx, 1, declInput(), 0)
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, d.ID)
	require.ErrorIs(t, err, ErrDeclarationNotFound)
}
