package reports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/shared"
)

type stubRepo struct {
	valuation    Valuation
	transactions TransactionSummary
	jobMaterials JobMaterialsSummary
	err          error
}

func (r stubRepo) Valuation(ctx context.Context, companyID int64) (Valuation, error) {
	return r.valuation, r.err
}

func (r stubRepo) TransactionSummary(ctx context.Context, companyID int64, rng DateRange) (TransactionSummary, error) {
	return r.transactions, nil
}

func (r stubRepo) JobMaterialsSummary(ctx context.Context, companyID int64, rng DateRange) (JobMaterialsSummary, error) {
	return r.jobMaterials, nil
}

func TestGetReportCombinesRollups(t *testing.T) {
	repo := stubRepo{
		valuation:    Valuation{ItemCount: 3, QuantityOnHand: 42, TotalValue: 4200},
		transactions: TransactionSummary{InputCount: 5, InputValue: 5000, OutputCount: 2, OutputValue: 800},
		jobMaterials: JobMaterialsSummary{MovementCount: 4, TotalCost: 800, TotalRevenue: 1200, TotalMargin: 400, MarginPercentage: 50},
	}
	svc := NewService(repo)

	report, err := svc.GetReport(context.Background(), 1, DateRange{})
	require.NoError(t, err)
	require.Equal(t, int64(1), report.CompanyID)
	require.Equal(t, int64(3), report.Valuation.ItemCount)
	require.InDelta(t, 5000.0, report.Transactions.InputValue, 0.0001)
	require.InDelta(t, 50.0, report.JobMaterials.MarginPercentage, 0.0001)
	require.False(t, report.GeneratedAt.IsZero())
}

func TestGetReportEmptyCompany(t *testing.T) {
	svc := NewService(stubRepo{})

	report, err := svc.GetReport(context.Background(), 7, DateRange{})
	require.NoError(t, err)
	require.Zero(t, report.Valuation.ItemCount)
	require.Zero(t, report.Transactions.InputCount)
	require.Zero(t, report.JobMaterials.MovementCount)
}

func TestGetReportPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(stubRepo{err: boom})

	_, err := svc.GetReport(context.Background(), 1, DateRange{})
	require.ErrorIs(t, err, boom)
}

func TestGetReportRequiresCompany(t *testing.T) {
	svc := NewService(stubRepo{})

	_, err := svc.GetReport(context.Background(), 0, DateRange{})
	require.ErrorIs(t, err, shared.ErrCompanyRequired)
}
