package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Valuation(ctx context.Context, companyID int64) (Valuation, error)
	TransactionSummary(ctx context.Context, companyID int64, rng DateRange) (TransactionSummary, error)
	JobMaterialsSummary(ctx context.Context, companyID int64, rng DateRange) (JobMaterialsSummary, error)
}

// Service composes the dashboard report. The three rollups run concurrently;
// they are not required to observe a single consistent snapshot.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetReport returns the combined rollup for a company.
func (s *Service) GetReport(ctx context.Context, companyID int64, rng DateRange) (Report, error) {
	if companyID == 0 {
		return Report{}, shared.ErrCompanyRequired
	}
	report := Report{CompanyID: companyID, Range: rng}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.repo.Valuation(ctx, companyID)
		if err != nil {
			return err
		}
		report.Valuation = v
		return nil
	})
	g.Go(func() error {
		t, err := s.repo.TransactionSummary(ctx, companyID, rng)
		if err != nil {
			return err
		}
		report.Transactions = t
		return nil
	})
	g.Go(func() error {
		j, err := s.repo.JobMaterialsSummary(ctx, companyID, rng)
		if err != nil {
			return err
		}
		report.JobMaterials = j
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	report.GeneratedAt = time.Now().UTC()
	return report, nil
}
