package customs

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, d Declaration) error
	Update(ctx context.Context, d Declaration) error
	Get(ctx context.Context, companyID int64, id uuid.UUID) (Declaration, error)
	List(ctx context.Context, companyID int64, limit int) ([]Declaration, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customs declarations. All derived figures come from the
// pure Compute pipeline; persistence only stores its output.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create stores a new declaration with computed totals.
func (s *Service) Create(ctx context.Context, companyID int64, input DeclarationInput, actorID int64) (Declaration, error) {
	if companyID == 0 {
		return Declaration{}, shared.ErrCompanyRequired
	}
	if err := validateInput(input); err != nil {
		return Declaration{}, err
	}
	d := Declaration{
		ID:        uuid.New(),
		CompanyID: companyID,
		Input:     input,
		Totals:    Compute(input),
	}
	if err := s.repo.Insert(ctx, d); err != nil {
		return Declaration{}, err
	}
	s.recordAudit(ctx, d, actorID, "customs:create")
	return d, nil
}

// Update replaces a declaration's inputs and recomputes every derived field.
func (s *Service) Update(ctx context.Context, companyID int64, id uuid.UUID, input DeclarationInput, actorID int64) (Declaration, error) {
	if companyID == 0 {
		return Declaration{}, shared.ErrCompanyRequired
	}
	if err := validateInput(input); err != nil {
		return Declaration{}, err
	}
	d, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Declaration{}, err
	}
	d.Input = input
	d.Totals = Compute(input)
	if err := s.repo.Update(ctx, d); err != nil {
		return Declaration{}, err
	}
	s.recordAudit(ctx, d, actorID, "customs:update")
	return d, nil
}

// Get returns one declaration.
func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (Declaration, error) {
	if companyID == 0 {
		return Declaration{}, shared.ErrCompanyRequired
	}
	return s.repo.Get(ctx, companyID, id)
}

// List returns declarations for a company.
func (s *Service) List(ctx context.Context, companyID int64, limit int) ([]Declaration, error) {
	if companyID == 0 {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.List(ctx, companyID, limit)
}

// Quote computes totals without persisting anything.
func (s *Service) Quote(input DeclarationInput) (Totals, error) {
	if err := validateInput(input); err != nil {
		return Totals{}, err
	}
	return Compute(input), nil
}

func (s *Service) recordAudit(ctx context.Context, d Declaration, actorID int64, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: d.CompanyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "customs_declaration",
		EntityID:  d.ID.String(),
		Meta: map[string]any{
			"number":       d.Input.Number,
			"total_amount": d.Totals.TotalAmount.String(),
		},
	})
}
