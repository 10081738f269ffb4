package movement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMovement(ctx context.Context, companyID, movementID int64) (Movement, error)
	ListMovements(ctx context.Context, companyID int64, filter Filter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the job-linked reservation workflow. Each transition locks
// the ledger row it touches, so a movement and its ledger effect always commit
// together.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier}
}

// Reserve promises stock to a job. The unit cost is snapshotted from the
// item's current average cost. A repeat reserve for the same (job, item) pair
// replaces the open reservation's quantity and price instead of creating a
// second row.
func (s *Service) Reserve(ctx context.Context, companyID int64, input ReserveInput) (Movement, error) {
	if companyID == 0 {
		return Movement{}, shared.ErrCompanyRequired
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.JobRef == uuid.Nil {
		return Movement{}, fmt.Errorf("movement: job reference required")
	}
	now := time.Now().UTC()
	var result Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, companyID, input.ItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return stock.ErrItemInactive
		}
		existing, err := tx.GetOpenMovementForUpdate(ctx, companyID, input.JobRef, input.ItemID)
		replacing := err == nil
		if err != nil && !errors.Is(err, ErrMovementNotFound) {
			return err
		}
		if replacing {
			// Give the previous promise back before checking the new one.
			if err := item.Release(existing.Quantity); err != nil {
				return err
			}
		}
		if err := item.Reserve(input.Quantity); err != nil {
			return err
		}
		sellingPrice := item.SellingPrice
		if input.SellingPrice != nil {
			sellingPrice = *input.SellingPrice
		}
		m := existing
		if !replacing {
			m = Movement{
				CompanyID:  companyID,
				JobRef:     input.JobRef,
				ItemID:     input.ItemID,
				Status:     StatusReserved,
				ReservedAt: now,
			}
		}
		m.WorkerID = input.ActorID
		m.UnitCost = item.AverageCost
		m.UnitSellingPrice = sellingPrice
		m.repriceQuantity(input.Quantity)
		if replacing {
			if err := tx.UpdateMovement(ctx, m); err != nil {
				return err
			}
		} else {
			id, err := tx.InsertMovement(ctx, m)
			if err != nil {
				return err
			}
			m.ID = id
		}
		if err := tx.UpdateItemLevels(ctx, item); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterTransition(ctx, result, input.ActorID, "movement:reserve")
	return result, nil
}

// Issue marks a reserved movement as physically handed out. Ledger quantities
// do not change here; the OUTPUT transaction recorded by the stock module is
// what removes quantity from hand. Issuing is idempotent for movements already
// bridged to ISSUED by that transaction.
func (s *Service) Issue(ctx context.Context, companyID, movementID, workerID int64) (Movement, error) {
	if companyID == 0 {
		return Movement{}, shared.ErrCompanyRequired
	}
	now := time.Now().UTC()
	var result Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, companyID, movementID)
		if err != nil {
			return err
		}
		switch m.Status {
		case StatusReserved:
			m.Status = StatusIssued
			m.IssuedAt = now
		case StatusIssued:
			// Already bridged by an OUTPUT transaction; keep the first issue time.
		default:
			return ErrInvalidState
		}
		if workerID != 0 {
			m.WorkerID = workerID
		}
		if err := tx.UpdateMovement(ctx, m); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterTransition(ctx, result, workerID, "movement:issue")
	return result, nil
}

// ReturnUnused gives part or all of a movement back. The reserved quantity is
// always released; physically issued stock additionally re-enters the ledger
// at the movement's snapshotted unit cost, recorded as a RETURN_IN entry. A
// reservation that never reached ISSUED is a pure release, since its quantity
// never left the on-hand figure.
func (s *Service) ReturnUnused(ctx context.Context, companyID, movementID int64, quantity float64) (Movement, error) {
	if companyID == 0 {
		return Movement{}, shared.ErrCompanyRequired
	}
	if quantity < 0 {
		return Movement{}, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	var result Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, companyID, movementID)
		if err != nil {
			return err
		}
		if m.Status != StatusReserved && m.Status != StatusIssued {
			return ErrInvalidState
		}
		returnQty := quantity
		if returnQty == 0 {
			returnQty = m.Quantity
		}
		if returnQty > m.Quantity {
			return ErrReturnExceedsQuantity
		}
		item, err := tx.GetItemForUpdate(ctx, companyID, m.ItemID)
		if err != nil {
			return err
		}
		if err := item.Release(returnQty); err != nil {
			return err
		}
		wasIssued := m.Status == StatusIssued
		if wasIssued {
			if err := item.ApplyReturnToStock(returnQty, m.UnitCost); err != nil {
				return err
			}
			entry := stock.Entry{
				CompanyID:    companyID,
				ItemID:       m.ItemID,
				Kind:         stock.KindReturnIn,
				Status:       stock.StatusConfirmed,
				DocumentDate: now,
				Quantity:     returnQty,
				UnitPrice:    m.UnitCost,
				TotalValue:   returnQty * m.UnitCost,
				JobRef:       m.JobRef,
				Note:         "reservation return",
				CreatedBy:    m.WorkerID,
			}
			if _, err := tx.InsertStockEntry(ctx, entry); err != nil {
				return err
			}
		}
		m.repriceQuantity(m.Quantity - returnQty)
		m.Status = StatusReturned
		if m.ReturnedAt.IsZero() {
			m.ReturnedAt = now
		}
		if err := tx.UpdateMovement(ctx, m); err != nil {
			return err
		}
		if err := tx.UpdateItemLevels(ctx, item); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterTransition(ctx, result, 0, "movement:return")
	return result, nil
}

// MarkUsed closes an issued movement whose materials were consumed on the job.
// The remaining reserved quantity is released; nothing returns to hand.
func (s *Service) MarkUsed(ctx context.Context, companyID, movementID int64) (Movement, error) {
	if companyID == 0 {
		return Movement{}, shared.ErrCompanyRequired
	}
	var result Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, companyID, movementID)
		if err != nil {
			return err
		}
		if m.Status != StatusIssued {
			return ErrInvalidState
		}
		item, err := tx.GetItemForUpdate(ctx, companyID, m.ItemID)
		if err != nil {
			return err
		}
		if m.Quantity > 0 {
			if err := item.Release(m.Quantity); err != nil {
				return err
			}
		}
		m.Status = StatusUsed
		if err := tx.UpdateMovement(ctx, m); err != nil {
			return err
		}
		if err := tx.UpdateItemLevels(ctx, item); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterTransition(ctx, result, 0, "movement:use")
	return result, nil
}

// GetMovement returns one movement.
func (s *Service) GetMovement(ctx context.Context, companyID, movementID int64) (Movement, error) {
	if companyID == 0 {
		return Movement{}, shared.ErrCompanyRequired
	}
	return s.repo.GetMovement(ctx, companyID, movementID)
}

// ListMovements returns movements for a company.
func (s *Service) ListMovements(ctx context.Context, companyID int64, filter Filter) ([]Movement, error) {
	if companyID == 0 {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.ListMovements(ctx, companyID, filter)
}

func (s *Service) afterTransition(ctx context.Context, m Movement, actorID int64, action string) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: m.CompanyID,
			ActorID:   actorID,
			Action:    action,
			Entity:    "job_movement",
			EntityID:  fmt.Sprintf("%d", m.ID),
			Meta: map[string]any{
				"job_ref": m.JobRef.String(),
				"item_id": m.ItemID,
				"qty":     m.Quantity,
				"status":  string(m.Status),
			},
		})
	}
	if s.notifier != nil {
		s.notifier.MovementChanged(ctx, TransitionEvent{
			CompanyID:  m.CompanyID,
			MovementID: m.ID,
			JobRef:     m.JobRef,
			ItemID:     m.ItemID,
			Quantity:   m.Quantity,
			Status:     m.Status,
			OccurredAt: time.Now().UTC(),
		})
	}
}
