package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, companyID, itemID int64) (Item, error)
	ListItems(ctx context.Context, companyID int64) ([]Item, error)
	ListEntries(ctx context.Context, companyID int64, filter EntryFilter) ([]Entry, error)
	CountEntries(ctx context.Context, companyID int64, filter EntryFilter) (int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger mutations and the transaction log. Every posted
// entry and its ledger effect commit or roll back as one unit.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	notifier    Notifier
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, notifier Notifier) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, notifier: notifier}
}

// RegisterItem creates a ledger row at quantity zero.
func (s *Service) RegisterItem(ctx context.Context, companyID int64, input RegisterItemInput) (Item, error) {
	if companyID == 0 {
		return Item{}, shared.ErrCompanyRequired
	}
	if input.Code == "" {
		return Item{}, fmt.Errorf("stock: item code required")
	}
	if input.SellingPrice < 0 || input.VATRate < 0 || input.CustomsRate < 0 {
		return Item{}, shared.ErrInvalidAmount
	}
	item := Item{
		CompanyID:    companyID,
		Code:         input.Code,
		Name:         input.Name,
		Unit:         input.Unit,
		SellingPrice: input.SellingPrice,
		MinQuantity:  input.MinQuantity,
		MaxQuantity:  input.MaxQuantity,
		VATRate:      input.VATRate,
		CustomsRate:  input.CustomsRate,
		IsImported:   input.IsImported,
		IsActive:     true,
	}
	item.recompute()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, companyID, 0, "stock:register", item.ID, map[string]any{"code": item.Code})
	return item, nil
}

// DeactivateItem soft-deletes an item. Historical transactions stay valid.
func (s *Service) DeactivateItem(ctx context.Context, companyID, itemID int64) error {
	if companyID == 0 {
		return shared.ErrCompanyRequired
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetItemActive(ctx, companyID, itemID, false)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, 0, "stock:deactivate", itemID, nil)
	return nil
}

// GetItem returns one ledger row.
func (s *Service) GetItem(ctx context.Context, companyID, itemID int64) (Item, error) {
	if companyID == 0 {
		return Item{}, shared.ErrCompanyRequired
	}
	return s.repo.GetItem(ctx, companyID, itemID)
}

// ListItems returns the active ledger rows for a company.
func (s *Service) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	if companyID == 0 {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.ListItems(ctx, companyID)
}

// ListEntries returns one page of transaction log entries with pagination
// metadata.
func (s *Service) ListEntries(ctx context.Context, companyID int64, filter EntryFilter) ([]Entry, shared.Pagination, error) {
	if companyID == 0 {
		return nil, shared.Pagination{}, shared.ErrCompanyRequired
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	total, err := s.repo.CountEntries(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	entries, err := s.repo.ListEntries(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ReceiveStock posts an inbound receipt: blends the receipt into the moving
// average and appends a CONFIRMED INPUT entry.
func (s *Service) ReceiveStock(ctx context.Context, companyID int64, input ReceiveInput) (Entry, error) {
	if companyID == 0 {
		return Entry{}, shared.ErrCompanyRequired
	}
	if input.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	if input.UnitPrice < 0 {
		return Entry{}, ErrInvalidUnitPrice
	}
	now := time.Now().UTC()
	entry := Entry{
		CompanyID:      companyID,
		ItemID:         input.ItemID,
		Kind:           KindInput,
		Status:         StatusConfirmed,
		DocumentNumber: input.Document.Number,
		DocumentDate:   documentDate(input.Document, now),
		Quantity:       input.Quantity,
		UnitPrice:      input.UnitPrice,
		TotalValue:     input.Quantity * input.UnitPrice,
		CustomsAmount:  input.Tax.CustomsAmount,
		LandedCost:     input.Tax.LandedCost,
		PartnerRef:     input.Document.PartnerRef,
		DeclarationRef: input.Tax.DeclarationRef,
		FromLocation:   input.Document.FromLocation,
		ToLocation:     input.Document.ToLocation,
		Note:           input.Document.Note,
		CreatedBy:      input.ActorID,
	}
	if input.Tax.VATRate > 0 {
		entry.VATAmount = entry.TotalValue * input.Tax.VATRate / 100
	}
	err := s.postEntry(ctx, &entry, func(item *Item) error {
		_, err := item.ApplyReceipt(input.Quantity, input.UnitPrice)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterPost(ctx, entry, input.ActorID)
	return entry, nil
}

// IssueStock posts an outbound issue. The unit price is always the ledger's
// current average cost and no VAT is charged on outbound movements. With a job
// reference the open reservation for (job, item) is bridged to ISSUED in the
// same transaction.
func (s *Service) IssueStock(ctx context.Context, companyID int64, input IssueInput) (Entry, error) {
	if companyID == 0 {
		return Entry{}, shared.ErrCompanyRequired
	}
	if input.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	entry := Entry{
		CompanyID:      companyID,
		ItemID:         input.ItemID,
		Kind:           KindOutput,
		Status:         StatusConfirmed,
		DocumentNumber: input.Document.Number,
		DocumentDate:   documentDate(input.Document, now),
		Quantity:       input.Quantity,
		JobRef:         input.JobRef,
		PartnerRef:     input.Document.PartnerRef,
		FromLocation:   input.Document.FromLocation,
		ToLocation:     input.Document.ToLocation,
		Note:           input.Document.Note,
		CreatedBy:      input.ActorID,
	}
	err := s.postEntry(ctx, &entry, func(item *Item) error {
		unitCost, err := item.ApplyIssue(input.Quantity)
		if err != nil {
			return err
		}
		entry.UnitPrice = unitCost
		entry.TotalValue = input.Quantity * unitCost
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterPost(ctx, entry, input.ActorID)
	return entry, nil
}

// ReturnStock posts a return. FROM_CUSTOMER re-enters stock like a receipt;
// TO_SUPPLIER is logged only and deliberately leaves the ledger quantity
// untouched.
func (s *Service) ReturnStock(ctx context.Context, companyID int64, input ReturnInput) (Entry, error) {
	if companyID == 0 {
		return Entry{}, shared.ErrCompanyRequired
	}
	if input.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	if input.UnitPrice < 0 {
		return Entry{}, ErrInvalidUnitPrice
	}
	var kind TransactionKind
	switch input.Direction {
	case ReturnFromCustomer:
		kind = KindReturnIn
	case ReturnToSupplier:
		kind = KindReturnOut
	default:
		return Entry{}, ErrInvalidReturnDirection
	}
	now := time.Now().UTC()
	entry := Entry{
		CompanyID:      companyID,
		ItemID:         input.ItemID,
		Kind:           kind,
		Status:         StatusConfirmed,
		DocumentNumber: input.Document.Number,
		DocumentDate:   documentDate(input.Document, now),
		Quantity:       input.Quantity,
		UnitPrice:      input.UnitPrice,
		TotalValue:     input.Quantity * input.UnitPrice,
		JobRef:         input.JobRef,
		PartnerRef:     input.Document.PartnerRef,
		FromLocation:   input.Document.FromLocation,
		ToLocation:     input.Document.ToLocation,
		Note:           input.Document.Note,
		CreatedBy:      input.ActorID,
	}
	err := s.postEntry(ctx, &entry, func(item *Item) error {
		if kind == KindReturnIn {
			return item.ApplyReturnToStock(input.Quantity, input.UnitPrice)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterPost(ctx, entry, input.ActorID)
	return entry, nil
}

// postEntry runs the shared append path: lock the item row, apply the ledger
// mutation, append the entry and persist the new levels as one transaction.
// When a document number is present the entry is deduplicated through the
// idempotency store; the key is removed again if the transaction aborts.
func (s *Service) postEntry(ctx context.Context, entry *Entry, mutate func(*Item) error) error {
	key := ""
	if s.idempotency != nil && entry.DocumentNumber != "" {
		key = fmt.Sprintf("%s:%s:%d:%d", entry.Kind, entry.DocumentNumber, entry.CompanyID, entry.ItemID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return err
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, entry.CompanyID, entry.ItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return ErrItemInactive
		}
		if err := mutate(&item); err != nil {
			return err
		}
		id, err := tx.InsertEntry(ctx, *entry)
		if err != nil {
			return err
		}
		entry.ID = id
		if entry.Kind == KindOutput && entry.JobRef != uuid.Nil {
			if _, err := tx.MarkMovementIssued(ctx, entry.CompanyID, entry.JobRef, entry.ItemID, entry.DocumentDate); err != nil {
				return err
			}
		}
		return tx.UpdateItemLevels(ctx, item)
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	return nil
}

func (s *Service) afterPost(ctx context.Context, entry Entry, actorID int64) {
	s.recordAudit(ctx, entry.CompanyID, actorID, fmt.Sprintf("stock:%s", entry.Kind), entry.ItemID, map[string]any{
		"entry_id":   entry.ID,
		"qty":        entry.Quantity,
		"unit_price": entry.UnitPrice,
		"doc_number": entry.DocumentNumber,
	})
	if s.notifier != nil {
		s.notifier.StockMoved(ctx, MovementPostedEvent{
			Kind:           entry.Kind,
			CompanyID:      entry.CompanyID,
			ItemID:         entry.ItemID,
			Quantity:       entry.Quantity,
			UnitPrice:      entry.UnitPrice,
			DocumentNumber: entry.DocumentNumber,
			JobRef:         entry.JobRef,
			PostedAt:       entry.DocumentDate,
		})
	}
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "stock_item",
		EntityID:  fmt.Sprintf("%d", itemID),
		Meta:      meta,
	})
}

func documentDate(doc DocumentInfo, fallback time.Time) time.Time {
	if doc.Date.IsZero() {
		return fallback
	}
	return doc.Date
}
