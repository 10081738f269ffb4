package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/observability"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), metrics: metrics}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/items", h.handleRegisterItem)
	r.Get("/items", h.handleListItems)
	r.Get("/items/{itemID}", h.handleGetItem)
	r.Delete("/items/{itemID}", h.handleDeactivateItem)
	r.Post("/receipts", h.handleReceive)
	r.Post("/issues", h.handleIssue)
	r.Post("/returns", h.handleReturn)
	r.Get("/transactions", h.handleListEntries)
}

type registerItemRequest struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Unit         string  `json:"unit"`
	SellingPrice float64 `json:"selling_price" validate:"gte=0"`
	MinQuantity  float64 `json:"min_quantity" validate:"gte=0"`
	MaxQuantity  float64 `json:"max_quantity" validate:"gte=0"`
	VATRate      float64 `json:"vat_rate" validate:"gte=0"`
	CustomsRate  float64 `json:"customs_rate" validate:"gte=0"`
	IsImported   bool    `json:"is_imported"`
}

type documentRequest struct {
	Number       string `json:"number"`
	Date         string `json:"date"`
	PartnerRef   string `json:"partner_ref"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	Note         string `json:"note"`
}

type receiveRequest struct {
	ItemID         int64           `json:"item_id" validate:"required"`
	Quantity       float64         `json:"quantity" validate:"gt=0"`
	UnitPrice      float64         `json:"unit_price" validate:"gte=0"`
	VATRate        float64         `json:"vat_rate" validate:"gte=0"`
	CustomsAmount  float64         `json:"customs_amount" validate:"gte=0"`
	LandedCost     float64         `json:"landed_cost" validate:"gte=0"`
	DeclarationRef string          `json:"declaration_ref"`
	Document       documentRequest `json:"document"`
}

type issueRequest struct {
	ItemID   int64           `json:"item_id" validate:"required"`
	Quantity float64         `json:"quantity" validate:"gt=0"`
	JobRef   string          `json:"job_ref"`
	Document documentRequest `json:"document"`
}

type returnRequest struct {
	ItemID    int64           `json:"item_id" validate:"required"`
	Quantity  float64         `json:"quantity" validate:"gt=0"`
	UnitPrice float64         `json:"unit_price" validate:"gte=0"`
	Direction string          `json:"direction" validate:"required,oneof=FROM_CUSTOMER TO_SUPPLIER"`
	JobRef    string          `json:"job_ref"`
	Document  documentRequest `json:"document"`
}

func (h *Handler) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req registerItemRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.RegisterItem(r.Context(), scope.CompanyID, RegisterItemInput{
		Code:         req.Code,
		Name:         req.Name,
		Unit:         req.Unit,
		SellingPrice: req.SellingPrice,
		MinQuantity:  req.MinQuantity,
		MaxQuantity:  req.MaxQuantity,
		VATRate:      req.VATRate,
		CustomsRate:  req.CustomsRate,
		IsImported:   req.IsImported,
	})
	if err != nil {
		h.respondError(w, r, "register item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	items, err := h.service.ListItems(r.Context(), scope.CompanyID)
	if err != nil {
		h.respondError(w, r, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id is not valid")
		return
	}
	item, err := h.service.GetItem(r.Context(), scope.CompanyID, itemID)
	if err != nil {
		h.respondError(w, r, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeactivateItem(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id is not valid")
		return
	}
	if err := h.service.DeactivateItem(r.Context(), scope.CompanyID, itemID); err != nil {
		h.respondError(w, r, "deactivate item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req receiveRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	declRef, ok := parseOptionalUUID(req.DeclarationRef)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "declaration_ref is not a valid uuid")
		return
	}
	entry, err := h.service.ReceiveStock(r.Context(), scope.CompanyID, ReceiveInput{
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Tax: TaxMeta{
			VATRate:        req.VATRate,
			CustomsAmount:  req.CustomsAmount,
			LandedCost:     req.LandedCost,
			DeclarationRef: declRef,
		},
		Document: parseDocument(req.Document),
		ActorID:  scope.ActorID,
	})
	if err != nil {
		h.respondError(w, r, "receive stock", err)
		return
	}
	h.metrics.CountMovement(string(KindInput))
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req issueRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	jobRef, ok := parseOptionalUUID(req.JobRef)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "job_ref is not a valid uuid")
		return
	}
	entry, err := h.service.IssueStock(r.Context(), scope.CompanyID, IssueInput{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Document: parseDocument(req.Document),
		JobRef:   jobRef,
		ActorID:  scope.ActorID,
	})
	if err != nil {
		h.respondError(w, r, "issue stock", err)
		return
	}
	h.metrics.CountMovement(string(KindOutput))
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req returnRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	jobRef, ok := parseOptionalUUID(req.JobRef)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "job_ref is not a valid uuid")
		return
	}
	entry, err := h.service.ReturnStock(r.Context(), scope.CompanyID, ReturnInput{
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Direction: ReturnDirection(req.Direction),
		Document:  parseDocument(req.Document),
		JobRef:    jobRef,
		ActorID:   scope.ActorID,
	})
	if err != nil {
		h.respondError(w, r, "return stock", err)
		return
	}
	h.metrics.CountMovement(string(entry.Kind))
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	q := r.URL.Query()
	filter := EntryFilter{Kind: TransactionKind(q.Get("kind"))}
	if itemStr := q.Get("item_id"); itemStr != "" {
		id, err := strconv.ParseInt(itemStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id is not valid")
			return
		}
		filter.ItemID = id
	}
	var ok bool
	if filter.From, filter.To, ok = parseRange(q.Get("from"), q.Get("to")); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date range is not valid")
		return
	}
	if pageStr := q.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil {
			filter.Page = page
		}
	}
	if perPageStr := q.Get("per_page"); perPageStr != "" {
		if perPage, err := strconv.Atoi(perPageStr); err == nil {
			filter.PerPage = perPage
		}
	}
	entries, pagination, err := h.service.ListEntries(r.Context(), scope.CompanyID, filter)
	if err != nil {
		h.respondError(w, r, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": pagination,
	})
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrItemExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientAvailable):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitPrice),
		errors.Is(err, ErrItemInactive), errors.Is(err, ErrInvalidReturnDirection):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseDocument(doc documentRequest) DocumentInfo {
	info := DocumentInfo{
		Number:       doc.Number,
		PartnerRef:   doc.PartnerRef,
		FromLocation: doc.FromLocation,
		ToLocation:   doc.ToLocation,
		Note:         doc.Note,
	}
	if doc.Date != "" {
		if parsed, err := time.Parse("2006-01-02", doc.Date); err == nil {
			info.Date = parsed
		}
	}
	return info
}

func parseOptionalUUID(value string) (uuid.UUID, bool) {
	if value == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, bool) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		if from, err = time.Parse("2006-01-02", fromStr); err != nil {
			return time.Time{}, time.Time{}, false
		}
	}
	if toStr != "" {
		if to, err = time.Parse("2006-01-02", toStr); err != nil {
			return time.Time{}, time.Time{}, false
		}
		// Include the whole end day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, true
}
