package customs

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Handler wires HTTP endpoints for customs declarations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs customs handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers customs routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/declarations", h.handleCreate)
	r.Put("/declarations/{declarationID}", h.handleUpdate)
	r.Get("/declarations/{declarationID}", h.handleGet)
	r.Get("/declarations", h.handleList)
	r.Post("/quote", h.handleQuote)
}

type declarationRequest struct {
	Number            string          `json:"number" validate:"required"`
	SupplierRef       string          `json:"supplier_ref"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	TotalInvoiceValue decimal.Decimal `json:"total_invoice_value"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	FreightCost       decimal.Decimal `json:"freight_cost"`
	InsuranceCost     decimal.Decimal `json:"insurance_cost"`
	OtherCosts        decimal.Decimal `json:"other_costs"`
	CustomsDutyRate   decimal.Decimal `json:"customs_duty_rate"`
	VATRate           decimal.Decimal `json:"vat_rate"`
	TotalQuantity     decimal.Decimal `json:"total_quantity"`
}

type quoteRequest struct {
	TotalInvoiceValue decimal.Decimal `json:"total_invoice_value"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	FreightCost       decimal.Decimal `json:"freight_cost"`
	InsuranceCost     decimal.Decimal `json:"insurance_cost"`
	OtherCosts        decimal.Decimal `json:"other_costs"`
	CustomsDutyRate   decimal.Decimal `json:"customs_duty_rate"`
	VATRate           decimal.Decimal `json:"vat_rate"`
	TotalQuantity     decimal.Decimal `json:"total_quantity"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req declarationRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	decl, err := h.service.Create(r.Context(), scope.CompanyID, req.toInput(), scope.ActorID)
	if err != nil {
		h.respondError(w, "create declaration", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, decl)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	id, ok := h.declarationID(w, r)
	if !ok {
		return
	}
	var req declarationRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	decl, err := h.service.Update(r.Context(), scope.CompanyID, id, req.toInput(), scope.ActorID)
	if err != nil {
		h.respondError(w, "update declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decl)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	id, ok := h.declarationID(w, r)
	if !ok {
		return
	}
	decl, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		h.respondError(w, "get declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decl)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}
	declarations, err := h.service.List(r.Context(), scope.CompanyID, limit)
	if err != nil {
		h.respondError(w, "list declarations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, declarations)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	totals, err := h.service.Quote(DeclarationInput{
		TotalInvoiceValue: req.TotalInvoiceValue,
		ExchangeRate:      req.ExchangeRate,
		FreightCost:       req.FreightCost,
		InsuranceCost:     req.InsuranceCost,
		OtherCosts:        req.OtherCosts,
		CustomsDutyRate:   req.CustomsDutyRate,
		VATRate:           req.VATRate,
		TotalQuantity:     req.TotalQuantity,
	})
	if err != nil {
		h.respondError(w, "quote declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (req declarationRequest) toInput() DeclarationInput {
	return DeclarationInput{
		Number:            req.Number,
		SupplierRef:       req.SupplierRef,
		Currency:          req.Currency,
		TotalInvoiceValue: req.TotalInvoiceValue,
		ExchangeRate:      req.ExchangeRate,
		FreightCost:       req.FreightCost,
		InsuranceCost:     req.InsuranceCost,
		OtherCosts:        req.OtherCosts,
		CustomsDutyRate:   req.CustomsDutyRate,
		VATRate:           req.VATRate,
		TotalQuantity:     req.TotalQuantity,
	}
}

func (h *Handler) declarationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "declarationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "declaration id is not valid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDeclarationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidExchangeRate), errors.Is(err, ErrNegativeAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
