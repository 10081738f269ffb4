package movement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/observability"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Handler wires HTTP endpoints for job material movements.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs movement handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), metrics: metrics}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reservations", h.handleReserve)
	r.Post("/{movementID}/issue", h.handleIssue)
	r.Post("/{movementID}/return", h.handleReturn)
	r.Post("/{movementID}/use", h.handleMarkUsed)
	r.Get("/{movementID}", h.handleGet)
	r.Get("/", h.handleList)
}

type reserveRequest struct {
	JobRef       string   `json:"job_ref" validate:"required,uuid"`
	ItemID       int64    `json:"item_id" validate:"required"`
	Quantity     float64  `json:"quantity" validate:"gt=0"`
	SellingPrice *float64 `json:"selling_price"`
}

type issueMovementRequest struct {
	WorkerID int64 `json:"worker_id"`
}

type returnMovementRequest struct {
	Quantity float64 `json:"quantity" validate:"gte=0"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var req reserveRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	jobRef, err := uuid.Parse(req.JobRef)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "job_ref is not a valid uuid")
		return
	}
	mv, err := h.service.Reserve(r.Context(), scope.CompanyID, ReserveInput{
		JobRef:       jobRef,
		ItemID:       req.ItemID,
		Quantity:     req.Quantity,
		SellingPrice: req.SellingPrice,
		ActorID:      scope.ActorID,
	})
	if err != nil {
		h.respondError(w, r, "reserve material", err)
		return
	}
	h.metrics.CountMovement("RESERVE")
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	movementID, ok := h.movementID(w, r)
	if !ok {
		return
	}
	var req issueMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	workerID := req.WorkerID
	if workerID == 0 {
		workerID = scope.ActorID
	}
	mv, err := h.service.Issue(r.Context(), scope.CompanyID, movementID, workerID)
	if err != nil {
		h.respondError(w, r, "issue reservation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	movementID, ok := h.movementID(w, r)
	if !ok {
		return
	}
	var req returnMovementRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.service.ReturnUnused(r.Context(), scope.CompanyID, movementID, req.Quantity)
	if err != nil {
		h.respondError(w, r, "return material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) handleMarkUsed(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	movementID, ok := h.movementID(w, r)
	if !ok {
		return
	}
	mv, err := h.service.MarkUsed(r.Context(), scope.CompanyID, movementID)
	if err != nil {
		h.respondError(w, r, "mark material used", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	movementID, ok := h.movementID(w, r)
	if !ok {
		return
	}
	mv, err := h.service.GetMovement(r.Context(), scope.CompanyID, movementID)
	if err != nil {
		h.respondError(w, r, "get movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	q := r.URL.Query()
	filter := Filter{Status: Status(q.Get("status"))}
	if jobStr := q.Get("job_ref"); jobStr != "" {
		jobRef, err := uuid.Parse(jobStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "job_ref is not a valid uuid")
			return
		}
		filter.JobRef = jobRef
	}
	if itemStr := q.Get("item_id"); itemStr != "" {
		itemID, err := strconv.ParseInt(itemStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id is not valid")
			return
		}
		filter.ItemID = itemID
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	movements, err := h.service.ListMovements(r.Context(), scope.CompanyID, filter)
	if err != nil {
		h.respondError(w, r, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) movementID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "movementID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "movement id is not valid")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrMovementNotFound), errors.Is(err, stock.ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, stock.ErrInsufficientAvailable), errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrReturnExceedsQuantity),
		errors.Is(err, stock.ErrItemInactive):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
