package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Handler wires the report endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.handleGetReport)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	rng, ok := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date range is not valid")
		return
	}
	report, err := h.service.GetReport(r.Context(), scope.CompanyID, rng)
	if err != nil {
		h.logger.Error("inventory report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseRange(fromStr, toStr string) (DateRange, bool) {
	var rng DateRange
	var err error
	if fromStr != "" {
		if rng.From, err = time.Parse("2006-01-02", fromStr); err != nil {
			return DateRange{}, false
		}
	}
	if toStr != "" {
		if rng.To, err = time.Parse("2006-01-02", toStr); err != nil {
			return DateRange{}, false
		}
		rng.To = rng.To.Add(24*time.Hour - time.Nanosecond)
	}
	return rng, true
}
