package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/customs"
	"github.com/fieldserve/fieldserve/internal/movement"
	"github.com/fieldserve/fieldserve/internal/observability"
	"github.com/fieldserve/fieldserve/internal/reports"
	"github.com/fieldserve/fieldserve/internal/stock"
	"github.com/fieldserve/fieldserve/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	StockHandler    *stock.Handler
	MovementHandler *movement.Handler
	CustomsHandler  *customs.Handler
	ReportsHandler  *reports.Handler
	JobsHandler     *jobs.Handler
	Pool            *pgxpool.Pool
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with FieldServe defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobsHandler.MountRoutes(jr)
		})
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(ScopeMiddleware(params.Logger))
		api.Route("/stock", func(sr chi.Router) {
			params.StockHandler.MountRoutes(sr)
		})
		api.Route("/movements", func(mr chi.Router) {
			params.MovementHandler.MountRoutes(mr)
		})
		api.Route("/customs", func(cr chi.Router) {
			params.CustomsHandler.MountRoutes(cr)
		})
		api.Route("/reports", func(rr chi.Router) {
			params.ReportsHandler.MountRoutes(rr)
		})
	})

	return r
}
