package controller

import (
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/ordercore/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	ServiceName  string
	Health       map[string]Pinger
	Transactions transaction.Repository
	Exporter     TaskExporter
	Aborted      AbortedReader
	Metrics      *observability.Metrics
	Gatherer     prometheus.Gatherer
	RateLimit    int
}

// NewRouter builds the worker's ops surface: health, metrics and task
// inspection.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing(deps.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	health := NewHealthController(deps.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	tasks := NewTaskController(deps.Transactions, deps.Exporter, deps.Aborted)
	r.Group(func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.RateLimit))
		}
		r.Get("/transactions/{kind}/{id}", tasks.GetTransaction)
		r.Post("/tasks/export", tasks.Export)
		r.Get("/tasks/aborted", tasks.Aborted)
	})

	return r
}
