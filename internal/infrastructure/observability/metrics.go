package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Transaction metrics
	TransactionsTotal *prometheus.CounterVec
	ExpiredTotal      prometheus.Counter
	ConfirmTotal      *prometheus.CounterVec

	// Action metrics
	AuthorizeActionsTotal *prometheus.CounterVec
	CompensationsTotal    *prometheus.CounterVec
	BookkeepingFailures   *prometheus.CounterVec

	// Task metrics
	TasksExportedTotal  *prometheus.CounterVec
	TasksExecutedTotal  *prometheus.CounterVec
	TasksAbortedTotal   *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	ExportLeasesRevoked prometheus.Counter
	StuckTasksReleased  *prometheus.CounterVec

	// Ops endpoint metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transaction state changes by kind and resulting status",
			},
			[]string{"kind", "status"},
		),
		ExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_expired_total",
				Help:      "Transactions moved to Expired by the sweeper",
			},
		),
		ConfirmTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "confirm_total",
				Help:      "Confirm attempts by outcome",
			},
			[]string{"kind", "result"},
		),
		AuthorizeActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorize_actions_total",
				Help:      "Authorize actions by object type and final status",
			},
			[]string{"object_type", "status"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Compensations by kind and outcome",
			},
			[]string{"kind", "result"},
		),
		BookkeepingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookkeeping_failures_total",
				Help:      "Swallowed failures to record an action outcome",
			},
			[]string{"operation"},
		),
		TasksExportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_exported_total",
				Help:      "Tasks emitted from terminal transactions",
			},
			[]string{"name", "created"},
		),
		TasksExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_executed_total",
				Help:      "Task attempts by name and outcome",
			},
			[]string{"name", "status"},
		),
		TasksAbortedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_aborted_total",
				Help:      "Tasks that ran out of tries",
			},
			[]string{"name"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task handler duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"name"},
		),
		ExportLeasesRevoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_leases_revoked_total",
				Help:      "Exporting transactions reset to Unexported after the lease expired",
			},
		),
		StuckTasksReleased: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stuck_tasks_released_total",
				Help:      "Running tasks released after their worker stopped reporting",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Ops endpoint requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Ops endpoint latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.TransactionsTotal,
		m.ExpiredTotal,
		m.ConfirmTotal,
		m.AuthorizeActionsTotal,
		m.CompensationsTotal,
		m.BookkeepingFailures,
		m.TasksExportedTotal,
		m.TasksExecutedTotal,
		m.TasksAbortedTotal,
		m.TaskDuration,
		m.ExportLeasesRevoked,
		m.StuckTasksReleased,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
	)

	return m
}
