package host

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/hostfuncs"
)

// Load results recorded by Metrics.Loads.
const (
	LoadSuccess = "success"
	LoadFailure = "failure"
)

// Metrics are the executor's prometheus collectors. Use Register to expose
// them on a registry.
type Metrics struct {
	Commands *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Events   *prometheus.CounterVec
	Loads    *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_command_invocations_total",
				Help: "Total number of module command invocations",
			},
			[]string{"command", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modbridge_command_duration_seconds",
				Help:    "Module command invocation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_event_deliveries_total",
				Help: "Total number of keyspace event deliveries to module handlers",
			},
			[]string{"event"},
		),
		Loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_module_loads_total",
				Help: "Total number of module load attempts",
			},
			[]string{"result"},
		),
	}
}

// Register registers every collector with reg.
// Panics if registration fails (following prometheus convention).
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Commands, m.Duration, m.Events, m.Loads)
}

// CommandMiddleware records every invocation's status and duration.
func (m *Metrics) CommandMiddleware() hostfuncs.CommandMiddleware {
	return func(next hostfuncs.Invoker) hostfuncs.Invoker {
		return func(ctx context.Context, inv *hostfuncs.Invocation) entities.Status {
			start := time.Now()
			status := next(ctx, inv)
			m.Commands.WithLabelValues(inv.Entry.Name, status.String()).Inc()
			m.Duration.WithLabelValues(inv.Entry.Name).Observe(time.Since(start).Seconds())
			return status
		}
	}
}

func (m *Metrics) recordEvents(event string, delivered int) {
	if delivered > 0 {
		m.Events.WithLabelValues(event).Add(float64(delivered))
	}
}

func (m *Metrics) recordLoad(err error) {
	result := LoadSuccess
	if err != nil {
		result = LoadFailure
	}
	m.Loads.WithLabelValues(result).Inc()
}
