package observability

import (
	"context"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records resolution and finalize activity.
type Metrics struct {
	resolutions     *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	finalizations   *prometheus.CounterVec
	cleanupFailures prometheus.Counter
}

// NewMetrics creates the collector and registers it on reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiln",
			Name:      "node_resolutions_total",
			Help:      "Node computations by result. Memoized lookups are not counted.",
		}, []string{"node", "result"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kiln",
			Name:      "node_resolve_duration_seconds",
			Help:      "Wall time of node computations, glazes included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiln",
			Name:      "finalizations_total",
			Help:      "Kiln finalizations by outcome.",
		}, []string{"outcome"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiln",
			Name:      "cleanup_failures_total",
			Help:      "Cleanup actions that failed during finalize.",
		}),
	}
	reg.MustRegister(m.resolutions, m.resolveDuration, m.finalizations, m.cleanupFailures)
	return m
}

// Hooks returns the lifecycle hooks feeding the collector.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeResolved: func(_ context.Context, e *domain.FiringEvent) {
			m.resolutions.WithLabelValues(e.Node, "success").Inc()
			m.resolveDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
		},
		OnNodeFailed: func(_ context.Context, e *domain.FiringEvent) {
			m.resolutions.WithLabelValues(e.Node, "failure").Inc()
			m.resolveDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
		},
		OnFinalize: func(_ context.Context, e *domain.FinalizeEvent) {
			m.finalizations.WithLabelValues(string(e.Outcome)).Inc()
			if cleanupErr, ok := e.CleanupErr.(*domain.CleanupError); ok {
				m.cleanupFailures.Add(float64(len(cleanupErr.Failures)))
			}
		},
	}
}
