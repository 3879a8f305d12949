package metrics

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// BusinessMetrics tracks the report pipeline: how many analyses ran and
// how long they took, which alerts fired, which urgency tiers came out,
// agent enrichments and export jobs.
type BusinessMetrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	AlertsTotal      *prometheus.CounterVec
	UrgencyTotal     *prometheus.CounterVec
	EnrichmentsTotal *prometheus.CounterVec
	ExportsTotal     *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers the pipeline metrics under the
// given namespace. Call once per process; re-registration panics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	factory := promauto.With(prometheus.DefaultRegisterer)

	return &BusinessMetrics{
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of report analyses by outcome",
			},
			[]string{"status"},
		),
		AnalysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of report analyses",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7 minutes
			},
			[]string{"status"},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Total number of alerts raised during analysis, by kind",
			},
			[]string{"kind"},
		),
		UrgencyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "urgency_levels_total",
				Help:      "Total number of analyzed reports by urgency tier",
			},
			[]string{"level"},
		),
		EnrichmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichments_total",
				Help:      "Total number of agent enrichments by outcome",
			},
			[]string{"status"},
		),
		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of export jobs by format and outcome",
			},
			[]string{"format", "status"},
		),
	}
}

// ObserveDurationWithExemplar records a duration observation and, when the
// context carries a sampled trace, attaches the trace ID as an exemplar so
// dashboards can jump from a latency bucket to a concrete trace.
func (m *BusinessMetrics) ObserveDurationWithExemplar(ctx context.Context, histogram *prometheus.HistogramVec, duration float64, labelValues ...string) {
	observer := histogram.WithLabelValues(labelValues...)

	spanCtx := trace.SpanContextFromContext(ctx)
	if exemplarObserver, ok := observer.(prometheus.ExemplarObserver); ok && spanCtx.HasTraceID() {
		exemplarObserver.ObserveWithExemplar(duration, prometheus.Labels{
			"trace_id": spanCtx.TraceID().String(),
		})
		return
	}

	observer.Observe(duration)
}

// DatabaseMetrics exposes the sql.DB connection pool state.
type DatabaseMetrics struct {
	openConnections  prometheus.Gauge
	inUseConnections prometheus.Gauge
	idleConnections  prometheus.Gauge
	waitCount        prometheus.Gauge
	waitDuration     prometheus.Gauge
	maxOpen          prometheus.Gauge
}

// NewDatabaseMetrics creates and registers the connection pool gauges
// under the given namespace.
func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	factory := promauto.With(prometheus.DefaultRegisterer)

	return &DatabaseMetrics{
		openConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Number of established connections, both in use and idle",
		}),
		inUseConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Number of connections currently in use",
		}),
		idleConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_idle_connections",
			Help:      "Number of idle connections",
		}),
		waitCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_count",
			Help:      "Total number of connections waited for",
		}),
		waitDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_duration_seconds",
			Help:      "Total time blocked waiting for a new connection",
		}),
		maxOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_max_open_connections",
			Help:      "Maximum number of open connections allowed",
		}),
	}
}

// UpdateDBStats refreshes the pool gauges from the live sql.DB stats.
// Callers typically run this on a ticker.
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	if db == nil {
		return
	}

	stats := db.Stats()
	m.openConnections.Set(float64(stats.OpenConnections))
	m.inUseConnections.Set(float64(stats.InUse))
	m.idleConnections.Set(float64(stats.Idle))
	m.waitCount.Set(float64(stats.WaitCount))
	m.waitDuration.Set(stats.WaitDuration.Seconds())
	m.maxOpen.Set(float64(stats.MaxOpenConnections))
}
