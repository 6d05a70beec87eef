package metrics

import "github.com/prometheus/client_golang/prometheus"

// RedisMetrics tracks commands issued through the shared Redis client.
type RedisMetrics struct {
	OpsTotal           *prometheus.CounterVec
	OpDuration         *prometheus.HistogramVec
	ConnectionErrors   prometheus.Counter
	BreakerState       prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec
}

func NewRedisMetrics(reg prometheus.Registerer) *RedisMetrics {
	m := &RedisMetrics{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Redis commands by name and status.",
		}, []string{"operation", "status"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis commands.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"operation"}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "connection_errors_total",
			Help:      "Failed attempts to dial Redis.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "publish_breaker_state",
			Help:      "Publish circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "publish_breaker_transitions_total",
			Help:      "Publish circuit breaker state changes by target state.",
		}, []string{"to"}),
	}

	reg.MustRegister(m.OpsTotal, m.OpDuration, m.ConnectionErrors, m.BreakerState, m.BreakerTransitions)
	return m
}
