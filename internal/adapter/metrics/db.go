package metrics

import "github.com/prometheus/client_golang/prometheus"

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
	ErrorsTotal   *prometheus.CounterVec
}

func NewDBMetrics(reg prometheus.Registerer) *DBMetrics {
	m := &DBMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries by statement type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Failed database queries by statement type.",
		}, []string{"query"}),
	}

	reg.MustRegister(m.QueryDuration, m.ErrorsTotal)
	return m
}
