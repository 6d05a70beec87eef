package metrics

import "github.com/prometheus/client_golang/prometheus"

// BroadcastMetrics tracks notification sessions and publishes. A nil
// *BroadcastMetrics is valid and records nothing.
type BroadcastMetrics struct {
	ActiveSessions   prometheus.Gauge
	SessionsTotal    *prometheus.CounterVec
	FramesRelayed    prometheus.Counter
	HeartbeatsSent   prometheus.Counter
	PublishesTotal   *prometheus.CounterVec
	PublishDuration  prometheus.Histogram
	RejectedSessions prometheus.Counter
}

func NewBroadcastMetrics(reg prometheus.Registerer) *BroadcastMetrics {
	m := &BroadcastMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "active_sessions",
			Help:      "Number of notification sessions currently relaying.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "sessions_total",
			Help:      "Notification sessions by terminal state.",
		}, []string{"state"}),
		FramesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "frames_relayed_total",
			Help:      "Event frames written to clients.",
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeat frames written to clients.",
		}),
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "publish_total",
			Help:      "Event publishes by outcome (published, skipped, failed).",
		}, []string{"outcome"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "publish_duration_seconds",
			Help:      "Duration of event publishes.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		}),
		RejectedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "rejected_sessions_total",
			Help:      "Connections rejected because the session limit was reached.",
		}),
	}

	reg.MustRegister(m.ActiveSessions, m.SessionsTotal, m.FramesRelayed, m.HeartbeatsSent,
		m.PublishesTotal, m.PublishDuration, m.RejectedSessions)
	return m
}

func (m *BroadcastMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded records a session leaving the relaying state. Degraded sessions never started relaying.
func (m *BroadcastMetrics) SessionEnded(state string, wasRelaying bool) {
	if m == nil {
		return
	}
	if wasRelaying {
		m.ActiveSessions.Dec()
	}
	m.SessionsTotal.WithLabelValues(state).Inc()
}

func (m *BroadcastMetrics) FrameRelayed() {
	if m == nil {
		return
	}
	m.FramesRelayed.Inc()
}

func (m *BroadcastMetrics) HeartbeatSent() {
	if m == nil {
		return
	}
	m.HeartbeatsSent.Inc()
}

func (m *BroadcastMetrics) Published(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.PublishesTotal.WithLabelValues(outcome).Inc()
	m.PublishDuration.Observe(seconds)
}

func (m *BroadcastMetrics) SessionRejected() {
	if m == nil {
		return
	}
	m.RejectedSessions.Inc()
}
