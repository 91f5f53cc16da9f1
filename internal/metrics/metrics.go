// Package metrics exposes broker counters and gauges to Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	peers     prometheus.Gauge
	sessions  prometheus.Gauge
	listeners prometheus.Gauge

	frames      prometheus.Counter
	messages    *prometheus.CounterVec
	disconnects *prometheus.CounterVec
	reaped      prometheus.Counter
	logins      *prometheus.CounterVec
	dropped     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tocata_peers_connected", Help: "Authenticated peers currently registered.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tocata_sessions_active", Help: "Sessions not yet reaped.",
		}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tocata_listeners", Help: "Listener connections across all sessions.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tocata_frames_relayed_total", Help: "Binary frames delivered to listeners.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tocata_messages_relayed_total", Help: "Structured relay messages by delivery mode.",
		}, []string{"mode"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tocata_disconnects_total", Help: "Connection teardowns by reason.",
		}, []string{"reason"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tocata_sessions_reaped_total", Help: "Sessions evicted for inactivity.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tocata_logins_total", Help: "Login attempts by resulting status.",
		}, []string{"status"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tocata_backpressure_drops_total", Help: "Outbound frames dropped on a full queue.",
		}),
	}
	m.registry.MustRegister(
		m.peers, m.sessions, m.listeners,
		m.frames, m.messages, m.disconnects, m.reaped, m.logins, m.dropped,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) SetListeners(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}

func (m *Metrics) FramesRelayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.frames.Add(float64(n))
}

// MessageRelayed counts one structured message; mode is broadcast, unicast or dropped.
func (m *Metrics) MessageRelayed(mode string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(mode).Inc()
}

func (m *Metrics) Disconnected(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionsReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

func (m *Metrics) Login(status string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(status).Inc()
}

func (m *Metrics) BackpressureDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
