package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics implements the gateway.Metrics interface using Prometheus.
type PromMetrics struct {
	connections       prometheus.Counter
	disconnects       prometheus.Counter
	identifies        prometheus.Counter
	resumes           prometheus.Counter
	sessionResets     prometheus.Counter
	heartbeats        prometheus.Counter
	heartbeatAcks     prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	connStatus        prometheus.Gauge
	sequence          prometheus.Gauge
	backoff           prometheus.Gauge
}

// NewMetrics creates and registers standard gateway metrics.
// If registry is nil, it uses the global default registry.
func NewMetrics(registry prometheus.Registerer, labels map[string]string) *PromMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "presence",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "presence",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &PromMetrics{
		connections:       counter("connections_total", "Total number of gateway WebSocket connections established."),
		disconnects:       counter("disconnects_total", "Total number of failed or dropped connection attempts."),
		identifies:        counter("identifies_total", "Total number of identify handshakes sent."),
		resumes:           counter("resumes_total", "Total number of resume handshakes sent."),
		sessionResets:     counter("session_resets_total", "Total number of times session continuity was discarded."),
		heartbeats:        counter("heartbeats_sent_total", "Total number of heartbeats sent."),
		heartbeatAcks:     counter("heartbeat_acks_total", "Total number of heartbeat acknowledgments received."),
		heartbeatTimeouts: counter("heartbeat_timeouts_total", "Total number of connections closed for missing heartbeat acks."),
		connStatus:        gauge("connection_status", "Current status of the connection (1 = connected, 0 = disconnected)."),
		sequence:          gauge("sequence", "Last dispatch sequence number received."),
		backoff:           gauge("backoff_seconds", "Delay before the next reconnect attempt."),
	}

	registry.MustRegister(
		m.connections,
		m.disconnects,
		m.identifies,
		m.resumes,
		m.sessionResets,
		m.heartbeats,
		m.heartbeatAcks,
		m.heartbeatTimeouts,
		m.connStatus,
		m.sequence,
		m.backoff,
	)

	return m
}

func (m *PromMetrics) IncConnections() {
	m.connections.Inc()
}

func (m *PromMetrics) IncDisconnects() {
	m.disconnects.Inc()
}

func (m *PromMetrics) IncIdentifies() {
	m.identifies.Inc()
}

func (m *PromMetrics) IncResumes() {
	m.resumes.Inc()
}

func (m *PromMetrics) IncSessionResets() {
	m.sessionResets.Inc()
}

func (m *PromMetrics) IncHeartbeats() {
	m.heartbeats.Inc()
}

func (m *PromMetrics) IncHeartbeatAcks() {
	m.heartbeatAcks.Inc()
}

func (m *PromMetrics) IncHeartbeatTimeouts() {
	m.heartbeatTimeouts.Inc()
}

func (m *PromMetrics) SetConnectionStatus(status float64) {
	m.connStatus.Set(status)
}

func (m *PromMetrics) SetSequence(seq float64) {
	m.sequence.Set(seq)
}

func (m *PromMetrics) SetBackoff(d time.Duration) {
	m.backoff.Set(d.Seconds())
}
