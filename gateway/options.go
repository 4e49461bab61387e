package gateway

import (
	"time"

	"github.com/Prescott-Data/nexus-presence/internal/store"
	"github.com/gorilla/websocket"
)

// --- Interfaces ---

// Logger is an interface that allows for plugging in custom structured loggers.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// Metrics is an interface that allows for plugging in custom metrics collectors.
type Metrics interface {
	IncConnections()
	IncDisconnects()
	IncIdentifies()
	IncResumes()
	IncSessionResets()
	IncHeartbeats()
	IncHeartbeatAcks()
	IncHeartbeatTimeouts()
	SetConnectionStatus(status float64)
	SetSequence(seq float64)
	SetBackoff(d time.Duration)
}

// --- No-op Implementations ---

type nopLogger struct{}

func (l *nopLogger) Debug(msg string, keysAndValues ...interface{})           {}
func (l *nopLogger) Info(msg string, keysAndValues ...interface{})            {}
func (l *nopLogger) Warn(msg string, keysAndValues ...interface{})            {}
func (l *nopLogger) Error(err error, msg string, keysAndValues ...interface{}) {}

type nopMetrics struct{}

func (m *nopMetrics) IncConnections()                    {}
func (m *nopMetrics) IncDisconnects()                    {}
func (m *nopMetrics) IncIdentifies()                     {}
func (m *nopMetrics) IncResumes()                        {}
func (m *nopMetrics) IncSessionResets()                  {}
func (m *nopMetrics) IncHeartbeats()                     {}
func (m *nopMetrics) IncHeartbeatAcks()                  {}
func (m *nopMetrics) IncHeartbeatTimeouts()              {}
func (m *nopMetrics) SetConnectionStatus(status float64) {}
func (m *nopMetrics) SetSequence(seq float64)            {}
func (m *nopMetrics) SetBackoff(d time.Duration)         {}

// --- Configuration ---

// DefaultGatewayURL is the public gateway endpoint, API v9 with JSON encoding.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=9&encoding=json"

// Timeouts bounds each blocking transport operation.
type Timeouts struct {
	// Connect bounds the dial and WebSocket upgrade.
	Connect time.Duration
	// Receive bounds the wait for hello; in the active loop it is the idle
	// interval after which the loop re-checks for shutdown.
	Receive time.Duration
	// Send bounds every outbound frame.
	Send time.Duration
	// Settle is the pause between identify and the presence update.
	Settle time.Duration
	// StopGrace bounds how long a failing attempt waits for the heartbeat
	// monitor to exit.
	StopGrace time.Duration
}

// DefaultTimeouts returns the production defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:   10 * time.Second,
		Receive:   15 * time.Second,
		Send:      5 * time.Second,
		Settle:    1 * time.Second,
		StopGrace: 2 * time.Second,
	}
}

// DefaultHeartbeatTimeoutMultiplier is how many heartbeat intervals may pass
// without an acknowledgment before the connection is considered dead.
const DefaultHeartbeatTimeoutMultiplier = 2.0

// MinHeartbeatTimeoutMultiplier is the smallest accepted tolerance. Below
// one interval the monitor would close healthy connections.
const MinHeartbeatTimeoutMultiplier = 1.0

// Option is a function that configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger for the Client.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets a custom metrics collector for the Client.
func WithMetrics(metrics Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithStore sets where session continuity data is persisted. Without it the
// session lives in memory only.
func WithStore(st store.Store) Option {
	return func(c *Client) {
		c.store = st
	}
}

// WithGatewayURL overrides DefaultGatewayURL.
func WithGatewayURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// WithBackoffPolicy sets the reconnection policy for the Client.
func WithBackoffPolicy(policy BackoffPolicy) Option {
	return func(c *Client) {
		c.backoffPolicy = policy
	}
}

// WithTimeouts sets the transport timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Connect > 0 {
			c.timeouts.Connect = t.Connect
		}
		if t.Receive > 0 {
			c.timeouts.Receive = t.Receive
		}
		if t.Send > 0 {
			c.timeouts.Send = t.Send
		}
		if t.Settle > 0 {
			c.timeouts.Settle = t.Settle
		}
		if t.StopGrace > 0 {
			c.timeouts.StopGrace = t.StopGrace
		}
	}
}

// WithHeartbeatTimeoutMultiplier sets the missed-ack tolerance. Values
// below MinHeartbeatTimeoutMultiplier are ignored.
func WithHeartbeatTimeoutMultiplier(m float64) Option {
	return func(c *Client) {
		if m >= MinHeartbeatTimeoutMultiplier {
			c.heartbeatMultiplier = m
		}
	}
}

// WithDialer sets a custom websocket.Dialer for the Client.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// WithHandler registers callbacks for session events.
func WithHandler(h Handler) Option {
	return func(c *Client) {
		c.handler = h
	}
}
