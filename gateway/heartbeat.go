package gateway

import (
	"fmt"
	"time"
)

// heartbeatMonitor sends periodic heartbeats on one connection and closes
// the connection when acknowledgments stop arriving. It never reconnects;
// its only signal to the controller is the closed connection and the error
// exposed through Done/Err.
type heartbeatMonitor struct {
	conn       *conn
	session    *Session
	interval   time.Duration
	multiplier float64
	logger     Logger
	metrics    Metrics
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
	err  error
}

func newHeartbeatMonitor(c *conn, session *Session, interval time.Duration, multiplier float64, logger Logger, metrics Metrics) *heartbeatMonitor {
	return &heartbeatMonitor{
		conn:       c,
		session:    session,
		interval:   interval,
		multiplier: multiplier,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// start launches the monitor goroutine.
func (h *heartbeatMonitor) start() {
	go h.run()
}

func (h *heartbeatMonitor) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	deadline := time.Duration(float64(h.interval) * h.multiplier)
	for {
		select {
		case <-h.stop:
			return
		case <-h.conn.done():
			h.err = ErrConnectionClosed
			return
		case <-ticker.C:
		}

		// stop may have raced with the tick.
		select {
		case <-h.stop:
			return
		default:
		}

		since := h.now().Sub(h.session.LastAck())
		if since > deadline {
			h.logger.Warn("Missed heartbeat ACK; closing connection to force reconnect",
				"since_last_ack", since.String(), "limit", deadline.String())
			h.metrics.IncHeartbeatTimeouts()
			h.err = ErrHeartbeatTimeout
			h.conn.close()
			return
		}

		if err := h.conn.send(heartbeatPayload(h.session.Sequence())); err != nil {
			h.logger.Warn("Failed to send heartbeat; exiting heartbeat loop", "error", err)
			h.err = fmt.Errorf("send heartbeat: %w", err)
			return
		}
		h.metrics.IncHeartbeats()
		h.logger.Debug("Heartbeat sent")
	}
}

// Done is closed when the monitor has exited.
func (h *heartbeatMonitor) Done() <-chan struct{} {
	return h.done
}

// Err returns why the monitor exited. It is nil after a requested stop and
// only valid once Done is closed.
func (h *heartbeatMonitor) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Stop signals the monitor and waits up to grace for it to exit. It
// reports whether the monitor exited in time.
func (h *heartbeatMonitor) Stop(grace time.Duration) bool {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}
