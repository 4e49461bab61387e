// Package gateway maintains one authenticated session on a push-protocol
// gateway and keeps it alive across network failures, server-initiated
// disconnects and restarts.
//
// A Client runs an explicit reconnect state machine:
//
//	Idle -> Connecting -> Handshaking -> Active -> Backoff -> Idle ...
//
// Every attempt opens a fresh WebSocket, waits for hello, starts a
// heartbeat monitor, then either resumes the previous session (when both the
// session id and sequence number are known) or identifies from scratch.
// Every failure is retried with exponential backoff; only cancellation of the
// Run context stops the loop.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Prescott-Data/nexus-presence/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is a named controller state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateActive
	StateBackoff
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateBackoff:
		return "backoff"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Status is a point-in-time snapshot for health reporting.
type Status struct {
	State          string     `json:"state"`
	Resumable      bool       `json:"resumable"`
	Sequence       *int64     `json:"sequence,omitempty"`
	LastAck        *time.Time `json:"last_heartbeat_ack,omitempty"`
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
	Attempts       int64      `json:"attempts"`
	NextBackoff    string     `json:"next_backoff"`
}

// Client manages the gateway session.
type Client struct {
	identity            Identity
	url                 string
	logger              Logger
	metrics             Metrics
	handler             Handler
	store               store.Store
	dialer              *websocket.Dialer
	backoffPolicy       BackoffPolicy
	timeouts            Timeouts
	heartbeatMultiplier float64

	backoff *Backoff
	session *Session

	state    atomic.Int32
	attempts atomic.Int64

	mu             sync.Mutex
	connectedSince time.Time
}

// New creates a Client for identity with optional configurations. The
// session store is read once here.
func New(identity Identity, opts ...Option) *Client {
	// Define default values
	c := &Client{
		identity:            identity,
		url:                 DefaultGatewayURL,
		logger:              &nopLogger{},
		metrics:             &nopMetrics{},
		handler:             nopHandler{},
		dialer:              websocket.DefaultDialer,
		backoffPolicy:       DefaultBackoffPolicy(),
		timeouts:            DefaultTimeouts(),
		heartbeatMultiplier: DefaultHeartbeatTimeoutMultiplier,
	}

	// Apply all the functional options provided by the user
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = store.NewMemory(store.State{})
	}
	c.backoff = NewBackoff(c.backoffPolicy)
	c.session = newSession(c.store)
	return c
}

// Session exposes the live session record.
func (c *Client) Session() *Session {
	return c.session
}

// State returns the current controller state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Status implements the health reporting snapshot.
func (c *Client) Status() Status {
	st := c.session.State()
	out := Status{
		State:       c.State().String(),
		Resumable:   st.Resumable(),
		Sequence:    st.Sequence,
		Attempts:    c.attempts.Load(),
		NextBackoff: c.backoff.Current().String(),
	}
	if ack := c.session.LastAck(); !ack.IsZero() {
		out.LastAck = &ack
	}
	c.mu.Lock()
	if !c.connectedSince.IsZero() {
		since := c.connectedSince
		out.ConnectedSince = &since
	}
	c.mu.Unlock()
	return out
}

// Run is the main entry point. It runs the reconnect loop until ctx is
// cancelled and then returns ctx.Err(). Mid-session failures never end the
// loop; only a missing token is reported as a PermanentError.
func (c *Client) Run(ctx context.Context) error {
	if c.identity.Token == "" {
		return NewPermanentError(errors.New("missing token"))
	}

	for {
		if ctx.Err() != nil {
			return c.terminate(ctx)
		}

		c.setState(StateIdle)
		c.attempts.Add(1)
		err := c.attempt(ctx)
		c.markDisconnected()

		if ctx.Err() != nil {
			return c.terminate(ctx)
		}
		c.classify(ctx, err)

		delay := c.backoff.Next()
		c.metrics.SetBackoff(delay)
		c.setState(StateBackoff)
		c.logger.Info("Reconnecting", "after", delay.String())
		if err := sleep(ctx, delay); err != nil {
			return c.terminate(ctx)
		}
	}
}

// attempt drives one connection from dial to failure.
func (c *Client) attempt(ctx context.Context) error {
	attemptID := uuid.NewString()

	// Connecting
	c.setState(StateConnecting)
	c.logger.Info("Connecting to gateway", "attemptID", attemptID, "url", c.url)
	dialCtx, cancel := context.WithTimeout(ctx, c.timeouts.Connect)
	ws, _, err := c.dialer.DialContext(dialCtx, c.url, http.Header{})
	cancel()
	if err != nil {
		// WebSocket dialing errors are typically recoverable.
		return fmt.Errorf("failed to establish WebSocket connection: %w", err)
	}
	cn := newConn(ws, c.timeouts.Send)
	defer cn.close()
	// Cancellation closes the socket so blocking reads return at once.
	stopClose := context.AfterFunc(ctx, cn.close)
	defer stopClose()

	c.metrics.IncConnections()
	c.metrics.SetConnectionStatus(1)
	c.mu.Lock()
	c.connectedSince = time.Now()
	c.mu.Unlock()

	// Handshaking
	c.setState(StateHandshaking)
	hello, err := cn.readFrame(time.Now().Add(c.timeouts.Receive))
	if err != nil {
		return &HandshakeError{Err: fmt.Errorf("waiting for hello: %w", err)}
	}
	intervalMS, err := parseHello(hello)
	if err != nil {
		return &HandshakeError{Err: err}
	}
	interval := time.Duration(intervalMS) * time.Millisecond
	c.logger.Info("Received hello", "attemptID", attemptID, "heartbeatInterval", interval.String())

	// A fresh connection starts a fresh ack window; an ack time restored
	// from disk would otherwise trip the monitor on its first tick.
	c.session.Ack(time.Now())
	monitor := newHeartbeatMonitor(cn, c.session, interval, c.heartbeatMultiplier, c.logger, c.metrics)
	monitor.start()
	defer func() {
		if !monitor.Stop(c.timeouts.StopGrace) {
			c.logger.Warn("Heartbeat monitor did not stop within grace period", "attemptID", attemptID)
		}
	}()

	if err := c.handshake(ctx, cn, attemptID); err != nil {
		return err
	}
	c.backoff.Reset()
	c.metrics.SetBackoff(0)

	// Active
	c.setState(StateActive)
	return c.receive(ctx, cn, monitor)
}

// handshake sends resume when the session is resumable, identify otherwise.
func (c *Client) handshake(ctx context.Context, cn *conn, attemptID string) error {
	st := c.session.State()
	if st.Resumable() {
		c.logger.Info("Attempting RESUME", "attemptID", attemptID, "sessionID", st.SessionID, "seq", *st.Sequence)
		if err := cn.send(resumePayload(c.identity.Token, st.SessionID, *st.Sequence)); err != nil {
			return fmt.Errorf("send resume: %w", err)
		}
		c.metrics.IncResumes()
		return nil
	}

	c.logger.Info("Sending IDENTIFY (new session)", "attemptID", attemptID, "device", c.identity.Properties.Device)
	if err := cn.send(identifyPayload(c.identity)); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	c.metrics.IncIdentifies()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cn.done():
		return ErrConnectionClosed
	case <-time.After(c.timeouts.Settle):
	}
	if err := cn.send(presencePayload(c.identity.Presence)); err != nil {
		return fmt.Errorf("send presence update: %w", err)
	}
	c.logger.Info("Presence updated", "status", c.identity.Presence.Status)
	return nil
}

// receive pumps frames until the connection fails or ctx is cancelled.
// gorilla connections cannot be read again after a deadline error, so a
// reader goroutine blocks on the socket and the idle timeout lives here.
func (c *Client) receive(ctx context.Context, cn *conn, monitor *heartbeatMonitor) error {
	frames := make(chan Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := cn.readFrame(time.Time{})
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-cn.done():
				return
			}
		}
	}()

	idle := time.NewTicker(c.timeouts.Receive)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-monitor.Done():
			if err := monitor.Err(); err != nil {
				return err
			}
			return ErrConnectionClosed

		case err := <-readErr:
			if hbErr := monitor.Err(); hbErr != nil {
				return fmt.Errorf("%w: %v", hbErr, err)
			}
			return err

		case f := <-frames:
			idle.Reset(c.timeouts.Receive)
			if err := c.handleFrame(ctx, cn, f); err != nil {
				return err
			}

		case <-idle.C:
			// Idling is expected; liveness is the heartbeat monitor's job.
			c.logger.Debug("No frames received", "within", c.timeouts.Receive.String())
		}
	}
}

// handleFrame routes one inbound frame. A non-nil return ends the attempt.
func (c *Client) handleFrame(ctx context.Context, cn *conn, f Frame) error {
	switch f.Op {
	case OpDispatch:
		ev := c.session.Apply(f)
		if seq := c.session.Sequence(); seq != nil {
			c.metrics.SetSequence(float64(*seq))
		}
		switch ev {
		case EventReady:
			id := c.session.State().SessionID
			c.logger.Info("Session READY", "sessionID", id)
			c.persist(ctx)
			c.handler.OnReady(id, false)
		case EventResumed:
			c.logger.Info("Session RESUMED")
			c.handler.OnReady(c.session.State().SessionID, true)
		}
		return nil

	case OpReconnect:
		return ErrReconnectRequested

	case OpInvalidSession:
		resumable := parseInvalidSession(f)
		if !resumable {
			c.logger.Warn("Non-resumable invalid session; resetting state")
			c.resetSession(ctx)
		}
		return &InvalidSessionError{Resumable: resumable}

	case OpHeartbeatAck:
		c.session.Ack(time.Now())
		c.metrics.IncHeartbeatAcks()
		c.persist(ctx)
		return nil

	case OpHeartbeat:
		// The gateway may ask for an immediate heartbeat.
		if err := cn.send(heartbeatPayload(c.session.Sequence())); err != nil {
			return fmt.Errorf("send requested heartbeat: %w", err)
		}
		c.metrics.IncHeartbeats()
		return nil

	default:
		c.logger.Debug("Received op", "op", f.Op.String())
		return nil
	}
}

// classify decides what a failed attempt means for the session. Only
// session-invalidating close codes discard the continuity fields here; all
// other failures keep them so the next attempt resumes.
func (c *Client) classify(ctx context.Context, err error) {
	if err == nil {
		err = ErrConnectionClosed
	}
	c.metrics.IncDisconnects()
	c.handler.OnDisconnect(err)

	if code, ok := closeCode(err); ok {
		if invalidatesSession(err) {
			c.logger.Error(err, "Fatal gateway close code; resetting session", "code", code)
			c.resetSession(ctx)
		} else {
			c.logger.Warn("Gateway closed connection", "code", code)
		}
	}
	c.logger.Error(err, "Gateway error; will reconnect after backoff")
}

// terminate runs the clean shutdown path.
func (c *Client) terminate(ctx context.Context) error {
	c.setState(StateTerminal)
	c.metrics.SetConnectionStatus(0)
	// ctx is already cancelled; the final write must not inherit it.
	if err := c.session.Persist(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("Failed to persist state on shutdown", "error", err)
	}
	c.logger.Info("Context cancelled; shutting down gateway client")
	return ctx.Err()
}

func (c *Client) resetSession(ctx context.Context) {
	c.session.Reset()
	c.metrics.IncSessionResets()
	c.persist(ctx)
}

// persist writes the session snapshot. Failures are logged, never fatal.
func (c *Client) persist(ctx context.Context) {
	if err := c.session.Persist(ctx); err != nil {
		c.logger.Warn("Failed to persist state", "error", err)
	}
}

func (c *Client) markDisconnected() {
	c.metrics.SetConnectionStatus(0)
	c.mu.Lock()
	c.connectedSince = time.Time{}
	c.mu.Unlock()
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
