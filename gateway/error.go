package gateway

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// sessionResetCloseCodes are gateway close codes after which the session
// can never be resumed: authentication failed, invalid shard, sharding
// required, invalid API version, invalid intents, disallowed intents.
var sessionResetCloseCodes = map[int]bool{
	4004: true,
	4010: true,
	4011: true,
	4012: true,
	4013: true,
	4014: true,
}

var (
	// ErrReconnectRequested is returned when the gateway sends op 7.
	ErrReconnectRequested = errors.New("gateway requested reconnect")
	// ErrHeartbeatTimeout is returned when no heartbeat ack arrived in time.
	ErrHeartbeatTimeout = errors.New("heartbeat ack timeout")
	// ErrConnectionClosed is returned when the transport closed without a
	// close frame.
	ErrConnectionClosed = errors.New("connection closed")
)

// HandshakeError means the hello exchange failed for this attempt.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// InvalidSessionError is returned when the gateway sends op 9.
type InvalidSessionError struct {
	Resumable bool
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("invalid session (resumable=%t)", e.Resumable)
}

// PermanentError represents an error that should not be retried.
// Only configuration problems detected before the first connection attempt
// are permanent; everything that happens mid-session is retried.
type PermanentError struct {
	Err error
}

// NewPermanentError creates a new PermanentError.
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

// Unwrap provides compatibility for Go 1.13+ error chains.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// closeCode extracts the WebSocket close code carried by err, if any.
func closeCode(err error) (int, bool) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, true
	}
	return 0, false
}

// invalidatesSession reports whether err carries a close code after which
// the session must be discarded.
func invalidatesSession(err error) bool {
	code, ok := closeCode(err)
	return ok && sessionResetCloseCodes[code]
}
