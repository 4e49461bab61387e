// Package store persists gateway session continuity data (session id, last
// sequence number and last heartbeat-ack time) so a restarted process can
// resume instead of identifying from scratch.
//
// Durability is best effort. A missing or unreadable state always loads as
// an empty State; the gateway itself decides whether a resume is valid.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// State is the persisted session document. A nil field means the value is
// absent and is written as JSON null.
type State struct {
	SessionID        *string  `json:"session_id"`
	Sequence         *int64   `json:"sequence"`
	LastAckTimestamp *float64 `json:"last_ack_timestamp"`
}

// LastAck converts LastAckTimestamp (unix seconds) to a time.Time.
func (s State) LastAck() (time.Time, bool) {
	if s.LastAckTimestamp == nil {
		return time.Time{}, false
	}
	sec := *s.LastAckTimestamp
	return time.Unix(0, int64(sec*float64(time.Second))), true
}

// Timestamp converts t to the unix-seconds representation used on disk.
func Timestamp(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	v := float64(t.UnixNano()) / float64(time.Second)
	return &v
}

// Store is a small key-value document store for State.
type Store interface {
	// Get returns the current state, or the zero State when nothing has
	// been loaded.
	Get() State
	// Update applies fn to a copy of the current state and durably writes
	// the full result. The in-memory state is updated even if the write
	// fails.
	Update(ctx context.Context, fn func(*State)) error
	Close() error
}

// clone copies s so callers never share pointers with the store.
func clone(s State) State {
	var out State
	if s.SessionID != nil {
		v := *s.SessionID
		out.SessionID = &v
	}
	if s.Sequence != nil {
		v := *s.Sequence
		out.Sequence = &v
	}
	if s.LastAckTimestamp != nil {
		v := *s.LastAckTimestamp
		out.LastAckTimestamp = &v
	}
	return out
}

// decode parses a persisted document. Any error yields an empty State.
func decode(data []byte) State {
	var s State
	if len(data) == 0 {
		return State{}
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}
	}
	return s
}
