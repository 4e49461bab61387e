package gateway

import "encoding/json"

// SessionState holds the continuity fields needed to resume. An empty
// SessionID or nil Sequence means the value is absent.
type SessionState struct {
	SessionID string
	Sequence  *int64
}

// Resumable reports whether both continuity fields are present.
func (s SessionState) Resumable() bool {
	return s.SessionID != "" && s.Sequence != nil
}

// Event is the higher-level signal produced by Dispatch.
type Event int

const (
	EventNone Event = iota
	EventReady
	EventResumed
)

// Dispatch applies one inbound frame to the session state. It performs no
// I/O; the caller persists when EventReady is returned.
//
// The sequence number only moves forward: a frame carrying a lower s than
// the one already recorded leaves it unchanged.
func Dispatch(state SessionState, f Frame) (SessionState, Event) {
	next := state
	if f.S != nil && (next.Sequence == nil || *f.S >= *next.Sequence) {
		seq := *f.S
		next.Sequence = &seq
	}
	if f.Op != OpDispatch {
		return next, EventNone
	}

	switch f.T {
	case EventTypeReady:
		var d readyData
		if len(f.D) > 0 && json.Unmarshal(f.D, &d) == nil && d.SessionID != "" {
			next.SessionID = d.SessionID
		}
		return next, EventReady
	case EventTypeResumed:
		return next, EventResumed
	default:
		return next, EventNone
	}
}
