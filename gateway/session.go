package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/Prescott-Data/nexus-presence/internal/store"
)

// Session is the mutable session record owned by a Client. The receive loop
// and the heartbeat monitor share it by pointer; all access goes through the
// mutex so persistence always writes a consistent snapshot.
type Session struct {
	mu      sync.Mutex
	state   SessionState
	lastAck time.Time

	store store.Store
}

// newSession seeds a Session from the store. A session id without a
// sequence (or the reverse) is discarded: the pair is resumable together or
// not at all.
func newSession(st store.Store) *Session {
	s := &Session{store: st}
	snap := st.Get()
	if snap.SessionID != nil && *snap.SessionID != "" && snap.Sequence != nil {
		seq := *snap.Sequence
		s.state = SessionState{SessionID: *snap.SessionID, Sequence: &seq}
	}
	if t, ok := snap.LastAck(); ok {
		s.lastAck = t
	}
	return s
}

// State returns a copy of the continuity fields.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

func (s *Session) copyState() SessionState {
	out := SessionState{SessionID: s.state.SessionID}
	if s.state.Sequence != nil {
		seq := *s.state.Sequence
		out.Sequence = &seq
	}
	return out
}

// Sequence returns the last server-supplied sequence number, if any.
func (s *Session) Sequence() *int64 {
	return s.State().Sequence
}

// LastAck returns the time of the most recent heartbeat acknowledgment.
func (s *Session) LastAck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAck
}

// Apply runs Dispatch against the current state and stores the result.
func (s *Session) Apply(f Frame) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ev := Dispatch(s.state, f)
	s.state = next
	return ev
}

// Ack records a heartbeat acknowledgment. The timestamp never moves
// backwards.
func (s *Session) Ack(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.lastAck) {
		s.lastAck = at
	}
}

// Reset clears the continuity fields together.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{}
}

// Persist writes the full session snapshot to the store.
func (s *Session) Persist(ctx context.Context) error {
	s.mu.Lock()
	snap := s.copyState()
	lastAck := s.lastAck
	s.mu.Unlock()

	return s.store.Update(ctx, func(st *store.State) {
		st.SessionID = nil
		st.Sequence = nil
		if snap.SessionID != "" {
			id := snap.SessionID
			st.SessionID = &id
		}
		if snap.Sequence != nil {
			st.Sequence = snap.Sequence
		}
		st.LastAckTimestamp = store.Timestamp(lastAck)
	})
}
