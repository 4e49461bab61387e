package gateway

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqPtr(v int64) *int64 { return &v }

func TestDispatch_SequenceIsMaximumSeen(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		var st SessionState
		var max int64 = -1
		for i := 0; i < 100; i++ {
			s := rng.Int63n(1000)
			st, _ = Dispatch(st, Frame{Op: OpDispatch, S: seqPtr(s), T: "MESSAGE_CREATE"})
			if s > max {
				max = s
			}
			require.NotNil(t, st.Sequence)
			assert.Equal(t, max, *st.Sequence)
		}
	}
}

func TestDispatch_NullSequenceLeavesStateUntouched(t *testing.T) {
	st := SessionState{SessionID: "abc", Sequence: seqPtr(10)}
	next, ev := Dispatch(st, Frame{Op: OpDispatch, T: "TYPING_START"})
	assert.Equal(t, EventNone, ev)
	assert.Equal(t, "abc", next.SessionID)
	assert.Equal(t, int64(10), *next.Sequence)
}

func TestDispatch_ReadyStoresSessionID(t *testing.T) {
	f := Frame{
		Op: OpDispatch,
		S:  seqPtr(1),
		T:  EventTypeReady,
		D:  json.RawMessage(`{"session_id":"abc","user":{"id":"1"}}`),
	}
	next, ev := Dispatch(SessionState{}, f)
	assert.Equal(t, EventReady, ev)
	assert.Equal(t, "abc", next.SessionID)
	assert.Equal(t, int64(1), *next.Sequence)
	assert.True(t, next.Resumable())
}

func TestDispatch_ReadyWithoutSessionIDKeepsPrevious(t *testing.T) {
	st := SessionState{SessionID: "old"}
	next, ev := Dispatch(st, Frame{Op: OpDispatch, T: EventTypeReady, D: json.RawMessage(`{}`)})
	assert.Equal(t, EventReady, ev)
	assert.Equal(t, "old", next.SessionID)
}

func TestDispatch_Resumed(t *testing.T) {
	st := SessionState{SessionID: "abc", Sequence: seqPtr(4)}
	next, ev := Dispatch(st, Frame{Op: OpDispatch, S: seqPtr(5), T: EventTypeResumed})
	assert.Equal(t, EventResumed, ev)
	assert.Equal(t, "abc", next.SessionID)
	assert.Equal(t, int64(5), *next.Sequence)
}

func TestDispatch_DoesNotAliasInput(t *testing.T) {
	st := SessionState{Sequence: seqPtr(1)}
	next, _ := Dispatch(st, Frame{Op: OpDispatch, S: seqPtr(2)})
	assert.Equal(t, int64(1), *st.Sequence)
	assert.Equal(t, int64(2), *next.Sequence)
}

func TestSessionState_Resumable(t *testing.T) {
	assert.False(t, SessionState{}.Resumable())
	assert.False(t, SessionState{SessionID: "abc"}.Resumable())
	assert.False(t, SessionState{Sequence: seqPtr(0)}.Resumable())
	assert.True(t, SessionState{SessionID: "abc", Sequence: seqPtr(0)}.Resumable())
}
