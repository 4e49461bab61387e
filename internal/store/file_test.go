package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ts := Timestamp(time.Unix(1760000000, 250_000_000))

	s := OpenFile(path)
	err := s.Update(context.Background(), func(st *State) {
		st.SessionID = ptr("abc")
		st.Sequence = ptr(int64(42))
		st.LastAckTimestamp = ts
	})
	require.NoError(t, err)

	reloaded := OpenFile(path).Get()
	require.NotNil(t, reloaded.SessionID)
	require.NotNil(t, reloaded.Sequence)
	require.NotNil(t, reloaded.LastAckTimestamp)
	assert.Equal(t, "abc", *reloaded.SessionID)
	assert.Equal(t, int64(42), *reloaded.Sequence)
	assert.Equal(t, *ts, *reloaded.LastAckTimestamp)

	ack, ok := reloaded.LastAck()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Unix(1760000000, 250_000_000), ack, time.Microsecond)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := OpenFile(filepath.Join(t.TempDir(), "nope", "state.json"))
	assert.Equal(t, State{}, s.Get())
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session_id": "abc", "seq`), 0o600))

	s := OpenFile(path)
	assert.Equal(t, State{}, s.Get())

	// The store stays usable and overwrites the damaged file.
	require.NoError(t, s.Update(context.Background(), func(st *State) { st.Sequence = ptr(int64(7)) }))
	got := OpenFile(path).Get()
	require.NotNil(t, got.Sequence)
	assert.Equal(t, int64(7), *got.Sequence)
}

func TestFileStore_UpdateMergesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := OpenFile(path)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(st *State) {
		st.SessionID = ptr("abc")
		st.Sequence = ptr(int64(1))
	}))
	require.NoError(t, s.Update(ctx, func(st *State) { st.LastAckTimestamp = ptr(12.5) }))

	got := OpenFile(path).Get()
	require.NotNil(t, got.SessionID)
	assert.Equal(t, "abc", *got.SessionID)
	assert.Equal(t, int64(1), *got.Sequence)
	assert.Equal(t, 12.5, *got.LastAckTimestamp)
}

func TestFileStore_ClearedFieldsWriteNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := OpenFile(path)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(st *State) {
		st.SessionID = ptr("abc")
		st.Sequence = ptr(int64(9))
	}))
	require.NoError(t, s.Update(ctx, func(st *State) {
		st.SessionID = nil
		st.Sequence = nil
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":null,"sequence":null,"last_ack_timestamp":null}`, string(raw))
}

func TestFileStore_CreatesParentDirAndLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	path := filepath.Join(dir, "state.json")

	s := OpenFile(path)
	for i := int64(0); i < 5; i++ {
		seq := i
		require.NoError(t, s.Update(context.Background(), func(st *State) { st.Sequence = &seq }))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the state file should remain")
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestFileStore_GetReturnsCopy(t *testing.T) {
	s := OpenFile(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.Update(context.Background(), func(st *State) { st.Sequence = ptr(int64(3)) }))

	got := s.Get()
	*got.Sequence = 99
	assert.Equal(t, int64(3), *s.Get().Sequence)
}
