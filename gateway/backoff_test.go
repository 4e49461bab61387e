package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesUpToMax(t *testing.T) {
	base := 1 * time.Second
	max := 60 * time.Second
	b := NewBackoff(BackoffPolicy{Base: base, Max: max})

	for n := 1; n <= 10; n++ {
		b.Next()
		want := base << n
		if want > max {
			want = max
		}
		assert.Equal(t, want, b.Current(), "after failure %d", n)
	}
}

func TestBackoff_SleepsCurrentThenDoubles(t *testing.T) {
	b := NewBackoff(BackoffPolicy{Base: 100 * time.Millisecond, Max: time.Second})
	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())
	assert.Equal(t, 400*time.Millisecond, b.Next())
	assert.Equal(t, 800*time.Millisecond, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_ResetReturnsToBase(t *testing.T) {
	b := NewBackoff(BackoffPolicy{Base: time.Second, Max: time.Minute})
	b.Next()
	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, time.Second, b.Current())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := NewBackoff(BackoffPolicy{Base: time.Second, Max: time.Minute, Jitter: true, JitterFraction: 0.3})

	b.rand = func() float64 { return 0 }
	assert.Equal(t, time.Second, b.Next())

	b.Reset()
	b.rand = func() float64 { return 0.999 }
	d := b.Next()
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, 1300*time.Millisecond)

	// Jitter never changes the doubling itself.
	assert.Equal(t, 2*time.Second, b.Current())
}

func TestBackoff_NormalizesPolicy(t *testing.T) {
	b := NewBackoff(BackoffPolicy{Base: 0, Max: 0})
	assert.Equal(t, DefaultBackoffPolicy().Base, b.Current())
	b.Next()
	assert.Equal(t, DefaultBackoffPolicy().Base, b.Current(), "max below base is raised to base")
}
