package store

import (
	"context"
	"sync"
)

// Memory is a non-durable Store, used when persistence is disabled and in
// tests.
type Memory struct {
	mu     sync.Mutex
	state  State
	writes int
}

// NewMemory returns a Memory store seeded with initial.
func NewMemory(initial State) *Memory {
	return &Memory{state: clone(initial)}
}

func (m *Memory) Get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state)
}

func (m *Memory) Update(ctx context.Context, fn func(*State)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := clone(m.state)
	fn(&next)
	m.state = next
	m.writes++
	return nil
}

// Writes reports how many updates have been applied.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }
