package sequence

import (
	"context"
	"sync"
)

// Memory is an in-process Allocator used by tests and tooling.
type Memory struct {
	mu      sync.Mutex
	last    map[Kind]int64
	retries map[Kind]int
}

// NewMemory returns a Memory allocator optionally seeded with last values.
func NewMemory(seed map[Kind]int64) *Memory {
	last := make(map[Kind]int64, len(seed))
	for k, v := range seed {
		last[k] = v
	}
	return &Memory{last: last, retries: make(map[Kind]int)}
}

// Next returns the next identifier of kind.
func (m *Memory) Next(_ context.Context, kind Kind) (string, error) {
	if _, err := Lookup(kind); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[kind]++
	return Format(kind, m.last[kind])
}

// ObserveRetry counts collisions reported through NoteRetry.
func (m *Memory) ObserveRetry(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[kind]++
}

// Retries returns how many collisions were reported for kind.
func (m *Memory) Retries(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[kind]
}
