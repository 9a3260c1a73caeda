package trace

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory backend when no capacity is
// configured.
const DefaultMemoryCapacity = 100

// MemoryBackend keeps traces in a bounded FIFO ring. When the ring is full
// the oldest trace is evicted. Nothing survives a process restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	traces   map[string]*Trace
	order    []string
	capacity int
}

// NewMemoryBackend creates an in-memory backend holding at most capacity
// traces. A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryBackend{
		traces:   make(map[string]*Trace),
		capacity: capacity,
	}
}

func (m *MemoryBackend) Store(_ context.Context, t *Trace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.traces[t.TraceID]; !exists {
		m.order = append(m.order, t.TraceID)
	}
	m.traces[t.TraceID] = t

	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.traces, oldest)
	}
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, traceID string) (*Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.traces[traceID], nil
}

// Recent returns up to limit traces in reverse insertion order.
func (m *MemoryBackend) Recent(_ context.Context, limit int) ([]*Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]*Trace, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.traces[m.order[i]])
	}
	return out, nil
}

// Len reports how many traces are currently held.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
