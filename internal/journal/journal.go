// Package journal records control-plane lifecycle events (reconciliations,
// application create/delete, stream create/delete, pull requests) so
// operators can reconstruct what the orchestrator did and why. Events are
// best-effort: the control plane never blocks a mutation on the journal.
package journal

import (
	"context"
	"sync"
	"time"
)

// EventType classifies a journal entry.
type EventType string

const (
	EventReconcile          EventType = "reconcile"
	EventApplicationCreated EventType = "application_created"
	EventApplicationDeleted EventType = "application_deleted"
	EventStreamCreated      EventType = "stream_created"
	EventStreamDeleted      EventType = "stream_deleted"
	EventPullRequested      EventType = "pull_requested"
)

// Event is one control-plane lifecycle record.
type Event struct {
	Time        time.Time `json:"time"`
	Type        EventType `json:"type"`
	VirtualHost string    `json:"virtualHost,omitempty"`
	Application string    `json:"application,omitempty"`
	Stream      string    `json:"stream,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Journal stores control-plane events.
type Journal interface {
	Record(ctx context.Context, evt Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close(ctx context.Context) error
}

// DefaultMemoryCapacity bounds the in-memory journal when no capacity is
// configured.
const DefaultMemoryCapacity = 512

// Memory is a fixed-capacity in-memory journal. Oldest events are evicted
// first.
type Memory struct {
	mu       sync.Mutex
	capacity int
	events   []Event
}

// NewMemory constructs an in-memory journal holding at most capacity events.
// A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Record(_ context.Context, evt Event) error {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, evt)
	if overflow := len(m.events) - m.capacity; overflow > 0 {
		m.events = append(m.events[:0], m.events[overflow:]...)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	recent := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, m.events[i])
	}
	return recent, nil
}

func (m *Memory) Close(context.Context) error {
	return nil
}

var _ Journal = (*Memory)(nil)
