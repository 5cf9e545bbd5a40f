// Package streamdir mirrors the set of live streams into a shared directory
// so the admin API and sibling nodes can list active streams without touching
// the orchestrator's topology lock. The control plane treats the directory as
// best-effort: a directory failure never fails a stream operation.
package streamdir

import (
	"context"
	"time"
)

// Entry describes one live stream in the directory.
type Entry struct {
	ID          uint32    `json:"id"`
	Application string    `json:"application"`
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	StartedAt   time.Time `json:"startedAt"`
}

// Directory is the shared active-stream registry.
type Directory interface {
	Publish(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, id uint32) error
	Active(ctx context.Context) ([]Entry, error)
	Close() error
}

// Noop is a Directory for deployments without a shared directory configured.
// All operations succeed without side effects.
type Noop struct{}

func (Noop) Publish(context.Context, Entry) error { return nil }

func (Noop) Remove(context.Context, uint32) error { return nil }

func (Noop) Active(context.Context) ([]Entry, error) { return nil, nil }

func (Noop) Close() error { return nil }

var _ Directory = Noop{}
