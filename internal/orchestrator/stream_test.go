package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"streamgate/internal/observability/metrics"
	"streamgate/internal/streamdir"
)

type fakeDirectory struct {
	mu      sync.Mutex
	entries map[uint32]streamdir.Entry
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: make(map[uint32]streamdir.Entry)}
}

func (d *fakeDirectory) Publish(_ context.Context, entry streamdir.Entry) error {
	d.mu.Lock()
	d.entries[entry.ID] = entry
	d.mu.Unlock()
	return nil
}

func (d *fakeDirectory) Remove(_ context.Context, id uint32) error {
	d.mu.Lock()
	delete(d.entries, id)
	d.mu.Unlock()
	return nil
}

func (d *fakeDirectory) Active(context.Context) ([]streamdir.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]streamdir.Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *fakeDirectory) Close() error { return nil }

func (d *fakeDirectory) entry(id uint32) (streamdir.Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[id]
	return entry, ok
}

func TestStreamObserverLifecycle(t *testing.T) {
	dir := newFakeDirectory()
	orc := New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New()),
		WithStreamDirectory(dir),
	)

	ctx := context.Background()
	hosts := []HostConfig{{
		Name:    "default",
		Domains: []string{"example.com"},
		Origins: []OriginConfig{
			{Location: "/app/", Scheme: "ovt", URLs: []string{"origin:9000/app/"}},
		},
	}}
	if result := orc.ApplyOriginMap(ctx, hosts); result != ResultSucceeded {
		t.Fatalf("apply: %s", result)
	}

	router := newFakeRouter("router")
	orc.RegisterModule(router)
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}

	observer := router.observer("#default#app")
	if observer == nil {
		t.Fatal("no observer attached to router")
	}

	if err := observer.OnStreamCreated(StreamInfo{ID: 7, Name: "stream1"}); err != nil {
		t.Fatalf("stream created callback: %v", err)
	}

	streams := orc.ActiveStreams()
	if len(streams) != 1 {
		t.Fatalf("expected 1 tracked stream, got %d", len(streams))
	}
	if streams[0].FullName != "#default#app/stream1" || !streams[0].Valid {
		t.Fatalf("unexpected stream status: %+v", streams[0])
	}
	if entry, ok := dir.entry(7); !ok || entry.FullName != "#default#app/stream1" {
		t.Fatalf("directory entry missing or wrong: %+v (ok=%v)", entry, ok)
	}

	// Frames are accepted and ignored.
	observer.OnFrame(StreamInfo{ID: 7, Name: "stream1"}, []byte{0x00, 0x01})

	// Duplicate creation callbacks are collapsed into one record.
	if err := observer.OnStreamCreated(StreamInfo{ID: 7, Name: "stream1"}); err != nil {
		t.Fatalf("repeat stream created callback: %v", err)
	}
	if got := len(orc.ActiveStreams()); got != 1 {
		t.Fatalf("duplicate callback created %d records", got)
	}

	if err := observer.OnStreamDeleted(StreamInfo{ID: 7, Name: "stream1"}); err != nil {
		t.Fatalf("stream deleted callback: %v", err)
	}
	if got := len(orc.ActiveStreams()); got != 0 {
		t.Fatalf("expected no streams after deletion, got %d", got)
	}
	if _, ok := dir.entry(7); ok {
		t.Fatal("directory entry should be removed")
	}

	// Deleting an unknown stream is a no-op.
	if err := observer.OnStreamDeleted(StreamInfo{ID: 99, Name: "ghost"}); err != nil {
		t.Fatalf("unknown stream deletion should not error: %v", err)
	}
}
