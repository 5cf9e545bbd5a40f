package journal

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryEvictsOldestBeyondCapacity(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		evt := Event{Type: EventReconcile, Detail: fmt.Sprintf("apply-%d", i)}
		if err := m.Record(ctx, evt); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	events, err := m.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected capacity-bounded 3 events, got %d", len(events))
	}
	want := []string{"apply-5", "apply-4", "apply-3"}
	for i := range want {
		if events[i].Detail != want[i] {
			t.Fatalf("event %d = %s, want %s (newest first)", i, events[i].Detail, want[i])
		}
	}
}

func TestMemoryRecentHonorsLimit(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := m.Record(ctx, Event{Type: EventStreamCreated, Stream: fmt.Sprintf("s%d", i)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := m.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 || events[0].Stream != "s3" || events[1].Stream != "s2" {
		t.Fatalf("unexpected events: %+v", events)
	}

	all, err := m.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("non-positive limit should return everything, got %d", len(all))
	}
}

func TestMemoryStampsMissingTime(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	if err := m.Record(ctx, Event{Type: EventApplicationCreated}); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := m.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].Time.IsZero() {
		t.Fatal("recorded event should carry a timestamp")
	}
}
