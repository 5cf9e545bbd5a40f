package streamdir

import (
	"context"
	"testing"
	"time"

	"streamgate/internal/testsupport/redisstub"
)

func startRedis(t *testing.T, opts redisstub.Options) *redisstub.Server {
	t.Helper()
	stub, err := redisstub.Start(opts)
	if err != nil {
		t.Fatalf("start redis stub: %v", err)
	}
	t.Cleanup(func() { _ = stub.Close() })
	return stub
}

func TestRedisPublishRemoveActive(t *testing.T) {
	stub := startRedis(t, redisstub.Options{})

	dir, err := NewRedis(RedisConfig{Addr: stub.Addr(), Key: "test:streams"})
	if err != nil {
		t.Fatalf("new redis directory: %v", err)
	}
	defer dir.Close()

	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)
	entries := []Entry{
		{ID: 12, Application: "#default#app", Name: "b", FullName: "#default#app/b", StartedAt: started},
		{ID: 7, Application: "#default#app", Name: "a", FullName: "#default#app/a", StartedAt: started},
	}
	for _, entry := range entries {
		if err := dir.Publish(ctx, entry); err != nil {
			t.Fatalf("publish %d: %v", entry.ID, err)
		}
	}

	active, err := dir.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(active))
	}
	if active[0].ID != 7 || active[1].ID != 12 {
		t.Fatalf("entries not sorted by id: %+v", active)
	}
	if active[0].FullName != "#default#app/a" {
		t.Fatalf("unexpected entry: %+v", active[0])
	}

	if err := dir.Remove(ctx, 7); err != nil {
		t.Fatalf("remove: %v", err)
	}
	active, err = dir.Active(ctx)
	if err != nil {
		t.Fatalf("active after remove: %v", err)
	}
	if len(active) != 1 || active[0].ID != 12 {
		t.Fatalf("unexpected entries after remove: %+v", active)
	}
}

func TestRedisSkipsUnparseableEntries(t *testing.T) {
	stub := startRedis(t, redisstub.Options{})

	dir, err := NewRedis(RedisConfig{Addr: stub.Addr()})
	if err != nil {
		t.Fatalf("new redis directory: %v", err)
	}
	defer dir.Close()

	ctx := context.Background()
	if err := dir.Publish(ctx, Entry{ID: 1, Application: "#default#app", Name: "ok", FullName: "#default#app/ok"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Poison the hash with a payload from an incompatible writer.
	if err := dir.client.HSet(ctx, dir.key, "2", "not json").Err(); err != nil {
		t.Fatalf("hset garbage: %v", err)
	}

	active, err := dir.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("expected only the parseable entry, got %+v", active)
	}
}

func TestRedisAuthentication(t *testing.T) {
	stub := startRedis(t, redisstub.Options{Password: "hunter2"})

	if _, err := NewRedis(RedisConfig{Addr: stub.Addr(), Password: "wrong"}); err == nil {
		t.Fatal("expected connection with wrong password to fail")
	}

	dir, err := NewRedis(RedisConfig{Addr: stub.Addr(), Password: "hunter2"})
	if err != nil {
		t.Fatalf("new redis directory with password: %v", err)
	}
	defer dir.Close()
}

func TestRedisRequiresAddr(t *testing.T) {
	if _, err := NewRedis(RedisConfig{}); err == nil {
		t.Fatal("expected error for missing addr")
	}
}
