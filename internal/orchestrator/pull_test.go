package orchestrator

import (
	"context"
	"errors"
	"testing"
)

func pullTestHosts() []HostConfig {
	return []HostConfig{{
		Name:    "default",
		Domains: []string{"example.com"},
		Origins: []OriginConfig{
			{Location: "/app/", Scheme: "ovt", URLs: []string{"origin1:9000/app/", "origin2:9000/app/"}},
			{Location: "/vod/", Scheme: "rtsp", URLs: []string{"archive:8554/vod/"}},
		},
	}}
}

func TestRequestPullStreamWithExplicitURL(t *testing.T) {
	orc := newTestOrchestrator(t, pullTestHosts()...)
	provider := newFakeProvider("rtsp-ingest", "rtsp")
	orc.RegisterModule(provider)

	ctx := context.Background()
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}

	source := "rtsp://camera.local:8554/live"
	if !orc.RequestPullStream(ctx, "#default#app", "cam1", source, 30) {
		t.Fatal("explicit url pull should delegate")
	}
	if len(provider.pulled) != 1 {
		t.Fatalf("expected one pull, got %d", len(provider.pulled))
	}
	call := provider.pulled[0]
	if len(call.urls) != 1 || call.urls[0] != source {
		t.Fatalf("provider received urls %v, want [%s]", call.urls, source)
	}
	if call.offset != 30 {
		t.Fatalf("provider received offset %d, want 30", call.offset)
	}

	streams := orc.ActiveStreams()
	if len(streams) != 1 || streams[0].Provider != "rtsp-ingest" {
		t.Fatalf("pulled stream not tracked: %+v", streams)
	}
}

func TestRequestPullStreamFromOriginMap(t *testing.T) {
	orc := newTestOrchestrator(t, pullTestHosts()...)
	provider := newFakeProvider("ovt-ingest", "ovt")
	orc.RegisterModule(provider)

	ctx := context.Background()
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}

	if !orc.RequestPullStream(ctx, "#default#app", "stream1", "", 0) {
		t.Fatal("origin map pull should delegate")
	}
	want := []string{"ovt://origin1:9000/app/stream1", "ovt://origin2:9000/app/stream1"}
	got := provider.pulled[0].urls
	if len(got) != len(want) {
		t.Fatalf("provider urls %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("provider urls %v, want %v", got, want)
		}
	}
}

func TestRequestPullStreamUnresolved(t *testing.T) {
	orc := newTestOrchestrator(t, pullTestHosts()...)
	provider := newFakeProvider("ovt-ingest", "ovt")
	orc.RegisterModule(provider)

	ctx := context.Background()
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}

	// No provider claims rtsp even though the /vod/ origin wants it.
	if orc.RequestPullStream(ctx, "#default#app", "clip", "rtsp://archive:8554/vod/clip", 0) {
		t.Fatal("pull with unclaimed scheme should fail")
	}
	// Unknown application.
	if orc.RequestPullStream(ctx, "#default#ghost", "stream1", "", 0) {
		t.Fatal("pull for unknown application should fail")
	}
	// Stream outside every configured location.
	if orc.RequestPullStream(ctx, "#default#app", "", "", 0) {
		t.Fatal("pull with blank stream should fail")
	}
	// Malformed source.
	if orc.RequestPullStream(ctx, "#default#app", "cam", "not a url", 0) {
		t.Fatal("pull with unusable source should fail")
	}

	if len(provider.pulled) != 0 {
		t.Fatalf("unresolved pulls must not reach the provider: %v", provider.pulled)
	}
	if len(orc.ActiveStreams()) != 0 {
		t.Fatal("unresolved pulls must leave no stream bookkeeping behind")
	}
}

func TestRequestPullStreamProviderFailure(t *testing.T) {
	orc := newTestOrchestrator(t, pullTestHosts()...)
	provider := newFakeProvider("ovt-ingest", "ovt")
	provider.pullErr = errors.New("upstream unreachable")
	orc.RegisterModule(provider)

	ctx := context.Background()
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}
	if orc.RequestPullStream(ctx, "#default#app", "stream1", "", 0) {
		t.Fatal("pull should report provider failure")
	}
	if len(orc.ActiveStreams()) != 0 {
		t.Fatal("failed pull must not register a stream")
	}
}

func TestGetURLListForLocation(t *testing.T) {
	orc := newTestOrchestrator(t, pullTestHosts()...)

	urls, ok := orc.GetURLListForLocation("#default#vod", "movie")
	if !ok {
		t.Fatal("expected /vod/ origin to match")
	}
	if len(urls) != 1 || urls[0] != "rtsp://archive:8554/vod/movie" {
		t.Fatalf("unexpected urls: %v", urls)
	}

	if _, ok := orc.GetURLListForLocation("#default#other", "movie"); ok {
		t.Fatal("location outside configured origins should not resolve")
	}
	if _, ok := orc.GetURLListForLocation("bogus", "movie"); ok {
		t.Fatal("malformed combined name should not resolve")
	}
	if _, ok := orc.GetURLListForLocation("#ghost#app", "movie"); ok {
		t.Fatal("unknown virtual host should not resolve")
	}
}
