package orchestrator

import "testing"

func TestCompileDomainPattern(t *testing.T) {
	cases := []struct {
		pattern string
		host    string
		match   bool
	}{
		{"example.com", "example.com", true},
		{"example.com", "EXAMPLE.COM", true},
		{"example.com", "sub.example.com", false},
		{"*.example.com", "live.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "example.com", false},
		{"*", "anything.at.all", true},
		{"a?c.example.com", "abc.example.com", true},
		{"a?c.example.com", "ac.example.com", false},
		{"a?c.example.com", "abbc.example.com", false},
		{"live.example.com", "live-example-com", false},
	}
	for _, tc := range cases {
		matcher, err := CompileDomainPattern(tc.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.pattern, err)
		}
		if got := matcher.MatchString(tc.host); got != tc.match {
			t.Errorf("pattern %q host %q: got %v, want %v", tc.pattern, tc.host, got, tc.match)
		}
	}
}

func TestCompileDomainPatternRejectsEmpty(t *testing.T) {
	if _, err := CompileDomainPattern("   "); err == nil {
		t.Fatal("expected error for blank pattern")
	}
}

func TestOriginURLDerivation(t *testing.T) {
	org := newOrigin(OriginConfig{
		Location: "/app/stream",
		Scheme:   "ovt",
		URLs:     []string{"origin1:9000/app/stream", "origin2:9000/app/stream"},
	})

	want := []string{"ovt://origin1:9000/app/stream", "ovt://origin2:9000/app/stream"}
	if len(org.urls) != len(want) {
		t.Fatalf("derived %d urls, want %d", len(org.urls), len(want))
	}
	for i := range want {
		if org.urls[i] != want[i] {
			t.Fatalf("derived url %d = %q, want %q", i, org.urls[i], want[i])
		}
	}

	// The remainder after the location prefix is appended to each URL
	// verbatim.
	got := org.urlsForLocation("/app/stream_720p")
	want = []string{"ovt://origin1:9000/app/stream_720p", "ovt://origin2:9000/app/stream_720p"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("urlsForLocation %d = %q, want %q", i, got[i], want[i])
		}
	}

	// A trailing slash in the template does not double up when the
	// remainder begins a new path segment.
	slashed := newOrigin(OriginConfig{
		Location: "/vod",
		Scheme:   "rtsp",
		URLs:     []string{"archive:8554/vod/"},
	})
	got = slashed.urlsForLocation("/vod/movie")
	if len(got) != 1 || got[0] != "rtsp://archive:8554/vod/movie" {
		t.Fatalf("urlsForLocation with slashed template = %v", got)
	}
}

func TestOriginConfigEqual(t *testing.T) {
	base := OriginConfig{Location: "/app/", Scheme: "ovt", URLs: []string{"a:9000/app/"}}
	if !base.equal(OriginConfig{Location: "/app/", Scheme: "ovt", URLs: []string{"a:9000/app/"}}) {
		t.Fatal("identical configs should be equal")
	}
	if base.equal(OriginConfig{Location: "/app/", Scheme: "rtsp", URLs: []string{"a:9000/app/"}}) {
		t.Fatal("scheme change should not be equal")
	}
	if base.equal(OriginConfig{Location: "/app/", Scheme: "ovt", URLs: []string{"b:9000/app/"}}) {
		t.Fatal("url change should not be equal")
	}
}

func TestMatchOriginFirstPrefixWins(t *testing.T) {
	first := newOrigin(OriginConfig{Location: "/app/", Scheme: "ovt", URLs: []string{"a:9000/app/"}})
	second := newOrigin(OriginConfig{Location: "/app/stream", Scheme: "rtsp", URLs: []string{"b:9000/app/stream"}})
	origins := []*origin{first, second}

	if got := matchOrigin(origins, "/app/stream"); got != first {
		t.Fatal("expected the first matching origin in configuration order")
	}
	if got := matchOrigin(origins, "/other/stream"); got != nil {
		t.Fatal("expected no match outside configured locations")
	}
}
