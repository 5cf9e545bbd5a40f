package orchestrator

import (
	"context"
	"errors"
	"testing"

	"streamgate/internal/streamkey"
)

func TestParseVHostAppName(t *testing.T) {
	cases := []struct {
		input string
		vhost string
		app   string
		ok    bool
	}{
		{"#default#app", "default", "app", true},
		{"#default#app#extra", "default", "app#extra", true},
		{"default#app", "", "", false},
		{"#default#", "", "", false},
		{"##app", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		vhost, app, ok := ParseVHostAppName(tc.input)
		if vhost != tc.vhost || app != tc.app || ok != tc.ok {
			t.Errorf("ParseVHostAppName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.input, vhost, app, ok, tc.vhost, tc.app, tc.ok)
		}
	}
}

func TestCreateApplicationNotifiesInKindOrder(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})

	var order []string
	record := func(name string) func(context.Context, ApplicationInfo) error {
		return func(context.Context, ApplicationInfo) error {
			order = append(order, name)
			return nil
		}
	}

	publisher := &hookModule{kind: KindPublisher, name: "hls-egress"}
	router := &hookRouter{hookModule: hookModule{kind: KindMediaRouter, name: "router"}}
	provider := &hookModule{kind: KindProvider, name: "rtsp-ingest"}
	publisher.onCreated = record("hls-egress")
	router.onCreated = record("router")
	provider.onCreated = record("rtsp-ingest")

	// Registration order is deliberately the reverse of notification order.
	orc.RegisterModule(publisher)
	orc.RegisterModule(router)
	orc.RegisterModule(provider)

	if result := orc.CreateApplication(context.Background(), "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create application: %s", result)
	}

	want := []string{"rtsp-ingest", "router", "hls-egress"}
	if len(order) != len(want) {
		t.Fatalf("notified %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("notified %v, want %v", order, want)
		}
	}
	if router.observers["#default#app"] == nil {
		t.Fatal("router should have received a stream observer")
	}

	app := orc.GetApplication("#default#app")
	if !app.IsValid() {
		t.Fatal("application should be resolvable")
	}
	if app.ID <= MinApplicationID {
		t.Fatalf("application id %d should be above the floor %d", app.ID, MinApplicationID)
	}
}

func TestCreateApplicationResults(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})
	ctx := context.Background()

	if result := orc.CreateApplication(ctx, "missing", ApplicationConfig{Name: "app"}); result != ResultNotExists {
		t.Fatalf("unknown vhost: got %s, want not_exists", result)
	}
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "   "}); result != ResultFailed {
		t.Fatalf("blank name: got %s, want failed", result)
	}
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("first create: got %s", result)
	}
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultExists {
		t.Fatalf("duplicate create: got %s, want exists", result)
	}
}

func TestCreateApplicationRollsBackOnModuleFailure(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})

	provider := newFakeProvider("rtsp-ingest", "rtsp")
	router := newFakeRouter("router")
	router.createErr = errors.New("router refused")
	publisher := &fakeModule{kind: KindPublisher, name: "hls-egress"}
	orc.RegisterModule(provider)
	orc.RegisterModule(router)
	orc.RegisterModule(publisher)

	if result := orc.CreateApplication(context.Background(), "default", ApplicationConfig{Name: "app"}); result != ResultFailed {
		t.Fatalf("expected ResultFailed, got %s", result)
	}

	// Only the provider saw the creation, so only the provider is told about
	// the rollback, exactly once.
	if deleted := provider.deletedApps(); len(deleted) != 1 || deleted[0] != "#default#app" {
		t.Fatalf("provider rollback notifications: %v", deleted)
	}
	if deleted := router.deletedApps(); len(deleted) != 0 {
		t.Fatalf("failing module must not get a rollback notification: %v", deleted)
	}
	if deleted := publisher.deletedApps(); len(deleted) != 0 {
		t.Fatalf("unnotified module must not get a rollback notification: %v", deleted)
	}
	if created := publisher.createdApps(); len(created) != 0 {
		t.Fatalf("modules after the failure must not be notified: %v", created)
	}
	if app := orc.GetApplication("#default#app"); app.IsValid() {
		t.Fatal("rolled-back application must not be resolvable")
	}
}

func TestCreateApplicationRollsBackOnObserverAttachFailure(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})

	provider := newFakeProvider("rtsp-ingest", "rtsp")
	router := newFakeRouter("router")
	router.attachErr = errors.New("attach refused")
	orc.RegisterModule(provider)
	orc.RegisterModule(router)

	if result := orc.CreateApplication(context.Background(), "default", ApplicationConfig{Name: "app"}); result != ResultFailed {
		t.Fatalf("expected ResultFailed, got %s", result)
	}

	// The router's own create succeeded before the attach failed, so it is
	// part of the rollback.
	if deleted := router.deletedApps(); len(deleted) != 1 {
		t.Fatalf("router rollback notifications: %v", deleted)
	}
	if deleted := provider.deletedApps(); len(deleted) != 1 {
		t.Fatalf("provider rollback notifications: %v", deleted)
	}
	if app := orc.GetApplication("#default#app"); app.IsValid() {
		t.Fatal("rolled-back application must not be resolvable")
	}
}

func TestDeleteApplicationReportsModuleFailureButStaysDeleted(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})
	publisher := &fakeModule{kind: KindPublisher, name: "hls-egress", deleteErr: errors.New("egress stuck")}
	orc.RegisterModule(publisher)

	ctx := context.Background()
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "app"}); result != ResultSucceeded {
		t.Fatalf("create: %s", result)
	}

	app := orc.GetApplication("#default#app")
	if result := orc.DeleteApplication(ctx, app); result != ResultFailed {
		t.Fatalf("expected ResultFailed from failing module, got %s", result)
	}
	// The failure is reported, not compensated: the application stays gone.
	if again := orc.GetApplication("#default#app"); again.IsValid() {
		t.Fatal("application must stay deleted despite the module failure")
	}
	if result := orc.DeleteApplication(ctx, app); result != ResultNotExists {
		t.Fatalf("second delete: got %s, want not_exists", result)
	}
}

func TestVerifyStreamKey(t *testing.T) {
	orc := newTestOrchestrator(t, HostConfig{Name: "default", Domains: []string{"example.com"}})
	ctx := context.Background()

	hash, err := streamkey.Hash("SECRETKEY")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "keyed", StreamKeyHash: hash}); result != ResultSucceeded {
		t.Fatalf("create keyed: %s", result)
	}
	if result := orc.CreateApplication(ctx, "default", ApplicationConfig{Name: "open"}); result != ResultSucceeded {
		t.Fatalf("create open: %s", result)
	}

	if !orc.VerifyStreamKey("#default#keyed", "SECRETKEY") {
		t.Fatal("correct key rejected")
	}
	if orc.VerifyStreamKey("#default#keyed", "WRONG") {
		t.Fatal("wrong key accepted")
	}
	if orc.VerifyStreamKey("#default#open", "") {
		t.Fatal("application without a key must reject every candidate")
	}
	if orc.VerifyStreamKey("#default#missing", "SECRETKEY") {
		t.Fatal("unknown application must reject")
	}
}

// hookModule lets a test install a custom creation callback.
type hookModule struct {
	kind      ModuleKind
	name      string
	onCreated func(context.Context, ApplicationInfo) error
}

func (m *hookModule) Kind() ModuleKind { return m.kind }
func (m *hookModule) Name() string     { return m.name }

func (m *hookModule) OnApplicationCreated(ctx context.Context, app ApplicationInfo) error {
	if m.onCreated != nil {
		return m.onCreated(ctx, app)
	}
	return nil
}

func (m *hookModule) OnApplicationDeleted(context.Context, ApplicationInfo) error { return nil }

type hookRouter struct {
	hookModule
	observers map[string]StreamObserver
}

func (r *hookRouter) AttachObserver(app ApplicationInfo, observer StreamObserver) error {
	if r.observers == nil {
		r.observers = make(map[string]StreamObserver)
	}
	r.observers[app.Name] = observer
	return nil
}

func (r *hookRouter) DetachObserver(app ApplicationInfo) error {
	delete(r.observers, app.Name)
	return nil
}
