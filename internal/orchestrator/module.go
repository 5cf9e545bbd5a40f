package orchestrator

import (
	"context"
	"strings"
	"sync"
)

// ModuleKind classifies a registered module for lookup and for notification
// ordering.
type ModuleKind int

const (
	KindUnknown ModuleKind = iota
	KindProvider
	KindMediaRouter
	KindTranscoder
	KindPublisher
)

func (k ModuleKind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindMediaRouter:
		return "media_router"
	case KindTranscoder:
		return "transcoder"
	case KindPublisher:
		return "publisher"
	}
	return "unknown"
}

// notificationOrder lists module kinds in the order they are told about a new
// application: producers first, egress last. Deletion and rollback use the
// mirror of this order so consumers stop referencing an application before
// its producer is torn down.
var notificationOrder = []ModuleKind{KindProvider, KindMediaRouter, KindTranscoder, KindPublisher}

// Module is an external component the control plane notifies of application
// lifecycle events.
type Module interface {
	Kind() ModuleKind
	Name() string

	OnApplicationCreated(ctx context.Context, app ApplicationInfo) error
	OnApplicationDeleted(ctx context.Context, app ApplicationInfo) error
}

// StreamHandle identifies a provider-level stream produced by a pull.
type StreamHandle interface {
	ID() uint32
	Name() string
}

// ProviderModule is an ingestion module that can pull remote streams for the
// schemes it claims.
type ProviderModule interface {
	Module

	Schemes() []string
	PullStream(ctx context.Context, app ApplicationInfo, streamName string, urls []string, offset int64) (StreamHandle, error)
	StopStream(ctx context.Context, handle StreamHandle) error
}

// StreamObserver receives stream lifecycle callbacks for a single
// application. The orchestrator hands one to the media router when the
// application is created.
type StreamObserver interface {
	OnStreamCreated(stream StreamInfo) error
	OnStreamDeleted(stream StreamInfo) error

	// OnFrame receives per-frame media payloads. The control plane ignores
	// them; forwarding frame data is not its concern.
	OnFrame(stream StreamInfo, payload []byte)
}

// RouterModule is the media-routing module. It accepts a per-application
// stream observer alongside the usual lifecycle notifications.
type RouterModule interface {
	Module

	AttachObserver(app ApplicationInfo, observer StreamObserver) error
	DetachObserver(app ApplicationInfo) error
}

type moduleEntry struct {
	kind   ModuleKind
	module Module
}

// ModuleRegistry tracks attached modules in registration order and grouped by
// kind. Its lock is never held across calls into module code, so a module may
// register another module from inside its own callbacks without deadlocking.
type ModuleRegistry struct {
	mu      sync.RWMutex
	ordered []moduleEntry
	byKind  map[ModuleKind][]Module
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{byKind: make(map[ModuleKind][]Module)}
}

// Register appends the module to the ordered list and the kind index. It
// returns ResultExists when a module with the same kind and name is already
// registered and ResultFailed for a nil module or unknown kind.
func (r *ModuleRegistry) Register(m Module) Result {
	if m == nil || m.Kind() == KindUnknown {
		return ResultFailed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.ordered {
		if entry.kind == m.Kind() && entry.module.Name() == m.Name() {
			return ResultExists
		}
	}

	r.ordered = append(r.ordered, moduleEntry{kind: m.Kind(), module: m})
	r.byKind[m.Kind()] = append(r.byKind[m.Kind()], m)
	return ResultSucceeded
}

// Unregister removes the module from both indexes. It returns ResultNotExists
// when the module was never registered.
func (r *ModuleRegistry) Unregister(m Module) Result {
	if m == nil {
		return ResultNotExists
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for i, entry := range r.ordered {
		if entry.kind == m.Kind() && entry.module.Name() == m.Name() {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ResultNotExists
	}

	kindList := r.byKind[m.Kind()]
	for i, candidate := range kindList {
		if candidate.Name() == m.Name() {
			r.byKind[m.Kind()] = append(kindList[:i], kindList[i+1:]...)
			break
		}
	}
	return ResultSucceeded
}

// ModulesOfKind returns the modules of the given kind in registration order.
func (r *ModuleRegistry) ModulesOfKind(kind ModuleKind) []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]Module, len(r.byKind[kind]))
	copy(modules, r.byKind[kind])
	return modules
}

// ProviderForScheme returns the provider module registered for the scheme.
// When more than one provider claims a scheme, the first registered wins;
// precedence follows registration order deliberately.
func (r *ModuleRegistry) ProviderForScheme(scheme string) (ProviderModule, bool) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range r.byKind[KindProvider] {
		provider, ok := candidate.(ProviderModule)
		if !ok {
			continue
		}
		for _, claimed := range provider.Schemes() {
			if strings.EqualFold(strings.TrimSpace(claimed), scheme) {
				return provider, true
			}
		}
	}
	return nil, false
}

// Len reports how many modules are registered.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// notificationSnapshot returns the registered modules ordered for application
// creation: by kind (providers, router, transcoders, publishers), preserving
// registration order within a kind. Callers iterate the snapshot without
// holding the registry lock.
func (r *ModuleRegistry) notificationSnapshot() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]Module, 0, len(r.ordered))
	for _, kind := range notificationOrder {
		snapshot = append(snapshot, r.byKind[kind]...)
	}
	return snapshot
}
