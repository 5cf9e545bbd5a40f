package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"streamgate/internal/journal"
	"streamgate/internal/observability/metrics"
	"streamgate/internal/streamdir"
)

// MinApplicationID seeds the application id counter. Ids grow monotonically
// from here and are never reused, even when creation rolls back.
const MinApplicationID uint32 = 100

// Orchestrator owns the mapping from externally visible identifiers (virtual
// hosts, domains, application names) to runtime objects, reconciles that
// mapping when the configuration snapshot changes, and routes cross-component
// commands to the attached modules.
//
// It is constructed explicitly by the composition root and passed by handle
// to its callers; there is no package-level instance.
type Orchestrator struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	journal journal.Journal
	dir     streamdir.Directory
	modules *ModuleRegistry

	// mu guards the virtual-host map and every collection hanging off it. It
	// is held for the duration of a tree-wide diff+commit or a multi-field
	// read, never across calls into module code.
	mu        sync.RWMutex
	vhostMap  map[string]*virtualHost
	vhostList []*virtualHost
	streams   map[uint32]*stream

	lastAppID atomic.Uint32

	// beforeCommit runs between the diff and commit phases of a host
	// reconciliation. Tests use it to simulate concurrent state mutation.
	beforeCommit func(*virtualHost)
}

// Option mutates orchestrator configuration.
type Option func(*Orchestrator)

// WithLogger installs the logger used for lifecycle and reconciliation logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics installs the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithJournal installs the control-plane event journal.
func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithStreamDirectory installs the active-stream directory mirror.
func WithStreamDirectory(dir streamdir.Directory) Option {
	return func(o *Orchestrator) {
		if dir != nil {
			o.dir = dir
		}
	}
}

// New constructs an orchestrator with no virtual hosts and no modules
// attached.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:   slog.Default(),
		metrics:  metrics.Default(),
		journal:  journal.NewMemory(0),
		dir:      streamdir.Noop{},
		modules:  NewModuleRegistry(),
		vhostMap: make(map[string]*virtualHost),
		streams:  make(map[uint32]*stream),
	}
	o.lastAppID.Store(MinApplicationID)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Modules exposes the module registry.
func (o *Orchestrator) Modules() *ModuleRegistry {
	return o.modules
}

// RegisterModule attaches a module. See ModuleRegistry.Register.
func (o *Orchestrator) RegisterModule(m Module) Result {
	result := o.modules.Register(m)
	if result == ResultSucceeded {
		o.logger.Info("module registered", "module", m.Name(), "kind", m.Kind().String())
	}
	return result
}

// UnregisterModule detaches a module. See ModuleRegistry.Unregister.
func (o *Orchestrator) UnregisterModule(m Module) Result {
	result := o.modules.Unregister(m)
	if result == ResultSucceeded {
		o.logger.Info("module unregistered", "module", m.Name(), "kind", m.Kind().String())
	}
	return result
}

// GetVhostNameFromDomain returns the name of the first registered virtual
// host with a domain matching the hostname. First match wins: ties are
// resolved by registration order, never by name or load.
func (o *Orchestrator) GetVhostNameFromDomain(domainName string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, vhost := range o.vhostList {
		for _, d := range vhost.domains {
			if d.matches(domainName) {
				return vhost.name, true
			}
		}
	}
	return "", false
}

// Close deletes every application (notifying modules) and clears the
// topology. The owner calls it once at shutdown.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	var apps []ApplicationInfo
	for _, vhost := range o.vhostList {
		for _, app := range vhost.apps {
			apps = append(apps, app)
		}
	}
	o.vhostMap = make(map[string]*virtualHost)
	o.vhostList = nil
	o.streams = make(map[uint32]*stream)
	o.mu.Unlock()

	for _, app := range apps {
		o.notifyApplicationDeleted(ctx, app)
	}
	return nil
}

// vhostByName must be called with mu held.
func (o *Orchestrator) vhostByName(name string) (*virtualHost, bool) {
	vhost, ok := o.vhostMap[name]
	return vhost, ok
}

// recordEvent writes a journal entry best-effort.
func (o *Orchestrator) recordEvent(ctx context.Context, evt journal.Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	if err := o.journal.Record(ctx, evt); err != nil {
		o.logger.Warn("journal record failed", "type", string(evt.Type), "error", err)
	}
}
