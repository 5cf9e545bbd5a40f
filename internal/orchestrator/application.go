package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"streamgate/internal/journal"
	"streamgate/internal/streamkey"
)

// ApplicationInfo identifies a live application inside a virtual host. The
// zero value is the stable "no such application" sentinel; callers branch on
// IsValid instead of catching errors.
type ApplicationInfo struct {
	ID        uint32    `json:"id"`
	Name      string    `json:"name"` // combined name, e.g. "#default#app"
	VHostName string    `json:"vhost"`
	AppName   string    `json:"app"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`

	// StreamKeyHash is the encoded hash of the application's stream key;
	// empty when no key is required.
	StreamKeyHash string `json:"-"`
}

// IsValid reports whether the info refers to an existing application.
func (a ApplicationInfo) IsValid() bool {
	return a.ID != 0
}

// InvalidApplication returns the sentinel for an absent application.
func InvalidApplication() ApplicationInfo {
	return ApplicationInfo{}
}

// StreamInfo is the descriptor the media pipeline reports for a stream.
type StreamInfo struct {
	ID   uint32
	Name string
}

// ResolveApplicationName generates the combined application name for a
// virtual host and application pair.
func ResolveApplicationName(vhostName, appName string) string {
	return fmt.Sprintf("#%s#%s", vhostName, appName)
}

// ParseVHostAppName splits a combined application name back into its virtual
// host and application names.
func ParseVHostAppName(vhostAppName string) (vhostName, appName string, ok bool) {
	if !strings.HasPrefix(vhostAppName, "#") {
		return "", "", false
	}
	parts := strings.SplitN(vhostAppName[1:], "#", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ResolveApplicationNameFromDomain generates the combined application name
// for a domain and application pair by resolving the owning virtual host.
func (o *Orchestrator) ResolveApplicationNameFromDomain(domainName, appName string) (string, bool) {
	vhostName, ok := o.GetVhostNameFromDomain(domainName)
	if !ok {
		return "", false
	}
	return ResolveApplicationName(vhostName, appName), true
}

func (o *Orchestrator) nextAppID() uint32 {
	return o.lastAppID.Add(1)
}

// CreateApplication builds an application inside the named virtual host and
// notifies every registered module in the fixed kind order (providers, then
// the router, then publishers). If any notification fails the insertion is
// undone and delete notifications go to the already-notified modules in
// reverse, so no caller ever observes a half-initialized application.
func (o *Orchestrator) CreateApplication(ctx context.Context, vhostName string, cfg ApplicationConfig) Result {
	appName := strings.TrimSpace(cfg.Name)
	if appName == "" {
		return ResultFailed
	}

	info := ApplicationInfo{
		Name:          ResolveApplicationName(vhostName, appName),
		VHostName:     vhostName,
		AppName:       appName,
		Type:          cfg.Type,
		StreamKeyHash: cfg.StreamKeyHash,
		CreatedAt:     time.Now().UTC(),
	}

	o.mu.Lock()
	vhost, ok := o.vhostByName(vhostName)
	if !ok {
		o.mu.Unlock()
		return ResultNotExists
	}
	if _, exists := vhost.appByName(info.Name); exists {
		o.mu.Unlock()
		return ResultExists
	}
	info.ID = o.nextAppID()
	vhost.apps[info.ID] = info
	o.mu.Unlock()

	modules := o.modules.notificationSnapshot()
	notified := make([]Module, 0, len(modules))
	for _, m := range modules {
		if err := m.OnApplicationCreated(ctx, info); err != nil {
			o.logger.Error("application create notification failed",
				"application", info.Name, "module", m.Name(), "error", err)
			o.metrics.RecordModuleFailure(m.Name())
			o.rollbackCreate(ctx, info, notified)
			o.recordEvent(ctx, journal.Event{
				Type:        journal.EventApplicationCreated,
				VirtualHost: vhostName,
				Application: info.Name,
				Outcome:     ResultFailed.String(),
				Detail:      fmt.Sprintf("module %s: %v", m.Name(), err),
			})
			return ResultFailed
		}
		notified = append(notified, m)

		if router, isRouter := m.(RouterModule); isRouter {
			if err := router.AttachObserver(info, &appBridge{orc: o, app: info}); err != nil {
				o.logger.Error("stream observer attach failed",
					"application", info.Name, "module", m.Name(), "error", err)
				o.metrics.RecordModuleFailure(m.Name())
				o.rollbackCreate(ctx, info, notified)
				o.recordEvent(ctx, journal.Event{
					Type:        journal.EventApplicationCreated,
					VirtualHost: vhostName,
					Application: info.Name,
					Outcome:     ResultFailed.String(),
					Detail:      fmt.Sprintf("attach observer to %s: %v", m.Name(), err),
				})
				return ResultFailed
			}
		}
	}

	o.logger.Info("application created", "application", info.Name, "id", info.ID)
	o.metrics.RecordApplicationEvent("created")
	o.recordEvent(ctx, journal.Event{
		Type:        journal.EventApplicationCreated,
		VirtualHost: vhostName,
		Application: info.Name,
		Outcome:     ResultSucceeded.String(),
	})
	return ResultSucceeded
}

// rollbackCreate removes the staged application and tells the modules that
// were already notified, in reverse order, that it is gone.
func (o *Orchestrator) rollbackCreate(ctx context.Context, info ApplicationInfo, notified []Module) {
	o.mu.Lock()
	if vhost, ok := o.vhostByName(info.VHostName); ok {
		delete(vhost.apps, info.ID)
	}
	o.mu.Unlock()

	for i := len(notified) - 1; i >= 0; i-- {
		m := notified[i]
		if router, isRouter := m.(RouterModule); isRouter {
			if err := router.DetachObserver(info); err != nil {
				o.logger.Warn("stream observer detach failed during rollback",
					"application", info.Name, "module", m.Name(), "error", err)
			}
		}
		if err := m.OnApplicationDeleted(ctx, info); err != nil {
			o.logger.Warn("rollback delete notification failed",
				"application", info.Name, "module", m.Name(), "error", err)
		}
	}
	o.metrics.RecordApplicationEvent("create_failed")
}

// DeleteApplication removes the application from its virtual host first, then
// notifies modules best-effort. A notification failure is reported but never
// triggers recreation: once removed, the application stays removed.
func (o *Orchestrator) DeleteApplication(ctx context.Context, info ApplicationInfo) Result {
	o.mu.Lock()
	vhost, ok := o.vhostByName(info.VHostName)
	if !ok {
		o.mu.Unlock()
		return ResultNotExists
	}
	if _, exists := vhost.apps[info.ID]; !exists {
		o.mu.Unlock()
		return ResultNotExists
	}
	delete(vhost.apps, info.ID)
	o.mu.Unlock()

	result := o.notifyApplicationDeleted(ctx, info)

	o.logger.Info("application deleted", "application", info.Name, "result", result.String())
	o.metrics.RecordApplicationEvent("deleted")
	o.recordEvent(ctx, journal.Event{
		Type:        journal.EventApplicationDeleted,
		VirtualHost: info.VHostName,
		Application: info.Name,
		Outcome:     result.String(),
	})
	return result
}

// notifyApplicationDeleted tells every module, in the mirror of the creation
// order, that the application is gone. Failures are surfaced for
// observability only.
func (o *Orchestrator) notifyApplicationDeleted(ctx context.Context, info ApplicationInfo) Result {
	modules := o.modules.notificationSnapshot()
	result := ResultSucceeded
	for i := len(modules) - 1; i >= 0; i-- {
		m := modules[i]
		if router, isRouter := m.(RouterModule); isRouter {
			if err := router.DetachObserver(info); err != nil {
				o.logger.Warn("stream observer detach failed",
					"application", info.Name, "module", m.Name(), "error", err)
			}
		}
		if err := m.OnApplicationDeleted(ctx, info); err != nil {
			o.logger.Error("application delete notification failed",
				"application", info.Name, "module", m.Name(), "error", err)
			o.metrics.RecordModuleFailure(m.Name())
			result = ResultFailed
		}
	}
	return result
}

// GetApplication resolves a combined application name. It returns the
// InvalidApplication sentinel when the virtual host or application is absent.
func (o *Orchestrator) GetApplication(vhostAppName string) ApplicationInfo {
	vhostName, _, ok := ParseVHostAppName(vhostAppName)
	if !ok {
		return InvalidApplication()
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	vhost, ok := o.vhostByName(vhostName)
	if !ok {
		return InvalidApplication()
	}
	app, ok := vhost.appByName(vhostAppName)
	if !ok {
		return InvalidApplication()
	}
	return app
}

// VerifyStreamKey checks a publisher's stream key against the application's
// stored hash. Applications without a key reject every candidate.
func (o *Orchestrator) VerifyStreamKey(vhostAppName, key string) bool {
	app := o.GetApplication(vhostAppName)
	if !app.IsValid() || app.StreamKeyHash == "" {
		return false
	}
	return streamkey.Verify(app.StreamKeyHash, key)
}
