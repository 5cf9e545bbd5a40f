package orchestrator

import (
	"context"
	"net/url"
	"strings"

	"streamgate/internal/journal"
)

// RequestPullStream resolves a stream pull to a provider module and delegates
// the fetch. When source is a URL its scheme selects the provider directly;
// when source is empty the owning virtual host's origin list is scanned for a
// location covering the requested stream and the pull URL list is synthesized
// from that origin's templates. If neither path resolves a provider the call
// returns false with no side effects.
//
// The contract ends at "delegated": the provider's own I/O is not awaited
// beyond its PullStream call.
func (o *Orchestrator) RequestPullStream(ctx context.Context, vhostAppName, streamName, source string, offset int64) bool {
	if source != "" {
		return o.requestPullStreamForURL(ctx, vhostAppName, streamName, source, offset)
	}
	return o.requestPullStreamForLocation(ctx, vhostAppName, streamName, offset)
}

func (o *Orchestrator) requestPullStreamForURL(ctx context.Context, vhostAppName, streamName, source string, offset int64) bool {
	parsed, err := url.Parse(source)
	if err != nil || parsed.Scheme == "" {
		o.logger.Error("pull request has no usable scheme", "url", source, "stream", streamName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	provider, ok := o.modules.ProviderForScheme(parsed.Scheme)
	if !ok {
		o.logger.Error("no provider registered for scheme", "scheme", parsed.Scheme, "stream", streamName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	app := o.GetApplication(vhostAppName)
	if !app.IsValid() {
		o.logger.Error("pull request for unknown application", "application", vhostAppName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	return o.delegatePull(ctx, app, provider, streamName, []string{source}, offset, nil)
}

func (o *Orchestrator) requestPullStreamForLocation(ctx context.Context, vhostAppName, streamName string, offset int64) bool {
	app := o.GetApplication(vhostAppName)
	if !app.IsValid() {
		o.logger.Error("pull request for unknown application", "application", vhostAppName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	urls, owner, ok := o.resolveLocation(vhostAppName, streamName)
	if !ok {
		o.logger.Error("no origin matches pull location",
			"application", vhostAppName, "stream", streamName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	provider, found := o.modules.ProviderForScheme(owner.scheme)
	if !found {
		o.logger.Error("no provider registered for origin scheme",
			"scheme", owner.scheme, "application", vhostAppName)
		o.metrics.RecordPull("unresolved")
		return false
	}

	return o.delegatePull(ctx, app, provider, streamName, urls, offset, owner)
}

func (o *Orchestrator) delegatePull(ctx context.Context, app ApplicationInfo, provider ProviderModule, streamName string, urls []string, offset int64, owner *origin) bool {
	handle, err := provider.PullStream(ctx, app, streamName, urls, offset)
	if err != nil {
		o.logger.Error("provider pull failed",
			"provider", provider.Name(), "stream", streamName, "error", err)
		o.metrics.RecordPull("failed")
		o.metrics.RecordModuleFailure(provider.Name())
		o.recordEvent(ctx, journal.Event{
			Type:        journal.EventPullRequested,
			VirtualHost: app.VHostName,
			Application: app.Name,
			Stream:      app.Name + "/" + streamName,
			Outcome:     ResultFailed.String(),
			Detail:      err.Error(),
		})
		return false
	}

	o.registerPulledStream(app, provider, handle, owner)
	o.metrics.RecordPull("delegated")
	o.logger.Info("pull stream delegated",
		"provider", provider.Name(), "application", app.Name, "stream", streamName)
	o.recordEvent(ctx, journal.Event{
		Type:        journal.EventPullRequested,
		VirtualHost: app.VHostName,
		Application: app.Name,
		Stream:      app.Name + "/" + streamName,
		Outcome:     ResultSucceeded.String(),
		Detail:      "provider " + provider.Name(),
	})
	return true
}

// GetURLListForLocation resolves the (application, stream) pair to the pull
// URL list synthesized from the first origin whose location prefix covers the
// stream's playback location.
func (o *Orchestrator) GetURLListForLocation(vhostAppName, streamName string) ([]string, bool) {
	urls, _, ok := o.resolveLocation(vhostAppName, streamName)
	return urls, ok
}

// resolveLocation finds the configured origin for the requested stream. The
// origin pointer stays valid only for bookkeeping under the orchestrator's
// own lock; callers outside this package receive the URL list only.
func (o *Orchestrator) resolveLocation(vhostAppName, streamName string) ([]string, *origin, bool) {
	vhostName, appName, ok := ParseVHostAppName(vhostAppName)
	if !ok {
		return nil, nil, false
	}
	streamName = strings.TrimSpace(streamName)
	if streamName == "" {
		return nil, nil, false
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	vhost, found := o.vhostByName(vhostName)
	if !found {
		return nil, nil, false
	}

	location := "/" + appName + "/" + streamName
	org := matchOrigin(vhost.origins, location)
	if org == nil {
		return nil, nil, false
	}
	return org.urlsForLocation(location), org, true
}
