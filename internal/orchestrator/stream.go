package orchestrator

import (
	"context"
	"time"

	"streamgate/internal/journal"
	"streamgate/internal/streamdir"
)

// appBridge is the per-application stream observer handed to the media
// router when an application is created. It funnels pipeline lifecycle
// callbacks back into the orchestrator's bookkeeping.
type appBridge struct {
	orc *Orchestrator
	app ApplicationInfo
}

func (b *appBridge) OnStreamCreated(info StreamInfo) error {
	return b.orc.onStreamCreated(context.Background(), b.app, info)
}

func (b *appBridge) OnStreamDeleted(info StreamInfo) error {
	return b.orc.onStreamDeleted(context.Background(), b.app, info)
}

// OnFrame ignores media payloads. Forwarding frame data is the pipeline's
// concern, not the control plane's.
func (b *appBridge) OnFrame(info StreamInfo, payload []byte) {}

// onStreamCreated records a stream the pipeline reports into the owning
// origin's mapping (when a configured location covers it) and into the
// orchestrator's bookkeeping. A stream already registered by a pull keeps its
// provider reference and is simply marked valid.
func (o *Orchestrator) onStreamCreated(ctx context.Context, app ApplicationInfo, info StreamInfo) error {
	fullName := app.Name + "/" + info.Name

	o.mu.Lock()
	s, known := o.streams[info.ID]
	if !known {
		s = &stream{
			app:       app,
			info:      info,
			fullName:  fullName,
			startedAt: time.Now().UTC(),
		}
		o.streams[info.ID] = s
	}
	s.valid = true

	if vhost, ok := o.vhostByName(app.VHostName); ok {
		location := "/" + app.AppName + "/" + info.Name
		if org := matchOrigin(vhost.origins, location); org != nil {
			org.streams[info.ID] = s
		}
	}
	o.mu.Unlock()

	if err := o.dir.Publish(ctx, streamdir.Entry{
		ID:          info.ID,
		Application: app.Name,
		Name:        info.Name,
		FullName:    fullName,
		StartedAt:   s.startedAt,
	}); err != nil {
		o.logger.Warn("stream directory publish failed", "stream", fullName, "error", err)
	}

	if !known {
		o.metrics.StreamStarted()
	}
	o.logger.Info("stream created", "stream", fullName, "id", info.ID)
	o.recordEvent(ctx, journal.Event{
		Type:        journal.EventStreamCreated,
		VirtualHost: app.VHostName,
		Application: app.Name,
		Stream:      fullName,
		Outcome:     ResultSucceeded.String(),
	})
	return nil
}

// onStreamDeleted drops the stream from every owner mapping and marks it
// invalid.
func (o *Orchestrator) onStreamDeleted(ctx context.Context, app ApplicationInfo, info StreamInfo) error {
	fullName := app.Name + "/" + info.Name

	o.mu.Lock()
	s, known := o.streams[info.ID]
	if known {
		s.valid = false
		delete(o.streams, info.ID)
	}
	if vhost, ok := o.vhostByName(app.VHostName); ok {
		for _, d := range vhost.domains {
			delete(d.streams, info.ID)
		}
		for _, org := range vhost.origins {
			delete(org.streams, info.ID)
		}
	}
	o.mu.Unlock()

	if !known {
		return nil
	}

	if err := o.dir.Remove(ctx, info.ID); err != nil {
		o.logger.Warn("stream directory remove failed", "stream", fullName, "error", err)
	}
	o.metrics.StreamStopped()
	o.logger.Info("stream deleted", "stream", fullName, "id", info.ID)
	o.recordEvent(ctx, journal.Event{
		Type:        journal.EventStreamDeleted,
		VirtualHost: app.VHostName,
		Application: app.Name,
		Stream:      fullName,
		Outcome:     ResultSucceeded.String(),
	})
	return nil
}

// registerPulledStream records a provider-produced stream so reconciliation
// can tear it down when its owner goes away. Called after a successful pull.
func (o *Orchestrator) registerPulledStream(app ApplicationInfo, provider ProviderModule, handle StreamHandle, owner *origin) {
	s := &stream{
		app:       app,
		provider:  provider,
		handle:    handle,
		info:      StreamInfo{ID: handle.ID(), Name: handle.Name()},
		fullName:  app.Name + "/" + handle.Name(),
		startedAt: time.Now().UTC(),
		valid:     true,
	}

	o.mu.Lock()
	o.streams[handle.ID()] = s
	if owner != nil {
		owner.streams[handle.ID()] = s
	}
	o.mu.Unlock()
}

// matchOrigin returns the first origin whose location prefix covers the
// playback location, in configuration order.
func matchOrigin(origins []*origin, location string) *origin {
	for _, org := range origins {
		if org.location != "" && len(location) >= len(org.location) && location[:len(org.location)] == org.location {
			return org
		}
	}
	return nil
}
