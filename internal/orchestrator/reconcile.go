package orchestrator

import (
	"context"
	"fmt"

	"streamgate/internal/journal"
)

// hostPlan is the staged outcome of diffing one virtual host against its new
// configuration. Commit verifies the recorded per-item states before mutating
// anything, so a state that moved between diff and commit aborts the whole
// subtree.
type hostPlan struct {
	hostState      ItemState
	domainStates   []ItemState
	originStates   []ItemState
	newDomains     []*domain
	newOrigins     []*origin
	changedOrigins map[int]OriginConfig
	changed        bool
	err            error
}

// ApplyOriginMap reconciles the configuration snapshot against the live
// topology. Each host's subtree is diffed and committed atomically: readers
// never observe a mixture of old and new topology for the same virtual host.
// Hosts absent from the snapshot are deleted along with their applications.
//
// Applying an identical snapshot twice leaves every item NotChanged and
// causes zero application churn.
func (o *Orchestrator) ApplyOriginMap(ctx context.Context, hosts []HostConfig) Result {
	overall := ResultSucceeded

	var tornDown []*stream
	var deletedApps []ApplicationInfo
	var events []journal.Event

	o.mu.Lock()

	for _, vhost := range o.vhostList {
		vhost.markAllAs(ItemStateNeedToCheck)
	}

	for _, cfg := range hosts {
		existing, ok := o.vhostMap[cfg.Name]
		if !ok {
			staged, err := buildVirtualHost(cfg)
			if err != nil {
				o.logger.Error("virtual host rejected", "vhost", cfg.Name, "error", err)
				overall = ResultFailed
				events = append(events, reconcileEvent(cfg.Name, ResultFailed, err.Error()))
				continue
			}
			if !staged.markAllAsConditional(ItemStateNew, ItemStateApplied) {
				overall = ResultFailed
				events = append(events, reconcileEvent(cfg.Name, ResultFailed, "staged host state mismatch"))
				continue
			}
			staged.generation = 1
			o.vhostMap[staged.name] = staged
			o.vhostList = append(o.vhostList, staged)
			events = append(events, reconcileEvent(cfg.Name, ResultSucceeded, "created"))
			continue
		}

		plan := diffVirtualHost(existing, cfg)
		if plan.err != nil {
			existing.markAllAs(ItemStateApplied)
			o.logger.Error("virtual host reconciliation rejected", "vhost", cfg.Name, "error", plan.err)
			overall = ResultFailed
			events = append(events, reconcileEvent(cfg.Name, ResultFailed, plan.err.Error()))
			continue
		}

		if o.beforeCommit != nil {
			o.beforeCommit(existing)
		}

		torn, ok := o.commitVirtualHost(existing, plan)
		if !ok {
			overall = ResultFailed
			events = append(events, reconcileEvent(cfg.Name, ResultFailed, "subtree state mismatch, commit aborted"))
			continue
		}
		tornDown = append(tornDown, torn...)
		detail := "not_changed"
		if plan.changed {
			detail = "changed"
		}
		events = append(events, reconcileEvent(cfg.Name, ResultSucceeded, detail))
	}

	// Hosts still marked NeedToCheck are absent from the new snapshot and go
	// away entirely, applications included.
	survivors := o.vhostList[:0]
	for _, vhost := range o.vhostList {
		if vhost.state != ItemStateNeedToCheck {
			survivors = append(survivors, vhost)
			continue
		}
		delete(o.vhostMap, vhost.name)
		for _, app := range vhost.apps {
			deletedApps = append(deletedApps, app)
		}
		for _, d := range vhost.domains {
			tornDown = append(tornDown, o.detachStreamsLocked(d.streams)...)
		}
		for _, org := range vhost.origins {
			tornDown = append(tornDown, o.detachStreamsLocked(org.streams)...)
		}
		events = append(events, reconcileEvent(vhost.name, ResultSucceeded, "deleted"))
	}
	o.vhostList = survivors

	o.mu.Unlock()

	for _, app := range deletedApps {
		o.notifyApplicationDeleted(ctx, app)
		o.metrics.RecordApplicationEvent("deleted")
	}
	o.teardownStreams(ctx, tornDown)

	for _, evt := range events {
		o.recordEvent(ctx, evt)
	}
	o.metrics.RecordReconcile(overall.String())
	o.logger.Info("origin map applied", "hosts", len(hosts), "result", overall.String())
	return overall
}

func reconcileEvent(vhostName string, outcome Result, detail string) journal.Event {
	return journal.Event{
		Type:        journal.EventReconcile,
		VirtualHost: vhostName,
		Outcome:     outcome.String(),
		Detail:      detail,
	}
}

// buildVirtualHost stages a brand-new host from its configuration. Every item
// starts in state New; a domain pattern that fails to compile rejects the
// whole host.
func buildVirtualHost(cfg HostConfig) (*virtualHost, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("virtual host name is required")
	}
	vhost := newVirtualHost(cfg.Name)
	for _, pattern := range cfg.Domains {
		d, err := newDomain(pattern)
		if err != nil {
			return nil, err
		}
		vhost.domains = append(vhost.domains, d)
	}
	for _, originCfg := range cfg.Origins {
		vhost.origins = append(vhost.origins, newOrigin(originCfg))
	}
	return vhost, nil
}

// diffVirtualHost classifies every existing domain and origin against the new
// configuration and stages additions. It mutates item states in place (the
// diff pass) and records them in the returned plan (the commit expectation).
func diffVirtualHost(vhost *virtualHost, cfg HostConfig) hostPlan {
	plan := hostPlan{changedOrigins: make(map[int]OriginConfig)}

	// Domains: identity is the pattern, so an existing domain is either kept
	// verbatim or deleted; there is no Changed state for a single domain.
	existingPatterns := make(map[string]struct{}, len(vhost.domains))
	for _, d := range vhost.domains {
		existingPatterns[d.pattern] = struct{}{}
		if containsString(cfg.Domains, d.pattern) {
			d.state = ItemStateNotChanged
		} else {
			d.state = ItemStateDelete
			plan.changed = true
		}
	}
	for _, pattern := range cfg.Domains {
		if _, ok := existingPatterns[pattern]; ok {
			continue
		}
		d, err := newDomain(pattern)
		if err != nil {
			plan.err = err
			return plan
		}
		plan.newDomains = append(plan.newDomains, d)
		plan.changed = true
	}

	// Origins: identity is the location prefix. Same location with different
	// scheme or URL templates keeps its identity but refreshes derived
	// fields at commit.
	existingLocations := make(map[string]struct{}, len(vhost.origins))
	for i, org := range vhost.origins {
		existingLocations[org.location] = struct{}{}
		newCfg, found := findOriginConfig(cfg.Origins, org.location)
		switch {
		case !found:
			org.state = ItemStateDelete
			plan.changed = true
		case org.cfg.equal(newCfg):
			org.state = ItemStateNotChanged
		default:
			org.state = ItemStateChanged
			plan.changedOrigins[i] = newCfg
			plan.changed = true
		}
	}
	for _, originCfg := range cfg.Origins {
		if _, ok := existingLocations[originCfg.Location]; ok {
			continue
		}
		plan.newOrigins = append(plan.newOrigins, newOrigin(originCfg))
		plan.changed = true
	}

	if plan.changed {
		vhost.state = ItemStateChanged
	} else {
		vhost.state = ItemStateNotChanged
	}
	plan.hostState = vhost.state

	plan.domainStates = make([]ItemState, len(vhost.domains))
	for i, d := range vhost.domains {
		plan.domainStates[i] = d.state
	}
	plan.originStates = make([]ItemState, len(vhost.origins))
	for i, org := range vhost.origins {
		plan.originStates[i] = org.state
	}
	return plan
}

// commitVirtualHost flips the whole subtree from the states the diff pass
// recorded to Applied. If any node's current state differs from the plan's
// expectation the transition aborts, the subtree is restored to Applied with
// its prior topology intact, and no part of the update becomes visible.
// Returns the streams whose owners were deleted (or whose origin changed
// scheme) for teardown outside the lock.
func (o *Orchestrator) commitVirtualHost(vhost *virtualHost, plan hostPlan) ([]*stream, bool) {
	mismatch := vhost.state != plan.hostState
	if !mismatch {
		for i, d := range vhost.domains {
			if d.state != plan.domainStates[i] {
				mismatch = true
				break
			}
		}
	}
	if !mismatch {
		for i, org := range vhost.origins {
			if org.state != plan.originStates[i] {
				mismatch = true
				break
			}
		}
	}
	if mismatch {
		vhost.markAllAs(ItemStateApplied)
		o.logger.Warn("virtual host commit aborted", "vhost", vhost.name)
		return nil, false
	}

	var torn []*stream

	domains := vhost.domains[:0]
	for _, d := range vhost.domains {
		if d.state == ItemStateDelete {
			torn = append(torn, o.detachStreamsLocked(d.streams)...)
			continue
		}
		domains = append(domains, d)
	}
	vhost.domains = append(domains, plan.newDomains...)

	origins := vhost.origins[:0]
	for i, org := range vhost.origins {
		switch org.state {
		case ItemStateDelete:
			torn = append(torn, o.detachStreamsLocked(org.streams)...)
			continue
		case ItemStateChanged:
			newCfg := plan.changedOrigins[i]
			// Streams survive an origin change unless the upstream scheme
			// changed, in which case the provider no longer matches and the
			// streams are torn down.
			if org.scheme != newCfg.Scheme {
				torn = append(torn, o.detachStreamsLocked(org.streams)...)
			}
			org.applyConfig(newCfg)
		}
		origins = append(origins, org)
	}
	vhost.origins = append(origins, plan.newOrigins...)

	vhost.markAllAs(ItemStateApplied)
	if plan.changed {
		vhost.generation++
	}
	return torn, true
}

// detachStreamsLocked removes the streams from the orchestrator's bookkeeping
// and empties the owner's map, returning them for provider teardown outside
// the lock. Callers must hold mu.
func (o *Orchestrator) detachStreamsLocked(owned map[uint32]*stream) []*stream {
	if len(owned) == 0 {
		return nil
	}
	detached := make([]*stream, 0, len(owned))
	for id, s := range owned {
		s.valid = false
		delete(o.streams, id)
		delete(owned, id)
		detached = append(detached, s)
	}
	return detached
}

// teardownStreams asks each stream's provider to stop it, best-effort, and
// clears the directory entries. Never called with the topology lock held.
func (o *Orchestrator) teardownStreams(ctx context.Context, streams []*stream) {
	for _, s := range streams {
		if s.provider != nil && s.handle != nil {
			if err := s.provider.StopStream(ctx, s.handle); err != nil {
				o.logger.Warn("stream teardown failed",
					"stream", s.fullName, "provider", s.provider.Name(), "error", err)
			}
		}
		if err := o.dir.Remove(ctx, s.info.ID); err != nil {
			o.logger.Warn("stream directory remove failed", "stream", s.fullName, "error", err)
		}
		o.metrics.StreamStopped()
		o.recordEvent(ctx, journal.Event{
			Type:        journal.EventStreamDeleted,
			Application: s.app.Name,
			Stream:      s.fullName,
			Outcome:     ResultSucceeded.String(),
			Detail:      "owner removed during reconciliation",
		})
	}
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func findOriginConfig(origins []OriginConfig, location string) (OriginConfig, bool) {
	for _, cfg := range origins {
		if cfg.Location == location {
			return cfg, true
		}
	}
	return OriginConfig{}, false
}

// markAllAsConditional flips the host and every domain and origin from the
// expected state to the next one. The check runs over the whole subtree
// before any state is written, so a mismatch leaves everything untouched.
func (v *virtualHost) markAllAsConditional(expected, next ItemState) bool {
	if v.state != expected {
		return false
	}
	for _, d := range v.domains {
		if d.state != expected {
			return false
		}
	}
	for _, o := range v.origins {
		if o.state != expected {
			return false
		}
	}
	v.markAllAs(next)
	return true
}
