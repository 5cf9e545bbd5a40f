package orchestrator

import (
	"sort"
	"time"
)

// DomainStatus is a read-only snapshot of one domain rule.
type DomainStatus struct {
	Pattern string `json:"pattern"`
	Valid   bool   `json:"valid"`
	State   string `json:"state"`
}

// OriginStatus is a read-only snapshot of one origin rule.
type OriginStatus struct {
	Location string   `json:"location"`
	Scheme   string   `json:"scheme"`
	URLs     []string `json:"urls"`
	State    string   `json:"state"`
	Streams  int      `json:"streams"`
}

// VirtualHostStatus is a read-only snapshot of one virtual host's topology.
type VirtualHostStatus struct {
	Name         string            `json:"name"`
	State        string            `json:"state"`
	Generation   uint64            `json:"generation"`
	Domains      []DomainStatus    `json:"domains"`
	Origins      []OriginStatus    `json:"origins"`
	Applications []ApplicationInfo `json:"applications"`
}

// StreamStatus is a read-only snapshot of one live stream.
type StreamStatus struct {
	ID          uint32    `json:"id"`
	FullName    string    `json:"fullName"`
	Application string    `json:"application"`
	Provider    string    `json:"provider,omitempty"`
	Valid       bool      `json:"valid"`
	StartedAt   time.Time `json:"startedAt"`
}

// VirtualHosts returns a consistent snapshot of every virtual host in
// registration order.
func (o *Orchestrator) VirtualHosts() []VirtualHostStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	statuses := make([]VirtualHostStatus, 0, len(o.vhostList))
	for _, vhost := range o.vhostList {
		statuses = append(statuses, snapshotVirtualHost(vhost))
	}
	return statuses
}

// VirtualHost returns a snapshot of the named virtual host.
func (o *Orchestrator) VirtualHost(name string) (VirtualHostStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	vhost, ok := o.vhostByName(name)
	if !ok {
		return VirtualHostStatus{}, false
	}
	return snapshotVirtualHost(vhost), true
}

// ActiveStreams returns a snapshot of the streams the bridge currently
// tracks, ordered by id.
func (o *Orchestrator) ActiveStreams() []StreamStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	statuses := make([]StreamStatus, 0, len(o.streams))
	for id, s := range o.streams {
		status := StreamStatus{
			ID:          id,
			FullName:    s.fullName,
			Application: s.app.Name,
			Valid:       s.valid,
			StartedAt:   s.startedAt,
		}
		if s.provider != nil {
			status.Provider = s.provider.Name()
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

func snapshotVirtualHost(vhost *virtualHost) VirtualHostStatus {
	status := VirtualHostStatus{
		Name:       vhost.name,
		State:      vhost.state.String(),
		Generation: vhost.generation,
	}
	for _, d := range vhost.domains {
		status.Domains = append(status.Domains, DomainStatus{
			Pattern: d.pattern,
			Valid:   d.matcher != nil,
			State:   d.state.String(),
		})
	}
	for _, org := range vhost.origins {
		urls := make([]string, len(org.urls))
		copy(urls, org.urls)
		status.Origins = append(status.Origins, OriginStatus{
			Location: org.location,
			Scheme:   org.scheme,
			URLs:     urls,
			State:    org.state.String(),
			Streams:  len(org.streams),
		})
	}
	apps := make([]ApplicationInfo, 0, len(vhost.apps))
	for _, app := range vhost.apps {
		app.StreamKeyHash = ""
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	status.Applications = apps
	return status
}
