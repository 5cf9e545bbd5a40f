package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// OriginConfig is one origin rule from the configuration snapshot: a playback
// location prefix mapped to an upstream scheme and URL templates.
type OriginConfig struct {
	Location string
	Scheme   string
	URLs     []string
}

func (c OriginConfig) equal(other OriginConfig) bool {
	if c.Location != other.Location || c.Scheme != other.Scheme || len(c.URLs) != len(other.URLs) {
		return false
	}
	for i, u := range c.URLs {
		if u != other.URLs[i] {
			return false
		}
	}
	return true
}

// ApplicationConfig describes an application to create inside a virtual host.
type ApplicationConfig struct {
	Name string
	Type string

	// StreamKeyHash is the encoded hash of the application's stream key,
	// provisioned by the caller. Empty means no key is required.
	StreamKeyHash string
}

// HostConfig is one host record from the configuration snapshot.
type HostConfig struct {
	Name         string
	Domains      []string
	Origins      []OriginConfig
	Applications []ApplicationConfig
}

// CompileDomainPattern turns a wildcard hostname pattern into an anchored
// matcher: regex metacharacters are escaped, '*' matches any sequence, '?'
// matches any single character. Patterns are matched case-insensitively.
func CompileDomainPattern(pattern string) (*regexp.Regexp, error) {
	trimmed := strings.ToLower(strings.TrimSpace(pattern))
	if trimmed == "" {
		return nil, fmt.Errorf("compile domain pattern: empty pattern")
	}

	escaped := regexp.QuoteMeta(trimmed)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")

	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil, fmt.Errorf("compile domain pattern %q: %w", pattern, err)
	}
	return re, nil
}

// domain is a wildcard hostname pattern owned by a virtual host, plus the
// streams produced through it.
type domain struct {
	pattern string
	matcher *regexp.Regexp // nil means the pattern never matches
	state   ItemState
	streams map[uint32]*stream
}

func newDomain(pattern string) (*domain, error) {
	matcher, err := CompileDomainPattern(pattern)
	if err != nil {
		return nil, err
	}
	return &domain{
		pattern: pattern,
		matcher: matcher,
		state:   ItemStateNew,
		streams: make(map[uint32]*stream),
	}, nil
}

func (d *domain) matches(host string) bool {
	if d.matcher == nil {
		return false
	}
	return d.matcher.MatchString(strings.ToLower(strings.TrimSpace(host)))
}

// origin is one upstream pull rule owned by a virtual host. Its URL list is
// derived from the configuration and regenerated whenever the configuration
// changes.
type origin struct {
	location string
	scheme   string
	urls     []string
	cfg      OriginConfig
	state    ItemState
	streams  map[uint32]*stream
}

func newOrigin(cfg OriginConfig) *origin {
	o := &origin{
		location: cfg.Location,
		state:    ItemStateNew,
		streams:  make(map[uint32]*stream),
	}
	o.applyConfig(cfg)
	return o
}

// applyConfig refreshes the derived fields from the configuration record.
func (o *origin) applyConfig(cfg OriginConfig) {
	o.cfg = cfg
	o.scheme = cfg.Scheme
	o.urls = make([]string, 0, len(cfg.URLs))
	for _, template := range cfg.URLs {
		o.urls = append(o.urls, cfg.Scheme+"://"+template)
	}
}

// urlsForLocation synthesizes the pull URL list for a playback location that
// starts with this origin's location prefix. The remainder is appended to
// each URL template verbatim, collapsing a doubled slash at the seam.
func (o *origin) urlsForLocation(location string) []string {
	remainder := strings.TrimPrefix(location, o.location)
	urls := make([]string, 0, len(o.urls))
	for _, u := range o.urls {
		if strings.HasPrefix(remainder, "/") {
			u = strings.TrimSuffix(u, "/")
		}
		urls = append(urls, u+remainder)
	}
	return urls
}

// stream is the control-plane record of a live media flow: who owns it, which
// provider produced it, and whether it is still valid.
type stream struct {
	app       ApplicationInfo
	provider  ProviderModule
	handle    StreamHandle
	info      StreamInfo
	fullName  string
	startedAt time.Time
	valid     bool
}

// virtualHost is the authoritative topology for one named routing domain.
type virtualHost struct {
	name       string
	generation uint64
	state      ItemState
	domains    []*domain
	origins    []*origin
	apps       map[uint32]ApplicationInfo
}

func newVirtualHost(name string) *virtualHost {
	return &virtualHost{
		name:  name,
		state: ItemStateNew,
		apps:  make(map[uint32]ApplicationInfo),
	}
}

// markAllAs unconditionally tags the host and every domain and origin.
func (v *virtualHost) markAllAs(state ItemState) {
	v.state = state
	for _, d := range v.domains {
		d.state = state
	}
	for _, o := range v.origins {
		o.state = state
	}
}

// appByName finds an application by its combined name.
func (v *virtualHost) appByName(vhostAppName string) (ApplicationInfo, bool) {
	for _, app := range v.apps {
		if app.Name == vhostAppName {
			return app, true
		}
	}
	return ApplicationInfo{}, false
}
