package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"streamgate/internal/orchestrator"
	"streamgate/internal/streamkey"
)

// OriginMap is the on-disk configuration snapshot describing virtual hosts,
// their domains, origin rules, and applications.
type OriginMap struct {
	VirtualHosts []VirtualHostDoc `yaml:"virtualHosts"`
}

// VirtualHostDoc is one virtual host entry in the origin map.
type VirtualHostDoc struct {
	Name         string           `yaml:"name"`
	Domains      []string         `yaml:"domains"`
	Origins      []OriginDoc      `yaml:"origins"`
	Applications []ApplicationDoc `yaml:"applications"`
}

// OriginDoc maps a playback location prefix to upstream URLs.
type OriginDoc struct {
	Location string   `yaml:"location"`
	Scheme   string   `yaml:"scheme"`
	URLs     []string `yaml:"urls"`
}

// ApplicationDoc declares an application to provision inside a host. StreamKey
// carries a plaintext key to be hashed at load time; StreamKeyHash carries an
// already-encoded hash. At most one of the two may be set.
type ApplicationDoc struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	StreamKey     string `yaml:"streamKey"`
	StreamKeyHash string `yaml:"streamKeyHash"`
}

// LoadOriginMap reads and validates the origin map at path and converts it
// into host configurations ready for reconciliation. Plaintext stream keys
// are hashed; the plaintext never leaves this function.
func LoadOriginMap(path string) ([]orchestrator.HostConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read origin map: %w", err)
	}
	return ParseOriginMap(raw)
}

// ParseOriginMap parses and validates raw YAML origin-map content.
func ParseOriginMap(raw []byte) ([]orchestrator.HostConfig, error) {
	var doc OriginMap
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse origin map: %w", err)
	}

	hosts := make([]orchestrator.HostConfig, 0, len(doc.VirtualHosts))
	seenHosts := make(map[string]struct{}, len(doc.VirtualHosts))
	for i, hostDoc := range doc.VirtualHosts {
		host, err := convertHost(hostDoc)
		if err != nil {
			return nil, fmt.Errorf("virtual host %d: %w", i, err)
		}
		if _, dup := seenHosts[host.Name]; dup {
			return nil, fmt.Errorf("virtual host %q declared twice", host.Name)
		}
		seenHosts[host.Name] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

func convertHost(doc VirtualHostDoc) (orchestrator.HostConfig, error) {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return orchestrator.HostConfig{}, fmt.Errorf("name is required")
	}

	host := orchestrator.HostConfig{
		Name:    name,
		Domains: make([]string, 0, len(doc.Domains)),
	}

	seenDomains := make(map[string]struct{}, len(doc.Domains))
	for _, pattern := range doc.Domains {
		trimmed := strings.ToLower(strings.TrimSpace(pattern))
		if trimmed == "" {
			return orchestrator.HostConfig{}, fmt.Errorf("empty domain pattern")
		}
		if _, err := orchestrator.CompileDomainPattern(trimmed); err != nil {
			return orchestrator.HostConfig{}, err
		}
		if _, dup := seenDomains[trimmed]; dup {
			return orchestrator.HostConfig{}, fmt.Errorf("domain %q declared twice", trimmed)
		}
		seenDomains[trimmed] = struct{}{}
		host.Domains = append(host.Domains, trimmed)
	}

	seenLocations := make(map[string]struct{}, len(doc.Origins))
	for _, originDoc := range doc.Origins {
		origin, err := convertOrigin(originDoc)
		if err != nil {
			return orchestrator.HostConfig{}, err
		}
		if _, dup := seenLocations[origin.Location]; dup {
			return orchestrator.HostConfig{}, fmt.Errorf("origin location %q declared twice", origin.Location)
		}
		seenLocations[origin.Location] = struct{}{}
		host.Origins = append(host.Origins, origin)
	}

	seenApps := make(map[string]struct{}, len(doc.Applications))
	for _, appDoc := range doc.Applications {
		app, err := convertApplication(appDoc)
		if err != nil {
			return orchestrator.HostConfig{}, err
		}
		if _, dup := seenApps[app.Name]; dup {
			return orchestrator.HostConfig{}, fmt.Errorf("application %q declared twice", app.Name)
		}
		seenApps[app.Name] = struct{}{}
		host.Applications = append(host.Applications, app)
	}

	return host, nil
}

func convertOrigin(doc OriginDoc) (orchestrator.OriginConfig, error) {
	location := strings.TrimSpace(doc.Location)
	if location == "" || !strings.HasPrefix(location, "/") {
		return orchestrator.OriginConfig{}, fmt.Errorf("origin location %q must start with /", doc.Location)
	}
	scheme := strings.ToLower(strings.TrimSpace(doc.Scheme))
	if scheme == "" {
		return orchestrator.OriginConfig{}, fmt.Errorf("origin %s: scheme is required", location)
	}
	if len(doc.URLs) == 0 {
		return orchestrator.OriginConfig{}, fmt.Errorf("origin %s: at least one url is required", location)
	}
	urls := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		trimmed := strings.TrimSpace(u)
		if trimmed == "" {
			return orchestrator.OriginConfig{}, fmt.Errorf("origin %s: empty url", location)
		}
		if strings.Contains(trimmed, "://") {
			return orchestrator.OriginConfig{}, fmt.Errorf("origin %s: url %q must not carry a scheme", location, trimmed)
		}
		urls = append(urls, trimmed)
	}
	return orchestrator.OriginConfig{Location: location, Scheme: scheme, URLs: urls}, nil
}

func convertApplication(doc ApplicationDoc) (orchestrator.ApplicationConfig, error) {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return orchestrator.ApplicationConfig{}, fmt.Errorf("application name is required")
	}
	appType := strings.ToLower(strings.TrimSpace(doc.Type))
	if appType == "" {
		appType = "live"
	}

	plaintext := strings.TrimSpace(doc.StreamKey)
	hash := strings.TrimSpace(doc.StreamKeyHash)
	if plaintext != "" && hash != "" {
		return orchestrator.ApplicationConfig{}, fmt.Errorf("application %s: streamKey and streamKeyHash are mutually exclusive", name)
	}
	if plaintext != "" {
		hashed, err := streamkey.Hash(plaintext)
		if err != nil {
			return orchestrator.ApplicationConfig{}, fmt.Errorf("application %s: %w", name, err)
		}
		hash = hashed
	}

	return orchestrator.ApplicationConfig{Name: name, Type: appType, StreamKeyHash: hash}, nil
}
