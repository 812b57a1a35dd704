// Package scenario loads netsimctl scenario configuration using koanf/v2.
//
// A scenario file declares a topology (nodes, directed links) and a
// run (duration, optional scheduled drops, congestion variant). This
// keeps file loading out of the core simulator package entirely: it
// never reads a file itself.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds a complete scenario: the topology to build and the run
// parameters to drive it with.
type Config struct {
	Run     RunConfig     `koanf:"run"`
	Nodes   []NodeConfig  `koanf:"nodes"`
	Links   []LinkConfig  `koanf:"links"`
	Drops   []DropConfig  `koanf:"drops"`
	Sends   []SendConfig  `koanf:"sends"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// RunConfig holds top-level run parameters.
type RunConfig struct {
	// DurationSeconds bounds the scenario's virtual run time; 0 means
	// run until the event queue drains on its own.
	DurationSeconds float64 `koanf:"duration_seconds"`

	// Congestion selects the congestion-control variant applied to any
	// TCP connections the scenario builds: "none", "tahoe", or "reno".
	Congestion string `koanf:"congestion"`

	// Routing selects how forwarding entries are installed: "static"
	// (BFS shortest path per declared send, installed once up front)
	// or "dvr" (every node runs a distance-vector [netsim.Router] and
	// routes converge as beacons propagate).
	Routing string `koanf:"routing"`
}

// SendConfig declares a stream of packets to originate during the run.
type SendConfig struct {
	From            string  `koanf:"from"`
	To              string  `koanf:"to"`
	Protocol        string  `koanf:"protocol"`
	LengthBytes     int     `koanf:"length_bytes"`
	Count           int     `koanf:"count"`
	DelaySeconds    float64 `koanf:"delay_seconds"`
}

// NodeConfig declares one node by hostname.
type NodeConfig struct {
	Hostname string `koanf:"hostname"`
}

// LinkConfig declares one directed link.
type LinkConfig struct {
	Address     int     `koanf:"address"`
	From        string  `koanf:"from"`
	To          string  `koanf:"to"`
	BandwidthBps float64 `koanf:"bandwidth_bps"`
	PropagationS float64 `koanf:"propagation_s"`
	LossRate    *float64 `koanf:"loss_rate"`
	QueueLimit  *int     `koanf:"queue_limit"`
}

// DropConfig declares a scripted sequence-range drop.
type DropConfig struct {
	Node      string `koanf:"node"`
	SeqStart  int64  `koanf:"seq_start"`
	SeqEnd    int64  `koanf:"seq_end"`
	Times     int    `koanf:"times"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Congestion: "none",
			Routing:    "static",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
	}
}

// envPrefix is the environment variable prefix for netsimctl
// configuration overrides, e.g. NETSIM_RUN_DURATION_SECONDS.
const envPrefix = "NETSIM_"

// Load reads a scenario YAML file at path, overlays NETSIM_-prefixed
// environment variable overrides, and merges on top of DefaultConfig().
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := k.Load(structProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("load scenario defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load scenario from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal scenario: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate scenario from %s: %w", path, err)
	}
	return cfg, nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

func structProvider(cfg *Config) koanf.Provider {
	return confmapProvider{
		"run": map[string]any{
			"congestion": cfg.Run.Congestion,
			"routing":    cfg.Run.Routing,
		},
		"metrics": map[string]any{
			"addr": cfg.Metrics.Addr,
			"path": cfg.Metrics.Path,
		},
	}
}

// confmapProvider is a trivial koanf.Provider over a nested key map.
// Using a Provider here, rather than calling k.Set directly, keeps
// Load's three layers (defaults, file, env) uniform.
type confmapProvider map[string]any

func (c confmapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("scenario: confmapProvider does not support ReadBytes")
}

func (c confmapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, nil
}

// ErrUnknownCongestion indicates an unrecognized run.congestion value.
var ErrUnknownCongestion = errors.New("scenario: unknown congestion variant")

// ValidCongestionVariants lists the recognized run.congestion strings.
var ValidCongestionVariants = map[string]bool{
	"none":  true,
	"tahoe": true,
	"reno":  true,
}

// ErrUnknownRouting indicates an unrecognized run.routing value.
var ErrUnknownRouting = errors.New("scenario: unknown routing mode")

// ValidRoutingModes lists the recognized run.routing strings.
var ValidRoutingModes = map[string]bool{
	"static": true,
	"dvr":    true,
}

// Validate checks cfg for logical errors.
func Validate(cfg *Config) error {
	if cfg.Run.Congestion != "" && !ValidCongestionVariants[cfg.Run.Congestion] {
		return fmt.Errorf("run.congestion %q: %w", cfg.Run.Congestion, ErrUnknownCongestion)
	}
	if cfg.Run.Routing != "" && !ValidRoutingModes[cfg.Run.Routing] {
		return fmt.Errorf("run.routing %q: %w", cfg.Run.Routing, ErrUnknownRouting)
	}
	seen := make(map[int]bool, len(cfg.Links))
	for _, l := range cfg.Links {
		if seen[l.Address] {
			return fmt.Errorf("link address %d: %w", l.Address, ErrDuplicateLinkAddress)
		}
		seen[l.Address] = true
	}
	return nil
}

// ErrDuplicateLinkAddress indicates two links in a scenario share an
// address.
var ErrDuplicateLinkAddress = errors.New("scenario: duplicate link address")
