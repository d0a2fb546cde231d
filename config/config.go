// Package config describes how a loader is bound to a backend implementation
// and carries the backend-specific settings to it.
//
// A file names one loader per cache:
//
//	caches:
//	  users:
//	    backend: redis
//	    codec: msgpack
//	    max_in_flight: 64
//	    drain_timeout: 30s
//	    near_cache:
//	      max_cost: 10000
//	      ttl: 1m
//	    settings:
//	      addrs: ["127.0.0.1:6379"]
//	      prefix: "users:"
//
// The same shape is accepted as TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoBackend        = errors.New("config: backend is required")
	ErrNegativeInFlight = errors.New("config: max_in_flight must be >= 0")
	ErrNegativeDrain    = errors.New("config: drain_timeout must be >= 0")
	ErrUnknownFormat    = errors.New("config: unknown file format")
)

// Section is a backend-specific block decoded lazily by the backend that
// owns it.
type Section interface {
	Decode(v any) error
}

// NearCache configures the in-process read cache placed in front of a backend.
type NearCache struct {
	NumCounters int64         `yaml:"num_counters" toml:"num_counters"`
	MaxCost     int64         `yaml:"max_cost" toml:"max_cost"`
	BufferItems int64         `yaml:"buffer_items" toml:"buffer_items"`
	TTL         time.Duration `yaml:"ttl" toml:"ttl"`
}

// Loader is the configuration of one cache loader.
type Loader struct {
	Backend      string        `yaml:"backend" toml:"backend"`
	Codec        string        `yaml:"codec" toml:"codec"`
	MaxInFlight  int           `yaml:"max_in_flight" toml:"max_in_flight"`
	DrainTimeout time.Duration `yaml:"drain_timeout" toml:"drain_timeout"`
	NearCache    *NearCache    `yaml:"near_cache" toml:"near_cache"`

	// Settings is nil when the block is absent.
	Settings Section `yaml:"-" toml:"-"`
}

// Validate reports the first invalid field.
func (l *Loader) Validate() error {
	if l == nil {
		return errors.New("config: nil loader config")
	}
	if strings.TrimSpace(l.Backend) == "" {
		return ErrNoBackend
	}
	if l.MaxInFlight < 0 {
		return ErrNegativeInFlight
	}
	if l.DrainTimeout < 0 {
		return ErrNegativeDrain
	}
	if nc := l.NearCache; nc != nil {
		if nc.MaxCost < 0 || nc.NumCounters < 0 || nc.BufferItems < 0 {
			return errors.New("config: near_cache sizes must be >= 0")
		}
	}
	return nil
}

// DecodeSettings decodes the backend block into v. A missing block leaves v
// untouched.
func (l *Loader) DecodeSettings(v any) error {
	if l == nil || l.Settings == nil {
		return nil
	}
	return l.Settings.Decode(v)
}

// File holds the loaders of several caches keyed by cache name.
type File struct {
	Caches map[string]*Loader
}

// Cache returns the loader configured for name.
func (f *File) Cache(name string) (*Loader, error) {
	if f == nil {
		return nil, fmt.Errorf("config: no cache %q", name)
	}
	l, ok := f.Caches[name]
	if !ok {
		return nil, fmt.Errorf("config: no cache %q", name)
	}
	return l, nil
}

// Load reads path and parses it according to its extension
// (.yaml, .yml or .toml).
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(b)
	case ".toml":
		return ParseTOML(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

type yamlLoader struct {
	Loader   `yaml:",inline"`
	Settings yaml.Node `yaml:"settings"`
}

type yamlFile struct {
	Caches map[string]yamlLoader `yaml:"caches"`
}

type yamlSection struct{ node yaml.Node }

func (s yamlSection) Decode(v any) error { return s.node.Decode(v) }

// ParseYAML parses a YAML document and validates every loader in it.
func ParseYAML(b []byte) (*File, error) {
	var raw yamlFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	f := &File{Caches: make(map[string]*Loader, len(raw.Caches))}
	for name, rl := range raw.Caches {
		l := rl.Loader
		if !rl.Settings.IsZero() {
			l.Settings = yamlSection{node: rl.Settings}
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		f.Caches[name] = &l
	}
	return f, nil
}

type tomlLoader struct {
	Backend      string         `toml:"backend"`
	Codec        string         `toml:"codec"`
	MaxInFlight  int            `toml:"max_in_flight"`
	DrainTimeout time.Duration  `toml:"drain_timeout"`
	NearCache    *NearCache     `toml:"near_cache"`
	Settings     toml.Primitive `toml:"settings"`
}

type tomlFile struct {
	Caches map[string]tomlLoader `toml:"caches"`
}

type tomlSection struct {
	md toml.MetaData
	p  toml.Primitive
}

func (s tomlSection) Decode(v any) error { return s.md.PrimitiveDecode(s.p, v) }

// ParseTOML parses a TOML document and validates every loader in it.
func ParseTOML(b []byte) (*File, error) {
	var raw tomlFile
	md, err := toml.Decode(string(b), &raw)
	if err != nil {
		return nil, fmt.Errorf("config: toml: %w", err)
	}
	f := &File{Caches: make(map[string]*Loader, len(raw.Caches))}
	for name, rl := range raw.Caches {
		l := Loader{
			Backend:      rl.Backend,
			Codec:        rl.Codec,
			MaxInFlight:  rl.MaxInFlight,
			DrainTimeout: rl.DrainTimeout,
			NearCache:    rl.NearCache,
		}
		if md.IsDefined("caches", name, "settings") {
			l.Settings = tomlSection{md: md, p: rl.Settings}
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		f.Caches[name] = &l
	}
	return f, nil
}
