// Package bigcache serves records from an in-process allegro/bigcache
// instance, typically one shared with the process that writes it.
//
// bigcache walks its shards in map order, so Keys takes a sorted snapshot of
// the key set on the first Next to keep enumeration deterministic. The
// snapshot holds every key in memory for the duration of one scan: a Process
// call over n entries costs O(n) extra memory. Prefer the redis or sqlite
// backends for keyspaces too large to list at once.
package bigcache

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/config"
)

const Kind = "bigcache"

func init() {
	backend.Register(Kind, func(s config.Section) (backend.Backend, error) {
		var cfg Config
		if s != nil {
			if err := s.Decode(&cfg); err != nil {
				return nil, err
			}
		}
		return New(cfg), nil
	})
}

type Config struct {
	LifeWindow         time.Duration `yaml:"life_window" toml:"life_window"`   // 0 => 10m
	CleanWindow        time.Duration `yaml:"clean_window" toml:"clean_window"` // 0 => no cleanup
	Shards             int           `yaml:"shards" toml:"shards"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window" toml:"max_entries_in_window"`
	MaxEntrySize       int           `yaml:"max_entry_size" toml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" toml:"hard_max_cache_size_mb"` // 0 = unlimited
}

type Provider struct {
	cfg    Config
	c      atomic.Pointer[bc.BigCache]
	shared bool
}

var (
	_ backend.Backend = (*Provider)(nil)
	_ backend.Writer  = (*Provider)(nil)
)

// New returns a backend that creates its own cache at Open.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Wrap serves an existing cache. Close leaves c open.
func Wrap(c *bc.BigCache) *Provider {
	p := &Provider{shared: true}
	p.c.Store(c)
	return p
}

func (p *Provider) Name() string { return Kind }

func (p *Provider) Open(ctx context.Context) error {
	if p.c.Load() != nil {
		return nil
	}
	life := p.cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	conf := bc.DefaultConfig(life)
	conf.CleanWindow = p.cfg.CleanWindow
	conf.Verbose = false
	if p.cfg.Shards > 0 {
		conf.Shards = p.cfg.Shards
	}
	if p.cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = p.cfg.MaxEntriesInWindow
	}
	if p.cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = p.cfg.MaxEntrySize
	}
	if p.cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = p.cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return err
	}
	p.c.Store(c)
	return nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	c := p.c.Load()
	if c == nil {
		return nil, false, backend.ErrNotOpen
	}
	b, err := c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Len(context.Context) (int64, error) {
	c := p.c.Load()
	if c == nil {
		return 0, backend.ErrNotOpen
	}
	return int64(c.Len()), nil
}

func (p *Provider) Put(_ context.Context, key string, record []byte) error {
	c := p.c.Load()
	if c == nil {
		return backend.ErrNotOpen
	}
	return c.Set(key, record)
}

func (p *Provider) Delete(_ context.Context, key string) error {
	c := p.c.Load()
	if c == nil {
		return backend.ErrNotOpen
	}
	if err := c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) Keys(context.Context) backend.KeyIterator {
	c := p.c.Load()
	if c == nil {
		return backend.ErrIterator(backend.ErrNotOpen)
	}
	return &snapshotIter{c: c, pos: -1}
}

func (p *Provider) Close(context.Context) error {
	c := p.c.Swap(nil)
	if c == nil || p.shared {
		return nil
	}
	return c.Close()
}

type snapshotIter struct {
	c    *bc.BigCache
	keys []string
	pos  int
	err  error
}

func (s *snapshotIter) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if s.keys == nil {
		s.keys = []string{}
		it := s.c.Iterator()
		for it.SetNext() {
			if err := ctx.Err(); err != nil {
				s.err = err
				return false
			}
			e, err := it.Value()
			if err != nil {
				// entry evicted between SetNext and Value
				continue
			}
			s.keys = append(s.keys, e.Key())
		}
		sort.Strings(s.keys)
	}
	if s.pos+1 >= len(s.keys) {
		return false
	}
	s.pos++
	return true
}

func (s *snapshotIter) Key() string { return s.keys[s.pos] }
func (s *snapshotIter) Err() error  { return s.err }

func (s *snapshotIter) Close() error {
	s.pos = len(s.keys)
	return nil
}
