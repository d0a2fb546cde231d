// Package redis reads records from a Redis keyspace through go-redis.
//
// Keys are stored as <prefix><key>. Enumeration uses SCAN with a MATCH on the
// prefix; SCAN may repeat keys while the server rehashes, so the iterator
// de-duplicates and therefore holds the set of yielded keys (not values) for
// the lifetime of one scan. Cluster clients are not enumerated across shards.
//
// An empty prefix enumerates and counts the whole DB. When versions.Redis
// shares the DB, set a prefix so its "ver:" keys stay out of the keyspace.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/config"
)

const (
	Kind             = "redis"
	defaultScanCount = 256
)

var ErrNoAddrs = errors.New("redis backend: addrs or client required")

func init() {
	backend.Register(Kind, func(s config.Section) (backend.Backend, error) {
		var st Settings
		if s != nil {
			if err := s.Decode(&st); err != nil {
				return nil, err
			}
		}
		return New(Config{Settings: st})
	})
}

// Settings is the configuration block of the redis kind.
type Settings struct {
	Addrs       []string      `yaml:"addrs" toml:"addrs"`
	Username    string        `yaml:"username" toml:"username"`
	Password    string        `yaml:"password" toml:"password"`
	DB          int           `yaml:"db" toml:"db"`
	Prefix      string        `yaml:"prefix" toml:"prefix"` // required when versions share the DB
	ScanCount   int64         `yaml:"scan_count" toml:"scan_count"`
	DialTimeout time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`
}

type Config struct {
	Settings
	// Client overrides Addrs/Username/Password/DB when set.
	Client goredis.UniversalClient
	// CloseClient must be true only if this backend exclusively owns Client.
	// Clients built from Settings are always owned.
	CloseClient bool
}

type Redis struct {
	rdb         goredis.UniversalClient
	opts        *goredis.UniversalOptions
	prefix      string
	scanCount   int64
	closeClient bool
}

var (
	_ backend.Backend    = (*Redis)(nil)
	_ backend.HeadReader = (*Redis)(nil)
	_ backend.Writer     = (*Redis)(nil)
)

// New validates cfg. No connection is made until Open.
func New(cfg Config) (*Redis, error) {
	r := &Redis{
		prefix:    cfg.Prefix,
		scanCount: cfg.ScanCount,
	}
	if r.scanCount <= 0 {
		r.scanCount = defaultScanCount
	}
	if cfg.Client != nil {
		r.rdb = cfg.Client
		r.closeClient = cfg.CloseClient
		return r, nil
	}
	if len(cfg.Addrs) == 0 {
		return nil, ErrNoAddrs
	}
	r.opts = &goredis.UniversalOptions{
		Addrs:       cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
	r.closeClient = true
	return r, nil
}

func (p *Redis) Name() string { return Kind }

// Open builds the client if needed and verifies the server answers PING.
func (p *Redis) Open(ctx context.Context) error {
	if p.rdb == nil {
		p.rdb = goredis.NewUniversalClient(p.opts)
	}
	return p.rdb.Ping(ctx).Err()
}

func (p *Redis) key(k string) string { return p.prefix + k }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if p.rdb == nil {
		return nil, false, backend.ErrNotOpen
	}
	b, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

// Head uses GETRANGE. Redis answers a missing key with an empty string; stored
// records are never empty, so empty means miss.
func (p *Redis) Head(ctx context.Context, key string, n int) ([]byte, bool, error) {
	if p.rdb == nil {
		return nil, false, backend.ErrNotOpen
	}
	if n <= 0 {
		n = 1
	}
	s, err := p.rdb.GetRange(ctx, p.key(key), 0, int64(n-1)).Result()
	if err != nil {
		return nil, false, err
	}
	if s == "" {
		return nil, false, nil
	}
	return []byte(s), true, nil
}

// Len uses DBSIZE for an unprefixed keyspace and a counting SCAN otherwise.
func (p *Redis) Len(ctx context.Context) (int64, error) {
	if p.rdb == nil {
		return 0, backend.ErrNotOpen
	}
	if p.prefix == "" {
		return p.rdb.DBSize(ctx).Result()
	}
	it := p.Keys(ctx)
	defer it.Close()
	var n int64
	for it.Next(ctx) {
		n++
	}
	return n, it.Err()
}

func (p *Redis) Keys(ctx context.Context) backend.KeyIterator {
	if p.rdb == nil {
		return backend.ErrIterator(backend.ErrNotOpen)
	}
	match := escapeGlob(p.prefix) + "*"
	return &scanIter{
		it:     p.rdb.Scan(ctx, 0, match, p.scanCount).Iterator(),
		prefix: p.prefix,
		seen:   make(map[string]struct{}),
	}
}

func (p *Redis) Put(ctx context.Context, key string, record []byte) error {
	if p.rdb == nil {
		return backend.ErrNotOpen
	}
	return p.rdb.Set(ctx, p.key(key), record, 0).Err()
}

func (p *Redis) Delete(ctx context.Context, key string) error {
	if p.rdb == nil {
		return backend.ErrNotOpen
	}
	return p.rdb.Del(ctx, p.key(key)).Err()
}

// Close releases the client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.rdb == nil || !p.closeClient {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

type scanIter struct {
	it     *goredis.ScanIterator
	prefix string
	seen   map[string]struct{}
	cur    string
	closed bool
}

func (s *scanIter) Next(ctx context.Context) bool {
	if s.closed {
		return false
	}
	for s.it.Next(ctx) {
		if s.accept(s.it.Val()) {
			return true
		}
	}
	return false
}

// accept records a raw SCAN key and reports whether it is new.
func (s *scanIter) accept(raw string) bool {
	if _, dup := s.seen[raw]; dup {
		return false
	}
	s.seen[raw] = struct{}{}
	s.cur = strings.TrimPrefix(raw, s.prefix)
	return true
}

func (s *scanIter) Key() string { return s.cur }
func (s *scanIter) Err() error  { return s.it.Err() }

func (s *scanIter) Close() error {
	s.closed = true
	s.seen = nil
	return nil
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
