// Package ristretto puts a dgraph-io/ristretto read cache in front of another
// backend. Point reads (Get, Head) are served from memory when possible;
// enumeration and counting always go to the wrapped backend.
//
// Cached records are dropped after TTL, which bounds how long a change made
// by another writer stays invisible.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/unkn0wn-root/cacheloader/backend"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 64 << 20 // bytes
	defaultBufferItems = 64
	defaultTTL         = time.Minute
)

var ErrNotWriter = errors.New("ristretto: wrapped backend does not accept writes")

type Config struct {
	NumCounters int64
	MaxCost     int64 // total bytes of cached records
	BufferItems int64
	TTL         time.Duration
	Metrics     bool
}

type Cached struct {
	inner backend.Backend
	cfg   Config
	c     atomic.Pointer[rc.Cache]
}

var (
	_ backend.Backend    = (*Cached)(nil)
	_ backend.HeadReader = (*Cached)(nil)
	_ backend.Writer     = (*Cached)(nil)
)

// Wrap returns inner fronted by a read cache built at Open. Zero config
// fields take defaults.
func Wrap(inner backend.Backend, cfg Config) (*Cached, error) {
	if inner == nil {
		return nil, errors.New("ristretto: nil backend")
	}
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = defaultNumCounters
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = defaultBufferItems
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Cached{inner: inner, cfg: cfg}, nil
}

func (p *Cached) Name() string { return "ristretto+" + p.inner.Name() }

// Unwrap returns the wrapped backend.
func (p *Cached) Unwrap() backend.Backend { return p.inner }

func (p *Cached) Open(ctx context.Context) error {
	if err := p.inner.Open(ctx); err != nil {
		return err
	}
	if p.c.Load() != nil {
		return nil
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: p.cfg.NumCounters,
		MaxCost:     p.cfg.MaxCost,
		BufferItems: p.cfg.BufferItems,
		Metrics:     p.cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	p.c.Store(c)
	return nil
}

func (p *Cached) cached(key string) ([]byte, bool) {
	c := p.c.Load()
	if c == nil {
		return nil, false
	}
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		c.Del(key)
		return nil, false
	}
	return b, true
}

func (p *Cached) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok := p.cached(key); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out, true, nil
	}
	b, ok, err := p.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if c := p.c.Load(); c != nil {
		keep := make([]byte, len(b))
		copy(keep, b)
		c.SetWithTTL(key, keep, int64(len(keep)), p.cfg.TTL)
	}
	return b, true, nil
}

func (p *Cached) Head(ctx context.Context, key string, n int) ([]byte, bool, error) {
	if b, ok := p.cached(key); ok {
		if len(b) > n {
			b = b[:n]
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, true, nil
	}
	return backend.Head(ctx, p.inner, key, n)
}

func (p *Cached) Len(ctx context.Context) (int64, error) { return p.inner.Len(ctx) }

func (p *Cached) Keys(ctx context.Context) backend.KeyIterator { return p.inner.Keys(ctx) }

func (p *Cached) Put(ctx context.Context, key string, record []byte) error {
	w, ok := p.inner.(backend.Writer)
	if !ok {
		return ErrNotWriter
	}
	if c := p.c.Load(); c != nil {
		c.Del(key)
	}
	return w.Put(ctx, key, record)
}

func (p *Cached) Delete(ctx context.Context, key string) error {
	w, ok := p.inner.(backend.Writer)
	if !ok {
		return ErrNotWriter
	}
	if c := p.c.Load(); c != nil {
		c.Del(key)
	}
	return w.Delete(ctx, key)
}

// Close closes the cache and the wrapped backend; both are attempted.
func (p *Cached) Close(ctx context.Context) error {
	var errs *multierror.Error
	if c := p.c.Swap(nil); c != nil {
		c.Wait()
		c.Close()
	}
	if err := p.inner.Close(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (p *Cached) Metrics() *rc.Metrics {
	c := p.c.Load()
	if c == nil {
		return nil
	}
	return c.Metrics
}

// Wait blocks until buffered cache writes are applied.
func (p *Cached) Wait() {
	if c := p.c.Load(); c != nil {
		c.Wait()
	}
}
