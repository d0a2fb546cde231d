package cacheloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/backend/ristretto"
	"github.com/unkn0wn-root/cacheloader/codec"
	"github.com/unkn0wn-root/cacheloader/internal/wire"
	"github.com/unkn0wn-root/cacheloader/versions"
)

type loader[V any] struct {
	// lifecycle transitions are serialized; reads of state are lock-free
	lifeMu sync.Mutex
	state  atomic.Int32

	b        backend.Backend
	name     string
	codec    codec.Codec[V]
	now      func() time.Time
	log      Logger
	hooks    Hooks
	versions versions.Store

	maxInFlight  int64
	drainTimeout time.Duration
}

func newLoader[V any](b backend.Backend) *loader[V] {
	return &loader[V]{
		b:     b,
		log:   NopLogger{},
		hooks: NopHooks{},
		now:   time.Now,
	}
}

func (l *loader[V]) State() State { return State(l.state.Load()) }

func (l *loader[V]) Init(ictx InitContext[V]) error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	if st := l.State(); st != Created {
		return &LifecycleError{Op: "init", State: st}
	}
	if ictx.CacheName == "" {
		return &ConfigurationError{Field: "CacheName", Err: errMissing}
	}

	cfg := ictx.Config
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return &ConfigurationError{Field: "Config", Err: err}
		}
	}

	cd := ictx.Codec
	if cd == nil {
		if cfg == nil {
			return &ConfigurationError{Field: "Codec", Err: errMissing}
		}
		c, err := codec.ForName[V](cfg.Codec)
		if err != nil {
			return &ConfigurationError{Field: "Codec", Err: err}
		}
		cd = c
	}

	b := l.b
	if b == nil {
		if cfg == nil {
			return &ConfigurationError{Field: "Backend", Err: errMissing}
		}
		factory, err := backend.Lookup(cfg.Backend)
		if err != nil {
			return &ConfigurationError{Field: "Backend", Err: err}
		}
		if b, err = factory(cfg.Settings); err != nil {
			return &ConfigurationError{Field: "Backend", Err: err}
		}
	}
	if cfg != nil && cfg.NearCache != nil {
		nc := cfg.NearCache
		wrapped, err := ristretto.Wrap(b, ristretto.Config{
			NumCounters: nc.NumCounters,
			MaxCost:     nc.MaxCost,
			BufferItems: nc.BufferItems,
			TTL:         nc.TTL,
		})
		if err != nil {
			return &ConfigurationError{Field: "NearCache", Err: err}
		}
		b = wrapped
	}

	l.b = b
	l.name = ictx.CacheName
	l.codec = cd
	l.versions = ictx.Versions
	l.log = coalesce[Logger](ictx.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](ictx.Hooks, NopHooks{})
	if ictx.Clock != nil {
		l.now = ictx.Clock
	}
	l.maxInFlight = defaultMaxInFlight
	l.drainTimeout = defaultDrainTimeout
	if cfg != nil {
		l.maxInFlight = int64(coalesce(cfg.MaxInFlight, defaultMaxInFlight))
		l.drainTimeout = coalesce(cfg.DrainTimeout, defaultDrainTimeout)
	}

	l.state.Store(int32(Initialized))
	l.log.Info("loader initialized", Fields{"cache": l.name, "backend": l.b.Name()})
	return nil
}

func (l *loader[V]) Start(ctx context.Context) error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	if st := l.State(); st != Initialized {
		return &LifecycleError{Op: "start", State: st}
	}
	if err := l.b.Open(ctx); err != nil {
		// stay Initialized: Stop still releases whatever Open acquired
		l.log.Error("backend open failed", Fields{"cache": l.name, "backend": l.b.Name(), "err": err})
		return &StoreUnavailableError{Backend: l.b.Name(), Err: err}
	}
	l.state.Store(int32(Started))
	l.log.Info("loader started", Fields{"cache": l.name})
	return nil
}

func (l *loader[V]) Stop(ctx context.Context) {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	prev := l.State()
	if prev == Stopped {
		l.log.Debug("stop on stopped loader ignored", Fields{"cache": l.name})
		return
	}
	l.state.Store(int32(Stopped))
	if l.b != nil && prev != Created {
		if err := l.b.Close(ctx); err != nil {
			l.log.Error("backend close failed", Fields{"cache": l.name, "err": err})
			l.hooks.TeardownFailed(l.name, err)
		}
	}
	l.log.Info("loader stopped", Fields{"cache": l.name, "from": prev.String()})
}

func (l *loader[V]) ready(op string) error {
	if st := l.State(); st != Started {
		return &LifecycleError{Op: op, State: st}
	}
	return nil
}

func (l *loader[V]) Load(ctx context.Context, key string) (Entry[V], bool, error) {
	var zero Entry[V]
	if err := l.ready("load"); err != nil {
		return zero, false, err
	}
	md, v, ok, err := l.read(ctx, "load", key)
	if err != nil || !ok {
		return zero, false, err
	}
	return NewEntry(key, v, md), true, nil
}

func (l *loader[V]) Contains(ctx context.Context, key string) (bool, error) {
	if err := l.ready("contains"); err != nil {
		return false, err
	}
	_, ok, err := l.head(ctx, "contains", key)
	return ok, err
}

func (l *loader[V]) Size(ctx context.Context) int64 {
	if l.State() != Started {
		return 0
	}
	n, err := l.b.Len(ctx)
	if err != nil {
		l.log.Warn("size unavailable", Fields{"cache": l.name, "err": err})
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

// head reads and validates only the record header. A record with a corrupt
// header, an elapsed expiry or a stale version is absent.
func (l *loader[V]) head(ctx context.Context, op, key string) (wire.Header, bool, error) {
	raw, ok, err := backend.Head(ctx, l.b, key, wire.HeaderLen)
	if err != nil {
		return wire.Header{}, false, &StoreAccessError{Op: op, Key: key, Err: err}
	}
	if !ok {
		return wire.Header{}, false, nil
	}
	h, err := wire.DecodeHeader(raw)
	if err != nil {
		l.corrupt(key, err)
		return wire.Header{}, false, nil
	}
	live, err := l.live(ctx, key, h)
	if err != nil {
		return wire.Header{}, false, &StoreAccessError{Op: op, Key: key, Err: err}
	}
	return h, live, nil
}

// read fetches and decodes a full record. Liveness follows head exactly; once
// the header says the record exists, a bad body is an access error rather
// than a miss so that Contains and Load never disagree.
func (l *loader[V]) read(ctx context.Context, op, key string) (Metadata, V, bool, error) {
	var zero V
	raw, ok, err := l.b.Get(ctx, key)
	if err != nil {
		return Metadata{}, zero, false, &StoreAccessError{Op: op, Key: key, Err: err}
	}
	if !ok {
		return Metadata{}, zero, false, nil
	}
	h, err := wire.DecodeHeader(raw)
	if err != nil {
		l.corrupt(key, err)
		return Metadata{}, zero, false, nil
	}
	live, err := l.live(ctx, key, h)
	if err != nil {
		return Metadata{}, zero, false, &StoreAccessError{Op: op, Key: key, Err: err}
	}
	if !live {
		return Metadata{}, zero, false, nil
	}
	_, payload, err := wire.DecodeRecord(raw)
	if err != nil {
		l.corrupt(key, err)
		return Metadata{}, zero, false, &StoreAccessError{Op: op, Key: key, Err: err}
	}
	v, err := l.codec.Decode(payload)
	if err != nil {
		l.corrupt(key, err)
		return Metadata{}, zero, false, &StoreAccessError{Op: op, Key: key, Err: fmt.Errorf("decode: %w", err)}
	}
	return metadataFromHeader(h), v, true, nil
}

func (l *loader[V]) live(ctx context.Context, key string, h wire.Header) (bool, error) {
	if metadataFromHeader(h).Expired(l.now()) {
		return false, nil
	}
	if l.versions == nil {
		return true, nil
	}
	cur, err := l.versions.Current(ctx, key)
	if err != nil {
		return false, err
	}
	if h.Version != cur {
		l.log.Debug("stale record", Fields{"cache": l.name, "key": key, "version": h.Version, "current": cur})
		l.hooks.StaleRecord(key, h.Version, cur)
		return false, nil
	}
	return true, nil
}

func (l *loader[V]) corrupt(key string, err error) {
	l.log.Warn("corrupt record", Fields{"cache": l.name, "key": key, "err": err})
	l.hooks.CorruptRecord(key, err)
}
