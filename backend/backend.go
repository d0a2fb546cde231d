// Package backend defines the external store a loader reads from.
//
// Backends are byte stores: Get must return exactly the record bytes that were
// written for a key. The loader owns the record framing (header + payload) and
// decides liveness; a backend never interprets record contents.
//
// Backends register themselves under a kind name so that configuration can
// bind a cache to an implementation:
//
//	import _ "github.com/unkn0wn-root/cacheloader/backend/sqlite"
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/unkn0wn-root/cacheloader/config"
)

var ErrNotOpen = errors.New("backend: not open")

// Backend is a minimal enumerable byte store.
// All methods except Open and Close must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend kind in logs and errors.
	Name() string

	// Open acquires connections/handles. Called once by the loader's Start.
	Open(ctx context.Context) error

	// Get returns (record, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Len returns the number of stored records. May be approximate.
	Len(ctx context.Context) (int64, error)

	// Keys starts a lazy, single-pass enumeration of stored keys. The order
	// must be deterministic for a fixed store state and each key is yielded
	// at most once.
	Keys(ctx context.Context) KeyIterator

	// Close releases everything Open acquired. Must tolerate a failed or
	// missing Open and repeated calls.
	Close(ctx context.Context) error
}

// HeadReader is implemented by backends that can read the first n bytes of a
// record without transferring the rest.
type HeadReader interface {
	Head(ctx context.Context, key string, n int) ([]byte, bool, error)
}

// Writer is implemented by backends that accept records. The loader never
// writes; seeding and migration tools do.
type Writer interface {
	Put(ctx context.Context, key string, record []byte) error
	Delete(ctx context.Context, key string) error
}

// KeyIterator is a forward-only cursor:
//
//	it := b.Keys(ctx)
//	defer it.Close()
//	for it.Next(ctx) {
//		use(it.Key())
//	}
//	if err := it.Err(); err != nil { ... }
type KeyIterator interface {
	Next(ctx context.Context) bool
	Key() string
	Err() error
	Close() error
}

// Head reads the first n bytes of a record, falling back to a full Get when
// b has no ranged read.
func Head(ctx context.Context, b Backend, key string, n int) ([]byte, bool, error) {
	if hr, ok := b.(HeadReader); ok {
		return hr.Head(ctx, key, n)
	}
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(raw) > n {
		raw = raw[:n]
	}
	return raw, true, nil
}

// ErrIterator returns an iterator that yields nothing and reports err.
func ErrIterator(err error) KeyIterator { return errIter{err: err} }

type errIter struct{ err error }

func (errIter) Next(context.Context) bool { return false }
func (errIter) Key() string               { return "" }
func (e errIter) Err() error              { return e.err }
func (errIter) Close() error              { return nil }

// Factory builds an unopened backend from its configuration block.
// Factories validate settings and must not perform I/O.
type Factory func(settings config.Section) (Backend, error)

var (
	regMu    sync.RWMutex
	registry = make(map[string]Factory)
)

// Register binds kind to f. It panics if kind is empty, f is nil or kind is
// already registered.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if kind == "" || f == nil {
		panic("backend: Register with empty kind or nil factory")
	}
	if _, dup := registry[kind]; dup {
		panic("backend: Register called twice for " + kind)
	}
	registry[kind] = f
}

// Lookup returns the factory registered for kind.
func Lookup(kind string) (Factory, error) {
	regMu.RLock()
	f, ok := registry[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: unknown kind %q (forgotten import?)", kind)
	}
	return f, nil
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	regMu.RLock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	regMu.RUnlock()
	sort.Strings(out)
	return out
}
