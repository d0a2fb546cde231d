package cacheloader

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/backend/memory"
	"github.com/unkn0wn-root/cacheloader/codec"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

var userCodec codec.Codec[user] = codec.JSON[user]{}

// spyStore is a memory store that counts record reads and can be told to fail.
type spyStore struct {
	*memory.Store

	openErr  error
	closeErr error
	getErr   error
	keysErr  error

	closed atomic.Int32

	mu    sync.Mutex
	reads map[string]int
}

func newSpy() *spyStore {
	return &spyStore{Store: memory.New(), reads: make(map[string]int)}
}

func (p *spyStore) Open(ctx context.Context) error {
	if p.openErr != nil {
		return p.openErr
	}
	return p.Store.Open(ctx)
}

func (p *spyStore) Close(ctx context.Context) error {
	p.closed.Add(1)
	_ = p.Store.Close(ctx)
	return p.closeErr
}

func (p *spyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	p.reads[key]++
	p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	return p.Store.Get(ctx, key)
}

func (p *spyStore) Keys(ctx context.Context) backend.KeyIterator {
	it := p.Store.Keys(ctx)
	if p.keysErr == nil {
		return it
	}
	return &brokenIter{KeyIterator: it, err: p.keysErr}
}

func (p *spyStore) readsOf(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[key]
}

// brokenIter yields the wrapped keys and then reports err.
type brokenIter struct {
	backend.KeyIterator
	err error
}

func (it *brokenIter) Err() error {
	if err := it.KeyIterator.Err(); err != nil {
		return err
	}
	return it.err
}

type hookLog struct {
	corrupt   []string
	stale     []string
	failed    []string
	abandoned []int64
	teardown  []error
}

type recHooks struct {
	mu  sync.Mutex
	log hookLog
}

func (h *recHooks) CorruptRecord(k string, _ error) {
	h.mu.Lock()
	h.log.corrupt = append(h.log.corrupt, k)
	h.mu.Unlock()
}

func (h *recHooks) StaleRecord(k string, _, _ uint64) {
	h.mu.Lock()
	h.log.stale = append(h.log.stale, k)
	h.mu.Unlock()
}

func (h *recHooks) TaskFailed(k string, _ error) {
	h.mu.Lock()
	h.log.failed = append(h.log.failed, k)
	h.mu.Unlock()
}

func (h *recHooks) DrainAbandoned(_ string, n int64) {
	h.mu.Lock()
	h.log.abandoned = append(h.log.abandoned, n)
	h.mu.Unlock()
}

func (h *recHooks) TeardownFailed(_ string, err error) {
	h.mu.Lock()
	h.log.teardown = append(h.log.teardown, err)
	h.mu.Unlock()
}

func (h *recHooks) snapshot() hookLog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hookLog{
		corrupt:   append([]string(nil), h.log.corrupt...),
		stale:     append([]string(nil), h.log.stale...),
		failed:    append([]string(nil), h.log.failed...),
		abandoned: append([]int64(nil), h.log.abandoned...),
		teardown:  append([]error(nil), h.log.teardown...),
	}
}

// fakeClock is safe for concurrent reads.
type fakeClock struct{ ns atomic.Int64 }

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.ns.Store(t.UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.ns.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

// started builds a Started loader over b. Zero CacheName and Codec take test
// defaults.
func started(t *testing.T, b backend.Backend, ictx InitContext[user]) Loader[user] {
	t.Helper()
	if ictx.CacheName == "" {
		ictx.CacheName = "users"
	}
	if ictx.Codec == nil {
		ictx.Codec = userCodec
	}
	l := New[user](b)
	if err := l.Init(ictx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { l.Stop(context.Background()) })
	return l
}

func seed(t *testing.T, w backend.Writer, key string, v user, md Metadata) {
	t.Helper()
	if err := WriteEntry(context.Background(), w, userCodec, key, v, md); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}
