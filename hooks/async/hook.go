// Package asynchook moves Hooks calls off the Process workers.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CorruptEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	_ = loader.Init(cacheloader.InitContext[User]{
//	    CacheName: "users",
//	    Config:    cfg,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync/atomic"

	"github.com/unkn0wn-root/cacheloader"
	"github.com/unkn0wn-root/cacheloader/internal/workq"
)

type Hooks struct {
	inner   cacheloader.Hooks
	q       *workq.Queue
	dropped atomic.Uint64
}

var _ cacheloader.Hooks = (*Hooks)(nil)

func New(inner cacheloader.Hooks, workers, qlen int) *Hooks {
	if qlen <= 0 {
		qlen = 1024
	}
	return &Hooks{inner: inner, q: workq.New(workers, qlen)}
}

// Close delivers queued events and stops the workers.
func (h *Hooks) Close() { h.q.Close() }

// Dropped reports how many events were discarded on a full or closed queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if !h.q.TryPut(f) {
		h.dropped.Add(1)
	}
}

func (h *Hooks) CorruptRecord(k string, err error) { h.try(func() { h.inner.CorruptRecord(k, err) }) }
func (h *Hooks) TaskFailed(k string, err error)    { h.try(func() { h.inner.TaskFailed(k, err) }) }
func (h *Hooks) StaleRecord(k string, v, cur uint64) {
	h.try(func() { h.inner.StaleRecord(k, v, cur) })
}
func (h *Hooks) DrainAbandoned(cache string, n int64) {
	h.try(func() { h.inner.DrainAbandoned(cache, n) })
}
func (h *Hooks) TeardownFailed(cache string, err error) {
	h.try(func() { h.inner.TeardownFailed(cache, err) })
}
