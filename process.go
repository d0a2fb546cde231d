package cacheloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// dispatch is the state of one Process call.
type dispatch[V any] struct {
	l          *loader[V]
	filter     KeyFilter
	task       Task[V]
	fetchValue bool
	fetchMeta  bool

	halted  atomic.Bool // no new tasks once set
	pending atomic.Int64

	mu     sync.Mutex
	err    error
	errCh  chan struct{}           // closed by the first failure
	cancel context.CancelCauseFunc // nil for inline runs
}

func (l *loader[V]) Process(ctx context.Context, filter KeyFilter, task Task[V], exec Executor, fetchValue, fetchMetadata bool) error {
	if err := l.ready("process"); err != nil {
		return err
	}
	if task == nil {
		return &IterationError{Err: ErrNilTask}
	}
	if filter == nil {
		filter = AllKeys
	}
	d := &dispatch[V]{
		l:          l,
		filter:     filter,
		task:       task,
		fetchValue: fetchValue,
		fetchMeta:  fetchMetadata,
		errCh:      make(chan struct{}),
	}
	if exec == nil {
		return d.runInline(ctx)
	}
	return d.runConcurrent(ctx, exec)
}

// fetch builds the entry for key, reading only the header when the caller
// wants neither value nor metadata. ok=false means the key vanished, expired
// or went stale after enumeration.
func (d *dispatch[V]) fetch(ctx context.Context, key string) (Entry[V], bool, error) {
	if !d.fetchValue {
		h, ok, err := d.l.head(ctx, "process", key)
		if err != nil || !ok {
			return Entry[V]{}, false, err
		}
		e := Entry[V]{key: key}
		if d.fetchMeta {
			e.meta, e.hasMeta = metadataFromHeader(h), true
		}
		return e, true, nil
	}
	md, v, ok, err := d.l.read(ctx, "process", key)
	if err != nil || !ok {
		return Entry[V]{}, false, err
	}
	e := Entry[V]{key: key, value: v, hasValue: true}
	if d.fetchMeta {
		e.meta, e.hasMeta = md, true
	}
	return e, true, nil
}

// visit fetches and runs the task for one key.
func (d *dispatch[V]) visit(ctx context.Context, key string) (stop bool, err error) {
	e, ok, err := d.fetch(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := d.task(ctx, e); err != nil {
		if errors.Is(err, ErrStopIteration) {
			return true, nil
		}
		d.l.hooks.TaskFailed(key, err)
		return false, err
	}
	return false, nil
}

// fail records the first failure and stops further dispatch.
func (d *dispatch[V]) fail(key string, err error) {
	d.halted.Store(true)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return
	}
	d.err = &IterationError{Key: key, Err: err}
	close(d.errCh)
	if d.cancel != nil {
		// running tasks see ctx.Done with the failure as cause
		d.cancel(d.err)
	}
}

func (d *dispatch[V]) firstErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *dispatch[V]) runInline(ctx context.Context) error {
	it := d.l.b.Keys(ctx)
	defer it.Close()

	for it.Next(ctx) {
		key := it.Key()
		if !d.filter(key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return &IterationError{Key: key, Err: err}
		}
		stop, err := d.visit(ctx, key)
		if err != nil {
			return &IterationError{Key: key, Err: err}
		}
		if stop {
			return nil
		}
	}
	if err := it.Err(); err != nil {
		return &IterationError{Err: fmt.Errorf("enumerate: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return &IterationError{Err: err}
	}
	return nil
}

func (d *dispatch[V]) runConcurrent(ctx context.Context, exec Executor) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	d.cancel = cancel

	sem := semaphore.NewWeighted(d.l.maxInFlight)
	var wg sync.WaitGroup

	it := d.l.b.Keys(ctx)
	for !d.halted.Load() && it.Next(ctx) {
		key := it.Key()
		if !d.filter(key) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			d.fail(key, err)
			break
		}
		if d.halted.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		d.pending.Add(1)
		err := exec.Submit(func() {
			defer wg.Done()
			defer d.pending.Add(-1)
			defer sem.Release(1)
			if d.halted.Load() {
				// queued before the failure; never started
				return
			}
			stop, err := d.visit(ctx, key)
			switch {
			case err != nil:
				d.fail(key, err)
			case stop:
				d.halted.Store(true)
			}
		})
		if err != nil {
			d.pending.Add(-1)
			wg.Done()
			sem.Release(1)
			d.fail(key, fmt.Errorf("submit: %w", err))
			break
		}
	}
	if !d.halted.Load() {
		if err := it.Err(); err != nil {
			d.fail("", fmt.Errorf("enumerate: %w", err))
		} else if err := ctx.Err(); err != nil {
			d.fail("", err)
		}
	}
	_ = it.Close()

	d.wait(&wg)
	return d.firstErr()
}

// wait blocks until every dispatched task finished. Once a failure is
// recorded the remaining wait is bounded by drainTimeout.
func (d *dispatch[V]) wait(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-d.errCh:
	}

	t := time.NewTimer(d.l.drainTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		n := d.pending.Load()
		d.l.log.Warn("abandoning in-flight tasks", Fields{"cache": d.l.name, "pending": n})
		d.l.hooks.DrainAbandoned(d.l.name, n)
	}
}
