// Package workq runs queued funcs on a fixed set of goroutines. It backs the
// executor pool (blocking Put) and the async hooks (dropping TryPut).
package workq

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("queue closed")

type Queue struct {
	mu     sync.RWMutex
	closed bool
	q      chan func()
	wg     sync.WaitGroup
}

// New starts workers goroutines (at least one) over a queue of qlen slots.
func New(workers, qlen int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if qlen < 0 {
		qlen = 0
	}
	w := &Queue{q: make(chan func(), qlen)}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer w.wg.Done()
			for f := range w.q {
				f()
			}
		}()
	}
	return w
}

// Put enqueues f, blocking while the queue is full.
func (w *Queue) Put(f func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.q <- f
	return nil
}

// TryPut enqueues f unless the queue is full or closed.
func (w *Queue) TryPut(f func()) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting work, runs what is queued and waits for the workers.
// Safe to call more than once.
func (w *Queue) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.q)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
