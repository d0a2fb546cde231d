// Package executor provides task sinks for Loader.Process.
//
//	pool := executor.NewPool(8, 64) // 8 workers; queue 64 tasks
//	defer pool.Close()
//	err := loader.Process(ctx, nil, task, pool, true, false)
package executor

import (
	"errors"

	"github.com/unkn0wn-root/cacheloader/internal/workq"
)

var ErrClosed = errors.New("executor: closed")

// Pool runs tasks on a fixed set of workers. Submit blocks while the queue is
// full. Tasks must not call Close on their own pool.
type Pool struct {
	q *workq.Queue
}

func NewPool(workers, qlen int) *Pool {
	return &Pool{q: workq.New(workers, qlen)}
}

func (p *Pool) Submit(task func()) error {
	if err := p.q.Put(task); err != nil {
		return ErrClosed
	}
	return nil
}

// Close stops accepting tasks, runs everything already queued and waits for
// the workers to exit. Safe to call more than once.
func (p *Pool) Close() { p.q.Close() }

// Go runs every task on its own goroutine. Concurrency is then bounded only
// by the loader's in-flight limit.
type Go struct{}

func (Go) Submit(task func()) error {
	go task()
	return nil
}

// Serial runs each task inside Submit. It satisfies the executor contract
// without concurrency, which makes dispatch deterministic in tests.
type Serial struct{}

func (Serial) Submit(task func()) error {
	task()
	return nil
}
