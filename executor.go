package cacheloader

// Executor runs Process tasks. Submit may block to apply backpressure and
// returns an error when it can no longer accept work. The executor package
// provides a worker pool, a goroutine-per-task executor and an inline one.
type Executor interface {
	Submit(task func()) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func()) error

func (f ExecutorFunc) Submit(task func()) error { return f(task) }
