package cacheloader

// Hooks are callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; Process calls them from
// worker goroutines.
type Hooks interface {
	// A record header or body could not be decoded.
	CorruptRecord(key string, err error)

	// A record was skipped because its version is not the current one.
	StaleRecord(key string, version, current uint64)

	// A Process task returned an error (ErrStopIteration excluded).
	TaskFailed(key string, err error)

	// Process gave up waiting for pending tasks after a failure.
	DrainAbandoned(cache string, pending int64)

	// Stop could not release a resource.
	TeardownFailed(cache string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CorruptRecord(string, error)        {}
func (NopHooks) StaleRecord(string, uint64, uint64) {}
func (NopHooks) TaskFailed(string, error)           {}
func (NopHooks) DrainAbandoned(string, int64)       {}
func (NopHooks) TeardownFailed(string, error)       {}
