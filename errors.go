package cacheloader

import (
	"errors"
	"fmt"
)

var (
	// ErrStopIteration ends a Process scan early when returned by a task.
	// Process then returns nil.
	ErrStopIteration = errors.New("cacheloader: stop iteration")

	ErrNilTask = errors.New("cacheloader: nil task")

	errMissing = errors.New("required")
)

// ConfigurationError is returned by Init when setup is missing or invalid.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cacheloader: configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LifecycleError reports a method called in the wrong state. It is a caller
// bug, never a data error.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cacheloader: %s not allowed in state %s", e.Op, e.State)
}

// StoreUnavailableError is returned by Start when the backend cannot be opened.
type StoreUnavailableError struct {
	Backend string
	Err     error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("cacheloader: backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// StoreAccessError wraps a backend failure on a single operation. The loader
// never retries; the caller may.
type StoreAccessError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreAccessError) Error() string {
	return fmt.Sprintf("cacheloader: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreAccessError) Unwrap() error { return e.Err }

// IterationError is the single failure surfaced by Process. Key is empty when
// the failure is not tied to one key (enumeration, cancellation, drain).
type IterationError struct {
	Key string
	Err error
}

func (e *IterationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cacheloader: iteration failed: %v", e.Err)
	}
	return fmt.Sprintf("cacheloader: iteration failed at %q: %v", e.Key, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }
