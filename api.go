package cacheloader

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/cacheloader/backend"
)

// State is a loader lifecycle state.
type State int32

const (
	Created State = iota
	Initialized
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Task is invoked once per visited entry during Process.
type Task[V any] func(ctx context.Context, e Entry[V]) error

// Loader gives a cache read access to an external store.
//
// Lifecycle: Created -Init-> Initialized -Start-> Started -Stop-> Stopped.
// Stopped is terminal. Load, Contains and Process require Started; Load,
// Contains and Size are safe to call concurrently with a running Process.
type Loader[V any] interface {
	Init(ictx InitContext[V]) error
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	State() State

	// Load returns (entry, true, nil) on hit and (zero, false, nil) when the
	// key is absent, expired or stale.
	Load(ctx context.Context, key string) (Entry[V], bool, error)

	// Contains agrees with Load on existence without decoding the value.
	Contains(ctx context.Context, key string) (bool, error)

	// Size estimates the number of stored records. Never negative.
	Size(ctx context.Context) int64

	// Process calls task for every live key accepted by filter. With a nil
	// exec tasks run inline in enumeration order; otherwise they are
	// submitted to exec with at most MaxInFlight outstanding. Process
	// returns after every dispatched task has finished, or after the drain
	// timeout once a failure was recorded. With an executor, the ctx handed
	// to tasks is cancelled by the first failure; context.Cause reports it.
	Process(ctx context.Context, filter KeyFilter, task Task[V], exec Executor, fetchValue, fetchMetadata bool) error
}

// New returns a loader in state Created. b may be nil, in which case Init
// resolves the backend from InitContext.Config through the backend registry.
func New[V any](b backend.Backend) Loader[V] {
	return newLoader[V](b)
}
