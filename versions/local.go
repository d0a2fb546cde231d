package versions

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type localEntry struct {
	ver       uint64
	updatedAt time.Time
}

// Local keeps versions in-process on a concurrent map.
// An optional background loop prunes long-inactive keys.
type Local struct {
	m      *xsync.MapOf[string, localEntry]
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Local)(nil)

// NewLocal starts a prune loop when both pruneInterval and retention are > 0.
func NewLocal(pruneInterval, retention time.Duration) *Local {
	s := &Local{m: xsync.NewMapOf[string, localEntry]()}
	if pruneInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(pruneInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Prune(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Current(_ context.Context, key string) (uint64, error) {
	e, _ := s.m.Load(key)
	return e.ver, nil
}

func (s *Local) Bump(_ context.Context, key string) (uint64, error) {
	now := time.Now()
	e, _ := s.m.Compute(key, func(old localEntry, _ bool) (localEntry, bool) {
		return localEntry{ver: old.ver + 1, updatedAt: now}, false
	})
	return e.ver, nil
}

// Prune forgets keys whose last bump is older than retention. A forgotten key
// reads as version 0, so records stamped with a higher version become stale;
// choose retention longer than any record lifetime.
func (s *Local) Prune(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.m.Range(func(k string, e localEntry) bool {
		if e.updatedAt.Before(cutoff) {
			s.m.Compute(k, func(cur localEntry, loaded bool) (localEntry, bool) {
				// re-check under the bucket lock; a concurrent bump wins
				return cur, !loaded || cur.updatedAt.Before(cutoff)
			})
		}
		return true
	})
}

func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
