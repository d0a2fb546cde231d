// Package memory is an in-process backend. Keys are kept sorted so that
// enumeration is ordered and resumes correctly across concurrent writes.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/config"
)

const Kind = "memory"

func init() {
	backend.Register(Kind, func(config.Section) (backend.Backend, error) {
		return New(), nil
	})
}

// Store is safe for concurrent use. Put/Delete work before Open so a store
// can be seeded ahead of the loader start.
type Store struct {
	mu   sync.RWMutex
	m    map[string][]byte
	keys []string // sorted
	open bool
}

var (
	_ backend.Backend = (*Store)(nil)
	_ backend.Writer  = (*Store)(nil)
)

func New() *Store { return &Store{m: make(map[string][]byte)} }

func (s *Store) Name() string { return Kind }

func (s *Store) Open(context.Context) error {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, false, backend.ErrNotOpen
	}
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Len(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, backend.ErrNotOpen
	}
	return int64(len(s.keys)), nil
}

func (s *Store) Put(_ context.Context, key string, record []byte) error {
	v := make([]byte, len(record))
	copy(v, record)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[key]; !exists {
		i := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = key
	}
	s.m[key] = v
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; !ok {
		return nil
	}
	delete(s.m, key)
	i := sort.SearchStrings(s.keys, key)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return nil
}

func (s *Store) Keys(context.Context) backend.KeyIterator {
	return &iter{s: s}
}

// iter remembers the last yielded key and re-seeks on every step, so it
// never holds the lock between calls.
type iter struct {
	s       *Store
	last    string
	started bool
	cur     string
	err     error
	done    bool
}

func (it *iter) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err, it.done = err, true
		return false
	}
	it.s.mu.RLock()
	defer it.s.mu.RUnlock()
	if !it.s.open {
		it.err, it.done = backend.ErrNotOpen, true
		return false
	}
	keys := it.s.keys
	i := 0
	if it.started {
		i = sort.SearchStrings(keys, it.last)
		if i < len(keys) && keys[i] == it.last {
			i++
		}
	}
	if i >= len(keys) {
		it.done = true
		return false
	}
	it.cur = keys[i]
	it.last, it.started = it.cur, true
	return true
}

func (it *iter) Key() string { return it.cur }
func (it *iter) Err() error  { return it.err }

func (it *iter) Close() error {
	it.done = true
	return nil
}
