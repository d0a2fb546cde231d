package versions

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalMissingKeyIsZero(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	for k, want := range map[string]uint64{"a": 0, "b": 2, "c": 0} {
		if got, err := s.Current(ctx, k); err != nil || got != want {
			t.Fatalf("Current(%s)=%d err=%v want %d", k, got, err, want)
		}
	}
}

func TestLocalConcurrentBumps(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Bump(ctx, "k")
		}()
	}
	wg.Wait()
	if v, _ := s.Current(ctx, "k"); v != n {
		t.Fatalf("version=%d want %d", v, n)
	}
}

func TestLocalPruneForgetsOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Prune(50 * time.Millisecond)

	if v, _ := s.Current(ctx, "old"); v != 0 {
		t.Fatalf("expected pruned -> 0, got %d", v)
	}
	if v, _ := s.Current(ctx, "fresh"); v != 1 {
		t.Fatalf("fresh key pruned, got %d", v)
	}
}

func TestLocalCloseTwice(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Hour)
	_ = s.Close(context.Background())
	_ = s.Close(context.Background())
}
