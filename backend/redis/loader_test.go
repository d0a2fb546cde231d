package redis_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cacheloader"
	"github.com/unkn0wn-root/cacheloader/backend/redis"
	"github.com/unkn0wn-root/cacheloader/codec"
	"github.com/unkn0wn-root/cacheloader/config"
	"github.com/unkn0wn-root/cacheloader/executor"
	"github.com/unkn0wn-root/cacheloader/versions"
)

type profile struct {
	Name  string
	Score int
}

var profiles = codec.Msgpack[profile]{}

func visitAll(t *testing.T, l cacheloader.Loader[profile]) []string {
	t.Helper()
	var (
		mu   sync.Mutex
		keys []string
	)
	err := l.Process(context.Background(), nil, func(_ context.Context, e cacheloader.Entry[profile]) error {
		v, ok := e.Value()
		if !ok || v.Name != e.Key() {
			return fmt.Errorf("%s: value %+v ok=%v", e.Key(), v, ok)
		}
		mu.Lock()
		keys = append(keys, e.Key())
		mu.Unlock()
		return nil
	}, executor.Go{}, true, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	sort.Strings(keys)
	return keys
}

func TestLoaderOverRedisKind(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	writer, err := redis.New(redis.Config{Client: client, Settings: redis.Settings{Prefix: "users:"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Open(ctx); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"u1", "u2", "u3"} {
		if err := cacheloader.WriteEntry(ctx, writer, profiles, k, profile{Name: k}, cacheloader.Metadata{}); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	_ = mr.Set("orders:1", "not ours")

	file, err := config.ParseYAML([]byte(fmt.Sprintf(`
caches:
  users:
    backend: redis
    codec: msgpack
    max_in_flight: 2
    settings:
      addrs: [%q]
      prefix: "users:"
      scan_count: 1
`, mr.Addr())))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := file.Cache("users")
	if err != nil {
		t.Fatal(err)
	}

	vs := versions.NewRedisWithTTL(client, "users", time.Minute)
	l := cacheloader.New[profile](nil)
	if err := l.Init(cacheloader.InitContext[profile]{CacheName: "users", Config: cfg, Versions: vs}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop(ctx)

	e, ok, err := l.Load(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("Load u1: ok=%v err=%v", ok, err)
	}
	if v, _ := e.Value(); v.Name != "u1" {
		t.Fatalf("value=%+v", v)
	}
	if ok, err := l.Contains(ctx, "u1"); err != nil || !ok {
		t.Fatalf("Contains u1: ok=%v err=%v", ok, err)
	}
	if ok, err := l.Contains(ctx, "nope"); err != nil || ok {
		t.Fatalf("Contains nope: ok=%v err=%v", ok, err)
	}
	if got := visitAll(t, l); fmt.Sprint(got) != "[u1 u2 u3]" {
		t.Fatalf("visited %v", got)
	}

	// a bump makes u2 stale and writes ver:users:u2 into the same DB
	cur, err := vs.Bump(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(versions.KeyPrefix + "users:u2"); ttl <= 0 {
		t.Fatalf("version key ttl=%v, want refreshed on bump", ttl)
	}
	if _, ok, err := l.Load(ctx, "u2"); err != nil || ok {
		t.Fatalf("stale Load: ok=%v err=%v", ok, err)
	}
	if ok, err := l.Contains(ctx, "u2"); err != nil || ok {
		t.Fatalf("stale Contains: ok=%v err=%v", ok, err)
	}
	if got := visitAll(t, l); fmt.Sprint(got) != "[u1 u3]" {
		t.Fatalf("visited %v after bump", got)
	}
	// the prefix keeps version keys and foreign keys out of the count
	if n := l.Size(ctx); n != 3 {
		t.Fatalf("Size=%d want 3", n)
	}

	if err := cacheloader.WriteEntry(ctx, writer, profiles, "u2", profile{Name: "u2"}, cacheloader.Metadata{Version: cur}); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := l.Load(ctx, "u2"); err != nil || !ok {
		t.Fatalf("rewritten Load: ok=%v err=%v", ok, err)
	}
}

func TestRedisVersionsWithoutTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	vs := versions.NewRedis(client, "ns")
	if v, err := vs.Current(ctx, "k"); err != nil || v != 0 {
		t.Fatalf("missing version=%d err=%v", v, err)
	}
	for want := uint64(1); want <= 2; want++ {
		if v, err := vs.Bump(ctx, "k"); err != nil || v != want {
			t.Fatalf("Bump=%d err=%v want %d", v, err, want)
		}
	}
	if v, _ := vs.Current(ctx, "k"); v != 2 {
		t.Fatalf("Current=%d want 2", v)
	}
	if ttl := mr.TTL(versions.KeyPrefix + "ns:k"); ttl != 0 {
		t.Fatalf("ttl=%v want none", ttl)
	}
}
