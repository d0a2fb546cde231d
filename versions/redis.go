package versions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix starts every version key ("ver:<namespace>:<key>").
const KeyPrefix = "ver:"

// Redis shares per-key versions across processes and survives restarts.
// With a TTL, an expired version key reads as 0 and records stamped with a
// higher version become stale.
//
// Version keys live in the client's DB. A redis backend reading the same DB
// must use a non-empty prefix that does not start with KeyPrefix, or its
// enumeration and size will include the version keys.
type Redis struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace, usually the cache name
	ttl time.Duration // 0 disables expiry
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL refreshes the version key TTL on every bump. ttl <= 0 means no expiry.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return KeyPrefix + s.ns + ":" + k }

func (s *Redis) Current(ctx context.Context, key string) (uint64, error) {
	u, err := s.rdb.Get(ctx, s.key(key)).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis version %s: %w", key, err)
	}
	return u, nil
}

// Bump pipelines INCR + EXPIRE when a TTL is configured.
func (s *Redis) Bump(ctx context.Context, key string) (uint64, error) {
	k := s.key(key)
	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Uint64()
	}
	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Uint64()
}

func (s *Redis) Prune(time.Duration) {}

// Close does not close the client; it is usually shared with a backend.
func (s *Redis) Close(context.Context) error { return nil }
