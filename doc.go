// Package cacheloader is the read side of a cache's persistence layer: a
// Loader gives the cache core point lookups, containment checks, size
// estimates and bulk iteration over an external store it does not implement.
//
// Components:
//   - backend.Backend: enumerable byte store (memory, Redis, SQLite, BigCache),
//     optionally fronted by a Ristretto near cache.
//   - codec.Codec[V]: turns stored payloads back into V.
//   - versions.Store: optional per-key invalidation versions.
//   - Executor: where Process runs tasks; nil means inline.
//
// Records:
//
//	magic | ver | kind | version | created | expires | len | payload
//
// The header alone decides whether a record is live (not expired, version
// current), so Contains never transfers payloads when the backend can read a
// byte range.
//
// Lifecycle:
//
//	l := cacheloader.New[User](nil)
//	_ = l.Init(cacheloader.InitContext[User]{CacheName: "users", Config: cfg})
//	_ = l.Start(ctx)
//	defer l.Stop(ctx)
//	e, ok, err := l.Load(ctx, "u:1")
package cacheloader
