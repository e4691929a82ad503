// Package querycache dispatches queries and commands and caches query results with the
// cache-aside pattern.
//
// Components:
//   - Query, Command, ResultCommand, CachedQuery: operation shapes, executed against an
//     execution context C that the Mediator resolves (see package resolve).
//   - Cached: per-execution state of a cached query (bound context, key, entry options,
//     captured result) and the read/compute/write protocol.
//   - CacheKey: a prefix plus an optional vary-by value, joined by a JoinFunc.
//   - Flatten: turns any value into ordered string tokens; used for keys, Equal and Hash.
//   - Store: the backend contract. MemoryStore keeps objects in ristretto;
//     DistributedStore serializes entries (package codec) into a byte Provider
//     (Redis, BigCache, Ristretto, sturdyc). NopStore is the default when none is set.
//   - Decorator: wraps every dispatched operation (logging, tracing, metrics).
//
// Keys:
//
//	<prefix>                    - no vary-by value
//	<prefix>_<token>_<token>... - prefix followed by the flattened vary-by value
//
// The prefix defaults to the query's type name, e.g. "users.GetByID".
//
// Cache-aside:
//
//	c := querycache.Track(m, querycache.CachedQuery[*Repo, *User, querycache.EntryOptions](users.GetByID{ID: 42}))
//	u, err := querycache.RunCached(ctx, m, c, querycache.CacheDefault) // hit => no query run
//	...
//	_ = querycache.EvictCached(ctx, m, c) // after the user changes
package querycache
