package querycache

import "context"

// Query reads data from an execution context of type C.
type Query[C, T any] interface {
	Execute(ctx context.Context, c C) (T, error)
}

// Command changes state through an execution context of type C.
type Command[C any] interface {
	Execute(ctx context.Context, c C) error
}

// ResultCommand is a Command that also returns a value (e.g. a generated ID).
type ResultCommand[C, T any] interface {
	Execute(ctx context.Context, c C) (T, error)
}

// CachedQuery is a Query whose result can be stored in a Store[O].
//
// ConfigureCacheKey receives a key whose prefix defaults to the query's type name and
// typically sets the vary-by value to whatever the result depends on. CacheEntryOptions
// is consulted only when a result is written.
type CachedQuery[C, T, O any] interface {
	Query[C, T]
	ConfigureCacheKey(c C, key *CacheKey) error
	CacheEntryOptions(c C) O
}

// CacheOption selects how a cached query uses its store.
type CacheOption int

const (
	// CacheDefault reads the store first and runs the query only on a miss.
	CacheDefault CacheOption = iota
	// CacheRefresh skips the read, always runs the query and always writes the result.
	CacheRefresh
)

func (o CacheOption) String() string {
	switch o {
	case CacheDefault:
		return "default"
	case CacheRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}
