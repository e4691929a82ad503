package querycache

import (
	"context"
	"fmt"
)

// CachedOption configures a Cached query.
type CachedOption func(*cachedConfig)

type cachedConfig struct {
	join  JoinFunc
	log   Logger
	hooks Hooks
}

// WithKeyJoin sets the join strategy used to build the cache key.
func WithKeyJoin(fn JoinFunc) CachedOption {
	return func(c *cachedConfig) { c.join = fn }
}

// WithCacheLogger sets the logger for cache hit/miss events.
func WithCacheLogger(l Logger) CachedOption {
	return func(c *cachedConfig) { c.log = l }
}

// WithCacheHooks sets the hooks notified of hits and misses.
func WithCacheHooks(h Hooks) CachedOption {
	return func(c *cachedConfig) { c.hooks = h }
}

// Cached runs a CachedQuery with the cache-aside protocol and keeps the per-execution
// state: the bound execution context, the lazily computed key and entry options, and the
// captured result.
//
// States: unbound (no context) -> bound (Bind or Execute) -> resolved (result captured).
// Every bind discards the previous key, options and result.
//
// A Cached value is meant for one logical execution at a time and is not safe for
// concurrent use; give each concurrent execution its own instance.
type Cached[C, T, O any] struct {
	query CachedQuery[C, T, O]
	cfg   cachedConfig

	execCtx C
	bound   bool

	key      string
	keyReady bool

	opts      O
	optsReady bool

	result   T
	resolved bool
}

// NewCached wraps q.
func NewCached[C, T, O any](q CachedQuery[C, T, O], opts ...CachedOption) *Cached[C, T, O] {
	c := &Cached[C, T, O]{query: q}
	for _, opt := range opts {
		opt(&c.cfg)
	}
	return c
}

// Query returns the wrapped query.
func (c *Cached[C, T, O]) Query() CachedQuery[C, T, O] { return c.query }

// Bind sets the execution context and resets key, options and result.
func (c *Cached[C, T, O]) Bind(execCtx C) {
	var (
		zeroO O
		zeroT T
	)
	c.execCtx = execCtx
	c.bound = true
	c.key, c.keyReady = "", false
	c.opts, c.optsReady = zeroO, false
	c.result, c.resolved = zeroT, false
}

// Bound reports whether an execution context has been bound.
func (c *Cached[C, T, O]) Bound() bool { return c.bound }

// Resolved reports whether a result was captured since the last bind.
func (c *Cached[C, T, O]) Resolved() bool { return c.resolved }

// Result returns the captured result, or ErrResultNotAvailable.
func (c *Cached[C, T, O]) Result() (T, error) {
	if !c.resolved {
		var zero T
		return zero, ErrResultNotAvailable
	}
	return c.result, nil
}

// CacheKey returns the key for the bound context, computing it on first use. When nothing
// is bound the zero C is used.
func (c *Cached[C, T, O]) CacheKey() (string, error) {
	if c.keyReady {
		return c.key, nil
	}
	if c.query == nil {
		return "", ErrNilQuery
	}
	key, err := NewCacheKey(OperationName(c.query), WithJoin(c.cfg.join))
	if err != nil {
		return "", err
	}
	if err := c.query.ConfigureCacheKey(c.execCtx, key); err != nil {
		return "", fmt.Errorf("querycache: configure cache key for %s: %w", OperationName(c.query), err)
	}
	c.key, c.keyReady = key.Value(), true
	return c.key, nil
}

func (c *Cached[C, T, O]) entryOptions() O {
	if !c.optsReady {
		c.opts, c.optsReady = c.query.CacheEntryOptions(c.execCtx), true
	}
	return c.opts
}

func (c *Cached[C, T, O]) capture(v T) {
	c.result, c.resolved = v, true
}

// Execute binds execCtx and runs the cache-aside protocol against store.
//
// With CacheDefault a hit returns the stored value without running the query or asking
// for entry options; a miss runs the query and writes its result. With CacheRefresh the
// read is skipped and the result is always written. Query and store errors are returned
// unchanged; a failing query writes nothing.
func (c *Cached[C, T, O]) Execute(ctx context.Context, execCtx C, store Store[O], opt CacheOption) (T, error) {
	var zero T
	if store == nil {
		return zero, ErrNilStore
	}
	if c.query == nil {
		return zero, ErrNilQuery
	}
	c.Bind(execCtx)

	key, err := c.CacheKey()
	if err != nil {
		return zero, err
	}

	if opt != CacheRefresh {
		e, err := GetEntry[T](ctx, store, key)
		if err != nil {
			return zero, err
		}
		if e != nil {
			c.capture(e.Value)
			c.hooks().CacheHit(key)
			c.logger().Debug("cache hit", Fields{"key": key})
			return e.Value, nil
		}
		c.hooks().CacheMiss(key)
		c.logger().Debug("cache miss", Fields{"key": key})
	} else {
		c.logger().Debug("cache refresh", Fields{"key": key})
	}

	v, err := c.query.Execute(ctx, execCtx)
	if err != nil {
		return zero, err
	}
	c.capture(v)
	if err := SetEntry(ctx, store, key, NewEntry(v), c.entryOptions()); err != nil {
		return zero, err
	}
	return v, nil
}

// EvictCachedResult removes the entry at the current key. It does not need a result.
func (c *Cached[C, T, O]) EvictCachedResult(ctx context.Context, store Store[O]) error {
	if store == nil {
		return ErrNilStore
	}
	key, err := c.CacheKey()
	if err != nil {
		return err
	}
	if err := store.Remove(ctx, key); err != nil {
		return err
	}
	c.logger().Debug("cache evict", Fields{"key": key})
	return nil
}

// UpdateCachedResult writes the captured result back under the current key. It fails
// with ErrResultNotAvailable when nothing was resolved since the last bind.
func (c *Cached[C, T, O]) UpdateCachedResult(ctx context.Context, store Store[O]) error {
	if store == nil {
		return ErrNilStore
	}
	if !c.resolved {
		return ErrResultNotAvailable
	}
	key, err := c.CacheKey()
	if err != nil {
		return err
	}
	return SetEntry(ctx, store, key, NewEntry(c.result), c.entryOptions())
}

func (c *Cached[C, T, O]) logger() Logger { return orDefault[Logger](c.cfg.log, NopLogger{}) }
func (c *Cached[C, T, O]) hooks() Hooks   { return orDefault[Hooks](c.cfg.hooks, NopHooks{}) }
