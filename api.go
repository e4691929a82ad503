package querycache

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/querycache/resolve"
)

// Options configure a Mediator.
// Only Resolver is required; others have sensible defaults.
type Options struct {
	// Required
	Resolver resolve.Resolver // finds execution contexts and stores by type

	Decorator Decorator // wraps every dispatched operation; nil => NopDecorator
	Logger    Logger    // if nil, NopLogger is used
	Hooks     Hooks     // if nil, NopHooks is used
	KeyJoin   JoinFunc  // cache key join strategy; nil => DefaultJoin
}

// Validate checks the options.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Resolver, validation.NotNil),
	)
}

// Mediator dispatches queries and commands. For each call it resolves the operation's
// execution context from the Resolver, runs the operation inside the Decorator and, for
// cached queries, resolves the Store[O] to read and write.
//
// A Mediator is safe for concurrent use.
type Mediator struct {
	resolver  resolve.Resolver
	decorator Decorator
	log       Logger
	hooks     Hooks
	join      JoinFunc
}

// New validates opts and builds a Mediator.
func New(opts Options) (*Mediator, error) {
	if opts.Resolver == nil {
		return nil, ErrNilResolver
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Mediator{
		resolver:  opts.Resolver,
		decorator: orDefault[Decorator](opts.Decorator, NopDecorator{}),
		log:       orDefault[Logger](opts.Logger, NopLogger{}),
		hooks:     orDefault[Hooks](opts.Hooks, NopHooks{}),
		join:      opts.KeyJoin,
	}, nil
}

// Resolver returns the resolver the mediator dispatches with.
func (m *Mediator) Resolver() resolve.Resolver { return m.resolver }

func (m *Mediator) cachedOptions() []CachedOption {
	return []CachedOption{WithKeyJoin(m.join), WithCacheLogger(m.log), WithCacheHooks(m.hooks)}
}

// Track wraps q for use with RunCached, EvictCached and UpdateCached, configured with the
// mediator's key join, logger and hooks.
func Track[C, T, O any](m *Mediator, q CachedQuery[C, T, O]) *Cached[C, T, O] {
	return NewCached(q, m.cachedOptions()...)
}

// RunQuery resolves C and executes q.
func RunQuery[C, T any](ctx context.Context, m *Mediator, q Query[C, T]) (T, error) {
	op := OperationName(q)
	return decorate(ctx, m.decorator, op, func(ctx context.Context) (T, error) {
		var zero T
		if q == nil {
			return zero, ErrNilQuery
		}
		c, err := resolve.Resolve[C](m.resolver)
		if err != nil {
			return zero, err
		}
		m.log.Debug("query", Fields{"op": op})
		return q.Execute(ctx, c)
	})
}

// RunCommand resolves C and executes cmd.
func RunCommand[C any](ctx context.Context, m *Mediator, cmd Command[C]) error {
	op := OperationName(cmd)
	return m.decorator.Decorate(ctx, op, func(ctx context.Context) error {
		if cmd == nil {
			return ErrNilQuery
		}
		c, err := resolve.Resolve[C](m.resolver)
		if err != nil {
			return err
		}
		m.log.Debug("command", Fields{"op": op})
		return cmd.Execute(ctx, c)
	})
}

// RunCommandResult resolves C and executes cmd, returning its value.
func RunCommandResult[C, T any](ctx context.Context, m *Mediator, cmd ResultCommand[C, T]) (T, error) {
	op := OperationName(cmd)
	return decorate(ctx, m.decorator, op, func(ctx context.Context) (T, error) {
		var zero T
		if cmd == nil {
			return zero, ErrNilQuery
		}
		c, err := resolve.Resolve[C](m.resolver)
		if err != nil {
			return zero, err
		}
		m.log.Debug("command", Fields{"op": op})
		return cmd.Execute(ctx, c)
	})
}

// RunCached resolves C and Store[O] and executes the tracked query with the cache-aside
// protocol. When no Store[O] is registered the query runs uncached against a NopStore.
// After a successful run c holds the result, ready for UpdateCached.
func RunCached[C, T, O any](ctx context.Context, m *Mediator, c *Cached[C, T, O], opt CacheOption) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrNilQuery
	}
	op := OperationName(c.Query())
	return decorate(ctx, m.decorator, op, func(ctx context.Context) (T, error) {
		execCtx, err := resolve.Resolve[C](m.resolver)
		if err != nil {
			return zero, err
		}
		store, err := storeFor[O](m, op)
		if err != nil {
			return zero, err
		}
		m.log.Debug("cached query", Fields{"op": op, "option": opt.String()})
		return c.Execute(ctx, execCtx, store, opt)
	})
}

// EvictCached removes the entry the tracked query maps to. If c has not been executed
// yet, C is resolved and bound first so the key reflects the current context.
func EvictCached[C, T, O any](ctx context.Context, m *Mediator, c *Cached[C, T, O]) error {
	if c == nil {
		return ErrNilQuery
	}
	op := OperationName(c.Query())
	return m.decorator.Decorate(ctx, op, func(ctx context.Context) error {
		if !c.Bound() {
			execCtx, err := resolve.Resolve[C](m.resolver)
			if err != nil {
				return err
			}
			c.Bind(execCtx)
		}
		store, err := storeFor[O](m, op)
		if err != nil {
			return err
		}
		return c.EvictCachedResult(ctx, store)
	})
}

// UpdateCached writes the result captured by the last RunCached back to the store. It
// fails with ErrResultNotAvailable if c has no result.
func UpdateCached[C, T, O any](ctx context.Context, m *Mediator, c *Cached[C, T, O]) error {
	if c == nil {
		return ErrNilQuery
	}
	op := OperationName(c.Query())
	return m.decorator.Decorate(ctx, op, func(ctx context.Context) error {
		store, err := storeFor[O](m, op)
		if err != nil {
			return err
		}
		return c.UpdateCachedResult(ctx, store)
	})
}

func storeFor[O any](m *Mediator, op string) (Store[O], error) {
	store, ok, err := resolve.TryResolve[Store[O]](m.resolver)
	if err != nil {
		return nil, err
	}
	if !ok || store == nil {
		m.log.Debug("no store registered, running uncached", Fields{"op": op})
		return NopStore[O]{}, nil
	}
	return store, nil
}
