package querycache

import (
	"context"
	"time"
)

// Decorator wraps every operation the Mediator dispatches. op is the operation's type
// name (see OperationName).
//
// Contract:
//   - Decorate must call next at most once and return its error unchanged; it may observe
//     the error but must not swallow or replace it.
//   - Results travel outside the decorator, so they are preserved by construction.
type Decorator interface {
	Decorate(ctx context.Context, op string, next func(context.Context) error) error
}

// DecoratorFunc adapts a function to Decorator.
type DecoratorFunc func(ctx context.Context, op string, next func(context.Context) error) error

func (f DecoratorFunc) Decorate(ctx context.Context, op string, next func(context.Context) error) error {
	return f(ctx, op, next)
}

// NopDecorator calls next and nothing else.
type NopDecorator struct{}

func (NopDecorator) Decorate(ctx context.Context, _ string, next func(context.Context) error) error {
	return next(ctx)
}

// Chain composes decorators; the first one is outermost. Nil entries are skipped.
func Chain(ds ...Decorator) Decorator {
	var list []Decorator
	for _, d := range ds {
		if d != nil {
			list = append(list, d)
		}
	}
	switch len(list) {
	case 0:
		return NopDecorator{}
	case 1:
		return list[0]
	}
	return chain(list)
}

type chain []Decorator

func (c chain) Decorate(ctx context.Context, op string, next func(context.Context) error) error {
	call := next
	for i := len(c) - 1; i >= 0; i-- {
		d, inner := c[i], call
		call = func(ctx context.Context) error { return d.Decorate(ctx, op, inner) }
	}
	return call(ctx)
}

// decorate runs fn through d and hands back fn's result.
func decorate[T any](ctx context.Context, d Decorator, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := d.Decorate(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// LoggingDecorator logs each operation with its duration: debug on success, warn on error.
type LoggingDecorator struct {
	Logger Logger
}

func (d LoggingDecorator) Decorate(ctx context.Context, op string, next func(context.Context) error) error {
	log := orDefault[Logger](d.Logger, NopLogger{})
	start := time.Now()
	err := next(ctx)
	f := Fields{"op": op, "duration_ms": float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		f["err"] = err
		log.Warn("operation failed", f)
		return err
	}
	log.Debug("operation completed", f)
	return nil
}
