// Package resolve locates execution contexts for dispatched operations.
//
// A Resolver maps a type to an instance, typically backed by an application's dependency
// container. Container is a small in-process implementation:
//
//	c := resolve.NewContainer()
//	resolve.Register[*sql.DB](c, db)
//	resolve.Provide(c, func() (*UserRepo, error) { return NewUserRepo(db), nil })
//
//	repo, err := resolve.Resolve[*UserRepo](c)
//
// Composite contexts (Pair, Triple) are resolved member by member, so an operation can
// ask for several collaborators at once without registering the tuple itself.
package resolve

import (
	"fmt"
	"reflect"
	"sync"
)

// Resolver looks up an instance for t. It returns ok=false when t is not registered.
type Resolver interface {
	Lookup(t reflect.Type) (v any, ok bool, err error)
}

// ResolveError reports a type that could not be resolved.
type ResolveError struct {
	Type reflect.Type
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %v", typeName(e.Type), e.Err)
	}
	return fmt.Sprintf("resolve %s: not registered", typeName(e.Type))
}

func (e *ResolveError) Unwrap() error { return e.Err }

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// composite is implemented by pointers to tuple types that resolve their members.
type composite interface {
	resolveFrom(r Resolver) error
}

// Resolve returns the instance registered for T. Unregistered Pair and Triple types are
// assembled from their members.
func Resolve[T any](r Resolver) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	if r == nil {
		return zero, &ResolveError{Type: t, Err: fmt.Errorf("nil resolver")}
	}
	v, ok, err := r.Lookup(t)
	if err != nil {
		return zero, &ResolveError{Type: t, Err: err}
	}
	if ok {
		out, isT := v.(T)
		if !isT && v != nil {
			return zero, &ResolveError{Type: t, Err: fmt.Errorf("registered value has type %T", v)}
		}
		return out, nil
	}
	if c, isComposite := any(&zero).(composite); isComposite {
		if err := c.resolveFrom(r); err != nil {
			return zero, &ResolveError{Type: t, Err: err}
		}
		return zero, nil
	}
	return zero, &ResolveError{Type: t}
}

// TryResolve is Resolve without the error for a missing registration: it returns
// ok=false when T is not registered and fails only on lookup errors.
func TryResolve[T any](r Resolver) (T, bool, error) {
	var zero T
	if r == nil {
		return zero, false, nil
	}
	t := reflect.TypeFor[T]()
	v, ok, err := r.Lookup(t)
	if err != nil {
		return zero, false, &ResolveError{Type: t, Err: err}
	}
	if !ok {
		return zero, false, nil
	}
	out, isT := v.(T)
	if !isT && v != nil {
		return zero, false, &ResolveError{Type: t, Err: fmt.Errorf("registered value has type %T", v)}
	}
	return out, true, nil
}

// Pair is a composite execution context of two resolved members.
type Pair[A, B any] struct {
	First  A
	Second B
}

func (p *Pair[A, B]) resolveFrom(r Resolver) error {
	var err error
	if p.First, err = Resolve[A](r); err != nil {
		return err
	}
	p.Second, err = Resolve[B](r)
	return err
}

// Triple is a composite execution context of three resolved members.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func (t *Triple[A, B, C]) resolveFrom(r Resolver) error {
	var err error
	if t.First, err = Resolve[A](r); err != nil {
		return err
	}
	if t.Second, err = Resolve[B](r); err != nil {
		return err
	}
	t.Third, err = Resolve[C](r)
	return err
}

// Container is a concurrency-safe Resolver holding instances and lazy singleton factories.
type Container struct {
	mu        sync.RWMutex
	instances map[reflect.Type]any
	factories map[reflect.Type]*factory
}

type factory struct {
	once sync.Once
	fn   func() (any, error)
	v    any
	err  error
}

var _ Resolver = (*Container)(nil)

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		instances: make(map[reflect.Type]any),
		factories: make(map[reflect.Type]*factory),
	}
}

// Register binds v to T, replacing any earlier registration.
func Register[T any](c *Container, v T) {
	t := reflect.TypeFor[T]()
	c.mu.Lock()
	c.instances[t] = v
	delete(c.factories, t)
	c.mu.Unlock()
}

// Provide binds a factory to T. The factory runs once, on first lookup; its result (or
// error) is reused afterwards.
func Provide[T any](c *Container, fn func() (T, error)) {
	t := reflect.TypeFor[T]()
	c.mu.Lock()
	c.factories[t] = &factory{fn: func() (any, error) { return fn() }}
	delete(c.instances, t)
	c.mu.Unlock()
}

// Lookup implements Resolver.
func (c *Container) Lookup(t reflect.Type) (any, bool, error) {
	c.mu.RLock()
	v, ok := c.instances[t]
	f := c.factories[t]
	c.mu.RUnlock()
	if ok {
		return v, true, nil
	}
	if f == nil {
		return nil, false, nil
	}
	f.once.Do(func() { f.v, f.err = f.fn() })
	if f.err != nil {
		return nil, false, f.err
	}
	return f.v, true, nil
}
