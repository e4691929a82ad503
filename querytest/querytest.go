// Package querytest provides test doubles for code that dispatches queries and commands.
//
// Operations are matched by value (querycache.Equal), so a test can stub a query it never
// holds a reference to:
//
//	d := querytest.NewDouble()
//	querytest.Returns(d, users.GetByID{ID: 42}, users.User{Name: "X"}, nil)
//
//	u, err := querytest.Dispatch[users.User](d, users.GetByID{ID: 42}) // built elsewhere
package querytest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/unkn0wn-root/querycache"
)

// ErrNoStub is returned by Dispatch for an operation nothing was stubbed for.
var ErrNoStub = errors.New("querytest: no stub for operation")

// Map associates operation values with V. Keys match by querycache.Equal and are bucketed
// by querycache.Hash.
type Map[V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]pair[V]
	n       int
}

type pair[V any] struct {
	key any
	val V
}

// Put stores v under key, replacing an equal key.
func (m *Map[V]) Put(key any, v V) {
	h := querycache.Hash(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets == nil {
		m.buckets = make(map[uint64][]pair[V])
	}
	b := m.buckets[h]
	for i := range b {
		if querycache.Equal(b[i].key, key) {
			b[i].val = v
			return
		}
	}
	m.buckets[h] = append(b, pair[V]{key: key, val: v})
	m.n++
}

// Get returns the value stored under a key equal to key.
func (m *Map[V]) Get(key any) (V, bool) {
	h := querycache.Hash(key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.buckets[h] {
		if querycache.Equal(p.key, key) {
			return p.val, true
		}
	}
	var zero V
	return zero, false
}

// Len returns the number of distinct keys.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.n
}

type response struct {
	val any
	err error
}

// Double answers dispatched operations from stubs and records every call.
type Double struct {
	stubs  Map[response]
	counts Map[int]

	mu    sync.Mutex
	calls []any
}

func NewDouble() *Double { return &Double{} }

// Returns stubs op (matched by value) to yield v and err.
func Returns[T any](d *Double, op any, v T, err error) {
	d.stubs.Put(op, response{val: v, err: err})
}

// Fails stubs op to yield err.
func Fails(d *Double, op any, err error) {
	d.stubs.Put(op, response{err: err})
}

// Dispatch records op and returns its stubbed result.
func Dispatch[T any](d *Double, op any) (T, error) {
	d.record(op)
	var zero T
	r, ok := d.stubs.Get(op)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoStub, querycache.OperationName(op))
	}
	if r.err != nil {
		return zero, r.err
	}
	if r.val == nil {
		return zero, nil
	}
	v, ok := r.val.(T)
	if !ok {
		return zero, fmt.Errorf("querytest: stub for %s returns %T, want %s",
			querycache.OperationName(op), r.val, reflect.TypeFor[T]())
	}
	return v, nil
}

// Exec records a command and returns its stubbed error. Unstubbed commands succeed.
func (d *Double) Exec(op any) error {
	d.record(op)
	if r, ok := d.stubs.Get(op); ok {
		return r.err
	}
	return nil
}

func (d *Double) record(op any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op)
	n, _ := d.counts.Get(op)
	d.counts.Put(op, n+1)
}

// Calls returns every recorded operation in call order.
func (d *Double) Calls() []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]any(nil), d.calls...)
}

// Called returns how many recorded operations equal op.
func (d *Double) Called(op any) int {
	n, _ := d.counts.Get(op)
	return n
}

// Store is an in-memory querycache.Store that records traffic and can inject failures.
// Entries are kept as objects, like querycache.MemoryStore, without eviction.
type Store[O any] struct {
	mu      sync.Mutex
	entries map[string]any
	opts    map[string]O

	Gets, Sets, Removes int

	// Err* are returned by the matching method when set.
	ErrGet, ErrSet, ErrRemove error
}

var _ querycache.Store[querycache.EntryOptions] = (*Store[querycache.EntryOptions])(nil)

func NewStore[O any]() *Store[O] {
	return &Store[O]{entries: make(map[string]any), opts: make(map[string]O)}
}

func (s *Store[O]) Get(ctx context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.ErrGet != nil {
		return false, s.ErrGet
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	dv := reflect.ValueOf(dst)
	ev := reflect.ValueOf(e)
	if dv.Kind() != reflect.Pointer || dv.IsNil() || !ev.Type().AssignableTo(dv.Elem().Type()) {
		return false, fmt.Errorf("%w: have %T, want %T", querycache.ErrEntryType, e, dst)
	}
	dv.Elem().Set(ev)
	return true, nil
}

func (s *Store[O]) Set(ctx context.Context, key string, entry any, opts O) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sets++
	if s.ErrSet != nil {
		return s.ErrSet
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries[key] = entry
	s.opts[key] = opts
	return nil
}

func (s *Store[O]) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Removes++
	if s.ErrRemove != nil {
		return s.ErrRemove
	}
	delete(s.entries, key)
	delete(s.opts, key)
	return nil
}

// Has reports whether key holds an entry.
func (s *Store[O]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Options returns the options key was last written with.
func (s *Store[O]) Options(key string) (O, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opts[key]
	return o, ok
}

// Len returns the number of stored entries.
func (s *Store[O]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
