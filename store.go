package querycache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store is the cache backend contract used by cached queries. O is the backend-specific
// entry options type (TTL, cost, ...), passed through untouched on writes.
//
// Contract:
//   - Get fills dst, which must be a non-nil *Entry[T], and reports true on a hit. A hit
//     may wrap the zero value of T. A miss returns (false, nil).
//   - Set stores entry, an Entry[T], under key.
//   - Remove is idempotent.
//   - Backend failures are returned as errors and must never be reported as a miss.
//   - A single call is the unit of consistency; there are no cross-key guarantees.
//   - Implementations must be safe for concurrent use and should honor ctx.
type Store[O any] interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, entry any, opts O) error
	Remove(ctx context.Context, key string) error
}

// GetEntry reads the entry for key. It returns nil, nil on a miss.
func GetEntry[T, O any](ctx context.Context, s Store[O], key string) (*Entry[T], error) {
	var e Entry[T]
	ok, err := s.Get(ctx, key, &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

// SetEntry writes e under key.
func SetEntry[T, O any](ctx context.Context, s Store[O], key string, e Entry[T], opts O) error {
	return s.Set(ctx, key, e, opts)
}

// EntryOptions are the write options understood by MemoryStore and DistributedStore.
type EntryOptions struct {
	// TTL bounds the entry lifetime. Zero means the store default; backends without
	// per-entry TTLs ignore it.
	TTL time.Duration
	// Cost is the admission cost for cost-aware backends. Zero means 1.
	Cost int64
}

// Validate checks the options.
func (o EntryOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.TTL, validation.Min(time.Duration(0))),
		validation.Field(&o.Cost, validation.Min(int64(0))),
	)
}

// NopStore is permanently empty and discards writes. It is the store used when none is
// configured.
type NopStore[O any] struct{}

var _ Store[EntryOptions] = NopStore[EntryOptions]{}

func (NopStore[O]) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NopStore[O]) Set(context.Context, string, any, O) error      { return nil }
func (NopStore[O]) Remove(context.Context, string) error           { return nil }

// assignEntry copies an in-process entry object into dst.
func assignEntry(dst, entry any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return &ArgumentError{Name: "dst", Err: fmt.Errorf("want non-nil pointer, got %T", dst)}
	}
	ev := reflect.ValueOf(entry)
	if !ev.IsValid() || !ev.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("%w: have %T, want %s", ErrEntryType, entry, dv.Elem().Type())
	}
	dv.Elem().Set(ev)
	return nil
}
