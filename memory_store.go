package querycache

import (
	"context"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MemoryConfig configures a MemoryStore. Counters, cost and buffer sizes map directly to
// ristretto; see its documentation for sizing advice.
type MemoryConfig struct {
	NumCounters int64 // 0 => 1e5
	MaxCost     int64 // 0 => 1e4 (with the default cost of 1 per entry: number of entries)
	BufferItems int64 // 0 => 64
	Metrics     bool

	DefaultTTL time.Duration // applied when EntryOptions.TTL is zero; 0 => no expiry
	Hooks      Hooks         // nil => NopHooks
}

// Validate checks the configuration after defaults are applied.
func (c MemoryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NumCounters, validation.Min(int64(0))),
		validation.Field(&c.MaxCost, validation.Min(int64(0))),
		validation.Field(&c.BufferItems, validation.Min(int64(0))),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
	)
}

// MemoryStore is an in-process Store. Entries are kept as objects, without serialization,
// so a hit hands back the very Entry[T] that was written.
type MemoryStore struct {
	c          *rc.Cache
	defaultTTL time.Duration
	hooks      Hooks
}

var _ Store[EntryOptions] = (*MemoryStore)(nil)

// NewMemoryStore builds a ristretto-backed MemoryStore.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("querycache: memory store config: %w", err)
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: coalesce(cfg.NumCounters, 1e5),
		MaxCost:     coalesce(cfg.MaxCost, 1e4),
		BufferItems: coalesce(cfg.BufferItems, 64),
		Metrics:     cfg.Metrics,
		// costs are per entry, not per byte
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		c:          c,
		defaultTTL: cfg.DefaultTTL,
		hooks:      orDefault[Hooks](cfg.Hooks, NopHooks{}),
	}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := s.c.Get(key)
	if !ok {
		return false, nil
	}
	if err := assignEntry(dst, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores entry. Writes are made visible before Set returns.
func (s *MemoryStore) Set(ctx context.Context, key string, entry any, opts EntryOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return &ArgumentError{Name: "opts", Err: err}
	}
	ttl := coalesce(opts.TTL, s.defaultTTL)
	if !s.c.SetWithTTL(key, entry, coalesce(opts.Cost, 1), ttl) {
		s.hooks.SetRejected(key)
		return nil
	}
	s.c.Wait()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (s *MemoryStore) Close(context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto metrics when MemoryConfig.Metrics is set.
func (s *MemoryStore) Metrics() *rc.Metrics { return s.c.Metrics }
