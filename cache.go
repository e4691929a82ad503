package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
)

const defaultDistributedTTL = 10 * time.Minute

// SetCostFunc computes the admission cost of a write when EntryOptions.Cost is zero.
type SetCostFunc func(storageKey string, raw []byte) int64

// DistributedOptions configure a DistributedStore.
// Only Provider and Serializer are required; others have sensible defaults.
type DistributedOptions struct {
	// Required
	Provider   pr.Provider      // byte store (Redis, BigCache, Ristretto, sturdyc...)
	Serializer codec.Serializer // turns Entry[T] into bytes and back

	Namespace      string        // optional logical namespace, e.g. "app:prod"
	DefaultTTL     time.Duration // applied when EntryOptions.TTL is zero; 0 => 10m
	ComputeSetCost SetCostFunc   // default 1
	Logger         Logger        // if nil, NopLogger is used
	Hooks          Hooks         // if nil, NopHooks is used
}

// DistributedStore is a Store over a byte provider. Entries are serialized with the
// configured Serializer and framed so that foreign or corrupt bytes are detected.
//
// A read that cannot be decoded deletes the offending entry and returns a *DecodeError;
// it is never silently reported as a miss.
type DistributedStore struct {
	ns             string
	provider       pr.Provider
	serializer     codec.Serializer
	defaultTTL     time.Duration
	computeSetCost SetCostFunc
	log            Logger
	hooks          Hooks
}

var _ Store[EntryOptions] = (*DistributedStore)(nil)

// NewDistributedStore validates opts and builds the store.
func NewDistributedStore(opts DistributedOptions) (*DistributedStore, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	if opts.Serializer == nil {
		return nil, ErrNilSerializer
	}
	if opts.DefaultTTL < 0 {
		return nil, &ArgumentError{Name: "DefaultTTL", Err: fmt.Errorf("must be non-negative, got %s", opts.DefaultTTL)}
	}

	s := &DistributedStore{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		serializer: opts.Serializer,
	}
	s.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultDistributedTTL)
	s.log = WithFields(opts.Logger, Fields{"store": "distributed", "namespace": opts.Namespace})
	s.hooks = orDefault[Hooks](opts.Hooks, NopHooks{})
	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}
	return s, nil
}

func (s *DistributedStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	k := s.storageKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	frame, err := wire.Decode(raw)
	if err != nil {
		return false, s.selfHeal(ctx, key, k, "corrupt", err)
	}
	if err := s.serializer.Unmarshal(frame.Payload, dst); err != nil {
		return false, s.selfHeal(ctx, key, k, "value_decode", err)
	}
	return true, nil
}

func (s *DistributedStore) Set(ctx context.Context, key string, entry any, opts EntryOptions) error {
	if err := opts.Validate(); err != nil {
		return &ArgumentError{Name: "opts", Err: err}
	}
	payload, err := s.serializer.Marshal(entry)
	if err != nil {
		return fmt.Errorf("querycache: encode %q: %w", key, err)
	}
	k := s.storageKey(key)
	raw := wire.Encode(payload, time.Now())

	cost := opts.Cost
	if cost == 0 {
		cost = s.computeSetCost(k, raw)
	}
	ok, err := s.provider.Set(ctx, k, raw, cost, coalesce(opts.TTL, s.defaultTTL))
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.SetRejected(k)
		s.log.Debug("Set rejected by provider (pressure)", Fields{"key": key})
	}
	return nil
}

func (s *DistributedStore) Remove(ctx context.Context, key string) error {
	return s.provider.Del(ctx, s.storageKey(key))
}

// Close closes the provider.
func (s *DistributedStore) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

func (s *DistributedStore) selfHeal(ctx context.Context, key, storageKey, reason string, cause error) error {
	delErr := s.provider.Del(ctx, storageKey)
	s.hooks.SelfHeal(storageKey, reason)
	s.log.Warn("removed undecodable entry", Fields{"key": key, "reason": reason, "err": cause})
	return &DecodeError{Key: key, Err: cause, RemoveErr: delErr}
}

func (s *DistributedStore) storageKey(key string) string {
	if s.ns == "" {
		return key
	}
	return s.ns + ":" + key
}
