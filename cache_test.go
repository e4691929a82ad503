package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
)

type memEntry struct {
	v    []byte
	exp  time.Time // zero => no TTL
	cost int64
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	reject bool
	getErr error
	delErr error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp, cost: cost}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delErr != nil {
		return p.delErr
	}
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.v, ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = memEntry{v: v}
}

type user struct {
	ID   string `json:"id" msgpack:"id" cbor:"id"`
	Name string `json:"name" msgpack:"name" cbor:"name"`
}

type recHooks struct {
	NopHooks
	mu       sync.Mutex
	heals    []string
	rejected []string
}

func (h *recHooks) SelfHeal(k, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, k+"|"+reason)
	h.mu.Unlock()
}

func (h *recHooks) SetRejected(k string) {
	h.mu.Lock()
	h.rejected = append(h.rejected, k)
	h.mu.Unlock()
}

func newTestStore(t *testing.T, mp pr.Provider, mutate func(*DistributedOptions)) *DistributedStore {
	t.Helper()
	opts := DistributedOptions{
		Namespace:  "app",
		Provider:   mp,
		Serializer: c.JSON{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewDistributedStore(opts)
	if err != nil {
		t.Fatalf("NewDistributedStore: %v", err)
	}
	return s
}

func TestNewDistributedStore_Validation(t *testing.T) {
	if _, err := NewDistributedStore(DistributedOptions{Serializer: c.JSON{}}); !errors.Is(err, ErrNilProvider) {
		t.Fatalf("want ErrNilProvider, got %v", err)
	}
	if _, err := NewDistributedStore(DistributedOptions{Provider: newMemProvider()}); !errors.Is(err, ErrNilSerializer) {
		t.Fatalf("want ErrNilSerializer, got %v", err)
	}
	_, err := NewDistributedStore(DistributedOptions{Provider: newMemProvider(), Serializer: c.JSON{}, DefaultTTL: -time.Second})
	var ae *ArgumentError
	if !errors.As(err, &ae) || ae.Name != "DefaultTTL" {
		t.Fatalf("want ArgumentError for DefaultTTL, got %v", err)
	}
}

func TestDistributedStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	serializers := map[string]c.Serializer{
		"json":    c.JSON{},
		"msgpack": c.Msgpack{},
		"cbor":    c.MustCBOR(true),
	}
	for name, ser := range serializers {
		t.Run(name, func(t *testing.T) {
			mp := newMemProvider()
			s := newTestStore(t, mp, func(o *DistributedOptions) { o.Serializer = ser })

			want := user{ID: "42", Name: "X"}
			if err := SetEntry(ctx, s, "Foo_42", NewEntry(want), EntryOptions{}); err != nil {
				t.Fatalf("set: %v", err)
			}
			e, err := GetEntry[user](ctx, s, "Foo_42")
			if err != nil || e == nil {
				t.Fatalf("get: %v, %v", e, err)
			}
			if e.Value != want {
				t.Fatalf("got %+v, want %+v", e.Value, want)
			}
			raw, ok := mp.raw("app:Foo_42")
			if !ok {
				t.Fatalf("namespace not applied")
			}
			if _, err := wire.Decode(raw); err != nil {
				t.Fatalf("stored bytes are not framed: %v", err)
			}
		})
	}
}

func TestDistributedStore_CachedNilIsAHit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	if err := SetEntry(ctx, s, "k", NewEntry[*user](nil), EntryOptions{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, err := GetEntry[*user](ctx, s, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e == nil {
		t.Fatalf("a cached nil must be a hit")
	}
	if e.Value != nil {
		t.Fatalf("want nil value, got %+v", e.Value)
	}

	miss, err := GetEntry[*user](ctx, s, "absent")
	if err != nil || miss != nil {
		t.Fatalf("want miss, got %v, %v", miss, err)
	}
}

func TestDistributedStore_SelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	s := newTestStore(t, mp, func(o *DistributedOptions) { o.Hooks = hooks })

	mp.put("app:k", []byte("not a framed entry"))
	_, err := GetEntry[user](ctx, s, "k")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want *DecodeError, got %v", err)
	}
	if !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("want ErrCorrupt in chain, got %v", err)
	}
	if _, ok := mp.raw("app:k"); ok {
		t.Fatalf("corrupt entry was not removed")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "app:k|corrupt" {
		t.Fatalf("hooks: %v", hooks.heals)
	}

	// the next read is a clean miss
	e, err := GetEntry[user](ctx, s, "k")
	if err != nil || e != nil {
		t.Fatalf("want miss after self-heal, got %v, %v", e, err)
	}
}

func TestDistributedStore_SelfHealOnValueDecode(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	s := newTestStore(t, mp, func(o *DistributedOptions) { o.Hooks = hooks })

	mp.put("app:k", wire.Encode([]byte("{not json"), time.Now()))
	_, err := GetEntry[user](ctx, s, "k")
	var de *DecodeError
	if !errors.As(err, &de) || de.Key != "k" {
		t.Fatalf("want *DecodeError for k, got %v", err)
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "app:k|value_decode" {
		t.Fatalf("hooks: %v", hooks.heals)
	}
}

func TestDistributedStore_SelfHealReportsRemoveFailure(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)

	mp.put("app:k", []byte("junk"))
	delErr := errors.New("del down")
	mp.delErr = delErr

	_, err := GetEntry[user](ctx, s, "k")
	if !errors.Is(err, delErr) || !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("want both causes, got %v", err)
	}
}

func TestDistributedStore_BackendErrorIsNotAMiss(t *testing.T) {
	mp := newMemProvider()
	boom := errors.New("redis down")
	mp.getErr = boom
	s := newTestStore(t, mp, nil)

	_, err := GetEntry[user](context.Background(), s, "k")
	if !errors.Is(err, boom) {
		t.Fatalf("want backend error, got %v", err)
	}
}

func TestDistributedStore_RejectedWrite(t *testing.T) {
	mp := newMemProvider()
	mp.reject = true
	hooks := &recHooks{}
	s := newTestStore(t, mp, func(o *DistributedOptions) { o.Hooks = hooks })

	if err := SetEntry(context.Background(), s, "k", NewEntry(1), EntryOptions{}); err != nil {
		t.Fatalf("rejection is not an error, got %v", err)
	}
	if len(hooks.rejected) != 1 || hooks.rejected[0] != "app:k" {
		t.Fatalf("hooks: %v", hooks.rejected)
	}
}

func TestDistributedStore_CostAndOptions(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, func(o *DistributedOptions) {
		o.Namespace = ""
		o.ComputeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	})

	if err := SetEntry(ctx, s, "computed", NewEntry("v"), EntryOptions{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetEntry(ctx, s, "explicit", NewEntry("v"), EntryOptions{Cost: 7}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mp.mu.Lock()
	computed, explicit := mp.m["computed"], mp.m["explicit"]
	mp.mu.Unlock()
	if computed.cost != int64(len(computed.v)) {
		t.Fatalf("computed cost: got %d, len %d", computed.cost, len(computed.v))
	}
	if explicit.cost != 7 {
		t.Fatalf("explicit cost: got %d", explicit.cost)
	}

	err := SetEntry(ctx, s, "bad", NewEntry("v"), EntryOptions{TTL: -time.Second})
	var ae *ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("want ArgumentError, got %v", err)
	}
}

func TestDistributedStore_Remove(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)

	_ = SetEntry(ctx, s, "k", NewEntry(1), EntryOptions{})
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove is idempotent, got %v", err)
	}
	if e, _ := GetEntry[int](ctx, s, "k"); e != nil {
		t.Fatalf("entry still present")
	}
}
