// Package sturdyc adapts github.com/viccon/sturdyc to provider.Provider.
//
// sturdyc shards entries and evicts a percentage of them once capacity is reached.
// TTL is configured per client; the per-call TTL is ignored.
package sturdyc

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type Provider struct {
	c *sturdyc.Client[[]byte]
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Capacity           int
	NumShards          int           // 0 => 256
	TTL                time.Duration // required
	EvictionPercentage int           // 0 => 10
	EvictionInterval   time.Duration // 0 => sturdyc default
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Min(0)),
		validation.Field(&c.TTL, validation.Required),
		validation.Field(&c.EvictionPercentage, validation.Min(0), validation.Max(100)),
	)
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shards := cfg.NumShards
	if shards == 0 {
		shards = 256
	}
	evict := cfg.EvictionPercentage
	if evict == 0 {
		evict = 10
	}
	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}
	return &Provider{c: sturdyc.New[[]byte](cfg.Capacity, shards, cfg.TTL, evict, opts...)}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	// sturdyc reports whether the write triggered an eviction, not whether it was stored.
	_ = p.c.Set(key, value)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Close(context.Context) error { return nil }
