//go:build integration

package redis_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/provider/redis"
)

// setupRedis starts a Redis container and returns a client for it.
func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		_ = rdb.Close()
		_ = container.Terminate(ctx)
	})
	return rdb
}

func TestRedis_Provider(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	p, err := redis.New(redis.Config{Client: rdb, KeyPrefix: "t:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("want miss, got ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	if raw, _ := rdb.Get(ctx, "t:k").Bytes(); !bytes.Equal(raw, []byte("v")) {
		t.Fatalf("prefix not applied, got %q", raw)
	}
	ttl, _ := rdb.TTL(ctx, "t:k").Result()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl: got %s", ttl)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("entry survived Del")
	}
}

func TestRedis_DistributedStoreSelfHeal(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	p, _ := redis.New(redis.Config{Client: rdb})
	store, err := querycache.NewDistributedStore(querycache.DistributedOptions{
		Provider:   p,
		Serializer: codec.Msgpack{},
		Namespace:  "it",
	})
	if err != nil {
		t.Fatalf("NewDistributedStore: %v", err)
	}

	if err := querycache.SetEntry(ctx, store, "Foo_42", querycache.NewEntry("X"), querycache.EntryOptions{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, err := querycache.GetEntry[string](ctx, store, "Foo_42")
	if err != nil || e == nil || e.Value != "X" {
		t.Fatalf("get: %v, %v", e, err)
	}

	// bytes written by someone else under the same key
	if err := rdb.Set(ctx, "it:Foo_42", "foreign", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = querycache.GetEntry[string](ctx, store, "Foo_42")
	var de *querycache.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want *DecodeError, got %v", err)
	}
	if n, _ := rdb.Exists(ctx, "it:Foo_42").Result(); n != 0 {
		t.Fatalf("corrupt entry was not removed")
	}
}
