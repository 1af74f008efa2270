package cache

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisCache(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	r := NewRedis(rdb, WithPrefix("test:cache:"))
	if err := r.Ping(t.Context()); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	return r
}

func TestRedis_GetSetDelete(t *testing.T) {
	r := redisCache(t)
	ctx := t.Context()

	key := "getset:" + t.Name()
	_ = r.Delete(ctx, key)

	_, ok, err := r.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	if err := r.Set(ctx, key, []byte("v1"), 10*time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, ok, err := r.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "v1" {
		t.Fatalf("got %q, want %q", val, "v1")
	}

	_ = r.Delete(ctx, key)
	if _, ok, _ := r.Get(ctx, key); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestTiered_LocalOverRedis(t *testing.T) {
	l2 := redisCache(t)
	l1 := mustNewLocal(t, Options[string, []byte]{MaxSize: 8, TTL: time.Minute})
	tc := NewTiered(l1, l2)
	ctx := t.Context()

	key := "tiered:" + t.Name()
	_ = l2.Delete(ctx, key)

	var calls atomic.Int32
	loader := func(_ context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("from-loader"), nil
	}

	v, err := tc.GetOrSet(ctx, key, 30*time.Second, loader)
	if err != nil {
		t.Fatalf("GetOrSet 1: %v", err)
	}
	if string(v) != "from-loader" {
		t.Fatalf("got %q, want %q", v, "from-loader")
	}

	// A fresh L1 must be filled from Redis without calling the loader.
	tc2 := NewTiered(mustNewLocal(t, Options[string, []byte]{MaxSize: 8, TTL: time.Minute}), l2)
	v, err = tc2.GetOrSet(ctx, key, 30*time.Second, loader)
	if err != nil {
		t.Fatalf("GetOrSet 2 (L2 hit): %v", err)
	}
	if string(v) != "from-loader" {
		t.Fatalf("got %q, want %q", v, "from-loader")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}
}

func TestRedis_FailSoft(t *testing.T) {
	// Unreachable address: operations must not panic or return errors.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	t.Cleanup(func() { _ = rdb.Close() })
	r := NewRedis(rdb)

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	_, ok, err := r.Get(ctx, "no-such-key")
	if err != nil {
		t.Fatalf("expected nil error on unreachable Redis, got: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
	if err := r.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("expected nil error on unreachable Redis, got: %v", err)
	}
}
