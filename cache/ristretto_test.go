package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustNewRistretto(t *testing.T) *Ristretto {
	t.Helper()
	r, err := NewRistretto(1000, time.Minute)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestNewRistretto_InvalidConfig(t *testing.T) {
	if _, err := NewRistretto(0, time.Minute); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero entries, got %v", err)
	}
	if _, err := NewRistretto(10, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero ttl, got %v", err)
	}
}

func TestRistretto_GetSet(t *testing.T) {
	r := mustNewRistretto(t)
	ctx := t.Context()

	if _, ok, _ := r.Get(ctx, "k"); ok {
		t.Fatal("expected miss")
	}
	if err := r.Set(ctx, "k", []byte("hello"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := r.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(v) != "hello" {
		t.Fatalf("got %q, want %q", v, "hello")
	}
}

func TestRistretto_DeleteAndClear(t *testing.T) {
	r := mustNewRistretto(t)
	ctx := t.Context()

	_ = r.Set(ctx, "a", []byte("1"), 0)
	_ = r.Set(ctx, "b", []byte("2"), 0)

	_ = r.Delete(ctx, "a")
	if _, ok, _ := r.Get(ctx, "a"); ok {
		t.Fatal("a should be deleted")
	}

	r.Clear()
	if _, ok, _ := r.Get(ctx, "b"); ok {
		t.Fatal("b should be cleared")
	}
}

func TestRistretto_GetOrSet(t *testing.T) {
	r := mustNewRistretto(t)
	calls := 0
	loader := func(context.Context) ([]byte, error) {
		calls++
		return []byte("loaded"), nil
	}

	for range 3 {
		v, err := r.GetOrSet(t.Context(), "k", time.Minute, loader)
		if err != nil || string(v) != "loaded" {
			t.Fatalf("GetOrSet = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}
