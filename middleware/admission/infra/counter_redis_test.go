package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCounterStore(t *testing.T, opts ...RedisCounterOption) (*miniredis.Miniredis, *RedisCounterStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisCounterStore(rdb, opts...)
}

func TestRedisCounterStore_IncrementReturnsSequence(t *testing.T) {
	_, s := newTestRedisCounterStore(t)

	for want := int64(1); want <= 3; want++ {
		v, err := s.IncrementAndGet(context.Background(), "k", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != want {
			t.Fatalf("expected %d, got %d", want, v)
		}
	}
}

func TestRedisCounterStore_GetMissingKeyReturnsZero(t *testing.T) {
	_, s := newTestRedisCounterStore(t)

	v, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 for missing key, got %d", v)
	}
}

func TestRedisCounterStore_WindowTTLFixedAtFirstIncrement(t *testing.T) {
	mr, s := newTestRedisCounterStore(t)

	// admissões espalhadas pela janela não podem renovar o TTL: a janela
	// é fixa e expira contada do primeiro incremento.
	if _, err := s.IncrementAndGet(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.FastForward(45 * time.Second)
	v, err := s.IncrementAndGet(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected 2 inside the window, got %d", v)
	}

	// 75s depois do início: a janela de 60s acabou, mesmo com o
	// incremento em t=45s
	mr.FastForward(30 * time.Second)
	v, err = s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected expired counter to read 0, got %d", v)
	}

	v, err = s.IncrementAndGet(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected fresh window to start at 1, got %d", v)
	}
}

func TestRedisCounterStore_PrefixNamespacesKeys(t *testing.T) {
	mr, s := newTestRedisCounterStore(t, WithCounterPrefix("staging"))

	if _, err := s.IncrementAndGet(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists("staging:k") {
		t.Fatalf("expected key to carry the configured prefix")
	}
}
