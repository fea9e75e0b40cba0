package infra

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryCounterStore_IncrementStartsAtOne(t *testing.T) {
	s := NewMemoryCounterStore()

	v, err := s.IncrementAndGet(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected first increment to return 1, got %d", v)
	}
}

func TestMemoryCounterStore_GetHasNoSideEffect(t *testing.T) {
	s := NewMemoryCounterStore()

	if _, err := s.IncrementAndGet(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 5; i++ {
		v, err := s.Get(context.Background(), "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 1 {
			t.Fatalf("expected Get to keep returning 1, got %d", v)
		}
	}
}

func TestMemoryCounterStore_ExpiredWindowRestartsAtOne(t *testing.T) {
	now := time.Now()
	s := NewMemoryCounterStore(WithCounterClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementAndGet(context.Background(), "k", time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// avança o relógio para além da janela
	now = now.Add(61 * time.Second)

	v, err := s.Get(context.Background(), "k")
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

func TestMemoryCounterStore_ConcurrentIncrementsAreDistinct(t *testing.T) {
	s := NewMemoryCounterStore()

	const workers = 100
	values := make(chan int64, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			v, err := s.IncrementAndGet(context.Background(), "k", time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, workers)
	for v := range values {
		if seen[v] {
			t.Fatalf("two increments observed the same value %d", v)
		}
		seen[v] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct values, got %d", workers, len(seen))
	}
}

func TestMemoryCounterStore_CleanupRemovesExpiredEntries(t *testing.T) {
	now := time.Now()
	s := NewMemoryCounterStore(WithCounterClock(func() time.Time { return now }))

	if _, err := s.IncrementAndGet(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	s.Cleanup()

	s.mu.Lock()
	_, ok := s.entries["k"]
	s.mu.Unlock()
	if ok {
		t.Fatalf("expected expired entry to be removed by Cleanup")
	}
}
