package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore é uma implementação de domain.CounterStore em memória,
// com expiração explícita checada no acesso.
//
// Indicada para deployment de instância única (e testes). Em multi-instância
// cada processo contaria sozinho; use RedisCounterStore nesse caso.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry

	now func() time.Time
}

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

type MemoryCounterOption func(*MemoryCounterStore)

// WithCounterClock troca a fonte de tempo (testes de expiração de janela).
func WithCounterClock(now func() time.Time) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries: make(map[string]*counterEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IncrementAndGet incrementa o contador e retorna o valor resultante.
// Um contador expirado recomeça a janela em 1; o TTL é fixado no primeiro
// incremento da janela (janela fixa, não deslizante).
func (s *MemoryCounterStore) IncrementAndGet(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !now.Before(ent.expiresAt) {
		ent = &counterEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = ent
	}
	ent.value++
	return ent.value, nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !now.Before(ent.expiresAt) {
		return 0, nil
	}
	return ent.value, nil
}

// Cleanup remove contadores expirados. A expiração já é checada no acesso;
// isso aqui só devolve memória de chaves que pararam de ser consultadas.
func (s *MemoryCounterStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
