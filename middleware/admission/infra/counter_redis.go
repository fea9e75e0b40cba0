package infra

import (
	"context"
	"strings"
	"time"

	"sentinela-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implementa domain.CounterStore sobre Redis.
//
// É o backend indicado quando o serviço roda em mais de uma instância:
// os tetos globais dependem de todas as instâncias compartilharem os
// mesmos contadores.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{rdb: rdb}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)

// IncrementAndGet incrementa via pipeline transacional (INCR + EXPIRE NX) e
// retorna o valor pós-incremento. O INCR do Redis é atômico entre instâncias.
//
// O EXPIRE NX só fixa o TTL quando a chave ainda não tem um — ou seja, no
// primeiro incremento da janela (janela fixa, igual ao MemoryCounterStore).
// Um EXPIRE puro renovaria o TTL a cada admissão e a janela viraria
// deslizante, segurando o cliente bloqueado além do tamanho da janela.
func (s *RedisCounterStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	counter := pipe.Incr(ctx, s.key(key))
	pipe.ExpireNX(ctx, s.key(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (s *RedisCounterStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
