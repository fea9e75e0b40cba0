package domain

// Camada de domínio da admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Window identifica a janela de um contador na composição de chaves.
type Window string

const (
	WindowShort Window = "1m"
	WindowLong  Window = "1h"
)

// CounterStore é o contrato do armazenamento de contadores compartilhado.
//
// IncrementAndGet precisa ser atômico (um único increment-and-return, não um
// read seguido de write): a checagem de admissão lê um valor possivelmente
// defasado logo antes, e o design tolera um pequeno estouro do teto sob
// concorrência em troca de não exigir lock distribuído por cliente.
//
// Implementações podem ser um cache remoto compartilhado (Redis) ou uma
// estrutura concorrente local para deployments de instância única.
type CounterStore interface {
	// IncrementAndGet incrementa o contador e retorna o valor resultante.
	// Um contador expirado (ou inexistente) recomeça a janela em 1, com o
	// ttl informado.
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get retorna o valor corrente do contador, 0 se inexistente/expirado.
	// Nunca tem efeito colateral.
	Get(ctx context.Context, key string) (int64, error)
}

// CounterKey compõe a chave (categoria, janela, cliente) de um contador.
func CounterKey(c Category, w Window, client string) string {
	return "admission:" + string(c) + ":" + string(w) + ":" + client
}

// Decision é o resultado de uma avaliação de admissão.
type Decision struct {
	Allowed  bool
	Category Category

	// RetryAfter é o valor recomendado para o header Retry-After quando
	// bloquear. Se 0, não há recomendação.
	RetryAfter time.Duration

	// ShortCount e LongCount são os valores observados dos contadores:
	// pós-incremento quando admitida, o valor lido quando rejeitada.
	ShortCount int64
	LongCount  int64
}
