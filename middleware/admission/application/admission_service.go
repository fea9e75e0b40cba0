package application

import (
	"context"

	"sentinela-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// AdmissionService concentra a regra de admissão multi-janela.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
//
// Duas janelas por categoria (curta + longa) cobrem tanto rajadas quanto
// abuso sustentado de baixa taxa. A checagem lê os contadores antes de
// incrementar: rejeição não tem efeito colateral, para não inflar os
// contadores em cadeias de retries rejeitados.
type AdmissionService struct {
	Store domain.CounterStore
	Rules domain.Rules

	// Log recebe as falhas absorvidas pelo fail-open. Pode ser nil.
	Log *zap.Logger
}

// Admit avalia se a requisição do cliente pode prosseguir.
//
// Falha do CounterStore nunca vira erro para o chamador: o serviço "falha
// aberto" (admite, loga e segue), porque disponibilidade do serviço guardado
// vale mais do que enforcement estrito. Um backend de contadores quebrado
// degrada proteção, não disponibilidade.
func (s AdmissionService) Admit(ctx context.Context, client, path string) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true, Category: s.Rules.Classify(path)}
	}

	category := s.Rules.Classify(path)
	rule := s.Rules.Limit(category)

	shortKey := domain.CounterKey(category, domain.WindowShort, client)
	longKey := domain.CounterKey(category, domain.WindowLong, client)

	// A janela curta é avaliada primeiro e curto-circuita; ambas as
	// rejeições recomendam o mesmo Retry-After (o tamanho da janela curta).
	shortCount, err := s.Store.Get(ctx, shortKey)
	if err != nil {
		return s.failOpen(client, category, err)
	}
	if shortCount >= rule.PerMinute {
		return domain.Decision{
			Category:   category,
			RetryAfter: s.Rules.ShortWindow,
			ShortCount: shortCount,
		}
	}

	longCount, err := s.Store.Get(ctx, longKey)
	if err != nil {
		return s.failOpen(client, category, err)
	}
	if longCount >= rule.PerHour {
		return domain.Decision{
			Category:   category,
			RetryAfter: s.Rules.ShortWindow,
			ShortCount: shortCount,
			LongCount:  longCount,
		}
	}

	// Admitida: incrementa os dois contadores, cada um com o próprio TTL.
	shortCount, err = s.Store.IncrementAndGet(ctx, shortKey, s.Rules.ShortWindow)
	if err != nil {
		return s.failOpen(client, category, err)
	}
	longCount, err = s.Store.IncrementAndGet(ctx, longKey, s.Rules.LongWindow)
	if err != nil {
		return s.failOpen(client, category, err)
	}

	return domain.Decision{
		Allowed:    true,
		Category:   category,
		ShortCount: shortCount,
		LongCount:  longCount,
	}
}

func (s AdmissionService) failOpen(client string, category domain.Category, err error) domain.Decision {
	if s.Log != nil {
		s.Log.Warn("counter store unavailable, admitting request",
			zap.String("client", client),
			zap.String("category", string(category)),
			zap.Error(err))
	}
	return domain.Decision{Allowed: true, Category: category}
}
