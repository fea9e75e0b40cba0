package infra

import (
	"context"
	"sync"

	"sentinela-gateway/middleware/admission/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ZapAuditSink loga eventos de cliente sinalizado de forma estruturada.
//
// Um cliente já sinalizado tende a continuar disparando a flag em toda
// requisição seguinte; o sink limita a emissão por cliente com um token
// bucket para não inundar o log durante um ataque.
type ZapAuditSink struct {
	log *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	every rate.Limit
	burst int
}

type ZapAuditOption func(*ZapAuditSink)

// WithAuditRate ajusta a taxa máxima de eventos logados por cliente.
func WithAuditRate(eventsPerSecond float64, burst int) ZapAuditOption {
	return func(s *ZapAuditSink) {
		s.every = rate.Limit(eventsPerSecond)
		s.burst = burst
	}
}

func NewZapAuditSink(log *zap.Logger, opts ...ZapAuditOption) *ZapAuditSink {
	s := &ZapAuditSink{
		log:      log,
		limiters: make(map[string]*rate.Limiter),
		// padrão: no máximo ~2 eventos/min por cliente, rajada inicial de 3.
		every: rate.Limit(1.0 / 30.0),
		burst: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.AuditSink = (*ZapAuditSink)(nil)

func (s *ZapAuditSink) Flagged(_ context.Context, ev domain.FlagEvent) error {
	if !s.allow(ev.Client) {
		return nil
	}

	s.log.Warn("suspicious client flagged",
		zap.String("event_id", ev.ID),
		zap.String("client", ev.Client),
		zap.Strings("reasons", ev.Reasons),
		zap.String("severity", ev.Severity),
		zap.Int64("failed_auth", ev.Snapshot.FailedAuth),
		zap.Int64("client_errors", ev.Snapshot.ClientErrors),
		zap.Int64("server_errors", ev.Snapshot.ServerErrors),
		zap.Int64("suspicious_patterns", ev.Snapshot.SuspiciousPatterns),
		zap.Time("last_activity", ev.Snapshot.LastActivity),
	)
	return nil
}

func (s *ZapAuditSink) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// proteção grossa contra crescimento sem limite do mapa de limiters
	// (chaves vêm de identidade de cliente, que um atacante controla).
	if len(s.limiters) >= 4096 {
		s.limiters = make(map[string]*rate.Limiter)
	}

	lim, ok := s.limiters[client]
	if !ok {
		lim = rate.NewLimiter(s.every, s.burst)
		s.limiters[client] = lim
	}
	return lim.Allow()
}
