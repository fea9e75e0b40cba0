package infra

import (
	"context"

	"sentinela-gateway/middleware/admission/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink expõe decisões de admissão e flags de anomalia como métricas.
//
// Implementa tanto domain.StatsStore (decisões) quanto domain.AuditSink
// (clientes sinalizados). As labels são de baixa cardinalidade de propósito:
// categoria/outcome/motivo, nunca a identidade do cliente.
type PrometheusSink struct {
	decisions *prometheus.CounterVec
	flagged   *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission decisions by endpoint category and outcome.",
		}, []string{"category", "outcome"}),
		flagged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_flagged_clients_total",
			Help: "Suspicious-client flag events by reason and severity.",
		}, []string{"reason", "severity"}),
	}
}

var (
	_ domain.StatsStore = (*PrometheusSink)(nil)
	_ domain.AuditSink  = (*PrometheusSink)(nil)
)

func (s *PrometheusSink) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	s.decisions.WithLabelValues(string(ev.Category), outcome).Inc()
	return nil
}

func (s *PrometheusSink) Flagged(_ context.Context, ev domain.FlagEvent) error {
	for _, reason := range ev.Reasons {
		s.flagged.WithLabelValues(reason, ev.Severity).Inc()
	}
	return nil
}
