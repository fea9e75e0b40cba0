package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivitySnapshot é uma cópia imutável do registro de atividade de um cliente,
// tirada no momento de uma observação.
type ActivitySnapshot struct {
	Client string

	FailedAuth         int64
	ClientErrors       int64
	ServerErrors       int64
	SuspiciousPatterns int64

	LastActivity time.Time
}

// Motivos possíveis de um FlagEvent. Um evento pode carregar mais de um.
const (
	ReasonFailedAuth        = "failed_auth"
	ReasonClientErrors      = "client_errors"
	ReasonServerErrors      = "server_errors"
	ReasonSuspiciousPattern = "suspicious_pattern"
)

// FlagEvent é o registro estruturado emitido quando um cliente cruza um
// limiar de anomalia. Ele é entregue a um AuditSink; o formato final
// (log, métrica, etc) é decisão do sink.
type FlagEvent struct {
	ID       string
	Client   string
	Reasons  []string
	Severity string
	Snapshot ActivitySnapshot
	At       time.Time
}

// NewFlagEvent monta um evento a partir do snapshot e dos motivos disparados.
//
// Severidade: falha de autenticação repetida é tratada como "critical"
// (indício de credential stuffing); os demais motivos como "warning".
func NewFlagEvent(snap ActivitySnapshot, reasons []string) FlagEvent {
	severity := "warning"
	for _, r := range reasons {
		if r == ReasonFailedAuth {
			severity = "critical"
			break
		}
	}
	return FlagEvent{
		ID:       uuid.NewString(),
		Client:   snap.Client,
		Reasons:  reasons,
		Severity: severity,
		Snapshot: snap,
		At:       time.Now(),
	}
}

// AuditSink recebe eventos de cliente sinalizado.
//
// Implementações podem logar, contar em métricas, persistir, etc.
// O middleware trata erro como best-effort (não derruba a request).
type AuditSink interface {
	Flagged(ctx context.Context, ev FlagEvent) error
}
