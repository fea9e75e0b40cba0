package infra

import (
	"context"
	"testing"

	"sentinela-gateway/middleware/admission/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func flagEvent(client string) domain.FlagEvent {
	return domain.NewFlagEvent(domain.ActivitySnapshot{
		Client:     client,
		FailedAuth: 10,
	}, []string{domain.ReasonFailedAuth})
}

func TestZapAuditSink_LogsEventFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := NewZapAuditSink(zap.New(core))

	if err := sink.Flagged(context.Background(), flagEvent("1.2.3.4")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["client"] != "1.2.3.4" {
		t.Fatalf("expected client field, got %v", fields["client"])
	}
	if fields["severity"] != "critical" {
		t.Fatalf("expected severity critical for failed_auth, got %v", fields["severity"])
	}
	if fields["event_id"] == "" {
		t.Fatalf("expected a non-empty event_id")
	}
}

func TestZapAuditSink_ThrottlesRepeatedEventsPerClient(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	// 0 eventos/s com rajada 2: só os dois primeiros passam
	sink := NewZapAuditSink(zap.New(core), WithAuditRate(0, 2))

	for i := 0; i < 10; i++ {
		if err := sink.Flagged(context.Background(), flagEvent("1.2.3.4")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := logs.Len(); got != 2 {
		t.Fatalf("expected 2 logged events after throttling, got %d", got)
	}

	// outro cliente tem o próprio bucket
	if err := sink.Flagged(context.Background(), flagEvent("5.6.7.8")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := logs.Len(); got != 3 {
		t.Fatalf("expected a fresh client to log, got %d entries", got)
	}
}
