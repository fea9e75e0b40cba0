// Package infra contém implementações concretas dos contratos do domínio:
// contadores em Redis ou em memória, sinks de auditoria (zap, Prometheus),
// estatísticas de decisão e o semáforo de concorrência.
package infra
