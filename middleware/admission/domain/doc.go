// Package domain define contratos e tipos de domínio para admissão de requisições
// e rastreamento de atividade suspeita.
//
// Este pacote não depende de net/http nem de implementações concretas (Redis,
// Prometheus, etc). A intenção é permitir testes de unidade puros e desacoplar
// as regras de decisão dos detalhes de infraestrutura.
package domain
