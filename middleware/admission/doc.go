// Package admission fornece adapters HTTP (net/http) para admissão de
// requisições, rastreamento de anomalia e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, observação de anomalia,
//     acquire/timeout) sem net/http
//   - infra: implementações concretas (contadores Redis/memória, sinks de
//     auditoria, semáforo), detalhes de infraestrutura
//   - admission (este pacote): middlewares HTTP + wiring/extração de identidade
//     + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a identidade do cliente (XFF/X-Real-IP/RemoteAddr)
//  2. Chama a camada application para a decisão de admissão (janela curta e
//     longa por categoria de endpoint)
//  3. Se bloqueado, responde 429 com Retry-After
//  4. Se permitido, chama o próximo handler e observa o status da resposta
//  5. Cliente que cruza um limiar de anomalia gera um evento de auditoria
//     (log/métrica); a flag nunca bloqueia por si só
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como COUNTER_BACKEND, ADMISSION_RULES_FILE e TRUST_XFF.
package admission
