// Package application contém os casos de uso (regras de aplicação) para
// admissão de requisições, rastreamento de anomalia e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: AdmissionService.Admit(ctx, client, path) retorna uma Decision
// (allow/deny + retry-after); AnomalyService.Observe alimenta o perfil do
// cliente com o resultado de uma requisição admitida.
package application
