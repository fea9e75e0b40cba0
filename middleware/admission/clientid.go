package admission

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a identidade do cliente usada como chave de admissão e de
// anomalia. Não é persistida; é recomputada a cada requisição.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc retorna a cadeia padrão de identidade:
// header dedicado (se configurado) → primeiro IP do X-Forwarded-For (se
// confiável) → X-Real-IP → host do RemoteAddr → RemoteAddr cru → "unknown".
//
// O sentinela "unknown" mantém o sistema funcionando quando todas as fontes
// vêm vazias, ao custo de limitar esse tráfego de forma mais grossa.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
