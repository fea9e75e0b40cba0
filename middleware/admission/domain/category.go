package domain

import (
	"strings"
	"time"
)

// Category é a classificação grossa de um path de requisição.
//
// Ela decide quais tetos de admissão se aplicam: endpoints de autenticação
// são a superfície de ataque mais valiosa e carregam o teto mais apertado.
type Category string

const (
	CategoryAuth    Category = "auth"
	CategoryAPI     Category = "api"
	CategoryGeneral Category = "general"
)

// CategoryRule define os tetos de uma categoria, um por janela.
type CategoryRule struct {
	// PerMinute é o teto da janela curta (1 requisição conta 1).
	PerMinute int64
	// PerHour é o teto da janela longa.
	PerHour int64
}

// Rules agrega a configuração de classificação e de tetos por categoria.
//
// O zero value não é utilizável; use DefaultRules como ponto de partida.
type Rules struct {
	// ShortWindow e LongWindow são as janelas de contagem (e o TTL dos
	// contadores correspondentes).
	ShortWindow time.Duration
	LongWindow  time.Duration

	// AuthPrefixes e APIPrefixes classificam o path. Auth vence de API,
	// que vence do restante (general).
	AuthPrefixes []string
	APIPrefixes  []string

	Limits map[Category]CategoryRule
}

// DefaultRules retorna os tetos recomendados: auth 5/min e 20/h,
// api 200/min e 2000/h, general 100/min e 1000/h.
func DefaultRules() Rules {
	return Rules{
		ShortWindow:  1 * time.Minute,
		LongWindow:   1 * time.Hour,
		AuthPrefixes: []string{"/auth", "/login", "/register", "/api/auth"},
		APIPrefixes:  []string{"/api"},
		Limits: map[Category]CategoryRule{
			CategoryAuth:    {PerMinute: 5, PerHour: 20},
			CategoryAPI:     {PerMinute: 200, PerHour: 2000},
			CategoryGeneral: {PerMinute: 100, PerHour: 1000},
		},
	}
}

// Classify mapeia um path para a sua categoria.
func (r Rules) Classify(path string) Category {
	// prefixos também são normalizados: a comparação é case-insensitive
	// dos dois lados, independente de como foram configurados.
	p := strings.ToLower(path)
	for _, prefix := range r.AuthPrefixes {
		if strings.HasPrefix(p, strings.ToLower(prefix)) {
			return CategoryAuth
		}
	}
	for _, prefix := range r.APIPrefixes {
		if strings.HasPrefix(p, strings.ToLower(prefix)) {
			return CategoryAPI
		}
	}
	return CategoryGeneral
}

// Limit retorna a regra da categoria. Categoria desconhecida cai em general
// (a mais restritiva das genéricas) em vez de derrubar a requisição.
func (r Rules) Limit(c Category) CategoryRule {
	if rule, ok := r.Limits[c]; ok {
		return rule
	}
	return r.Limits[CategoryGeneral]
}
