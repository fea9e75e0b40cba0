package admission

import (
	"net/http"
	"time"

	"sentinela-gateway/middleware/admission/application"
	"sentinela-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

const rejectedBody = "rate limit exceeded, try again later"

type Options struct {
	// Store é o backend de contadores. Nil desliga a admissão (tudo passa).
	Store domain.CounterStore

	// Rules define janelas, tetos e prefixos de categoria.
	// Zero value usa domain.DefaultRules.
	Rules domain.Rules

	// Anomaly observa o resultado das requisições admitidas. Opcional.
	Anomaly *application.AnomalyService

	// Audit recebe os eventos de cliente sinalizado. Opcional, best-effort.
	Audit domain.AuditSink

	// Stats registra cada decisão. Opcional, best-effort.
	Stats domain.StatsStore

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	RejectStatus        int
	AddAdmissionHeaders bool

	Log *zap.Logger
}

// Middleware devolve o middleware de admissão + anomalia.
//
// A ordem por requisição é: decisão de admissão, registro de estatística,
// 429 se rejeitada; senão handler seguinte, captura do status e observação
// de anomalia com eventual emissão de auditoria.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if len(opts.Rules.Limits) == 0 {
		opts.Rules = domain.DefaultRules()
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.AdmissionService{
		Store: opts.Store,
		Rules: opts.Rules,
		Log:   opts.Log,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec := svc.Admit(r.Context(), key, r.URL.Path)

			if opts.AddAdmissionHeaders {
				rule := opts.Rules.Limit(dec.Category)
				w.Header().Set("X-Admission-Key", key)
				w.Header().Set("X-Admission-Category", string(dec.Category))
				w.Header().Set("X-Admission-Limit-Minute", formatInt64(rule.PerMinute))
				w.Header().Set("X-Admission-Limit-Hour", formatInt64(rule.PerHour))
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Client:   key,
					Category: dec.Category,
					Allowed:  dec.Allowed,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(opts.RejectStatus)
				_, _ = w.Write([]byte(rejectedBody))
				return
			}

			if opts.Anomaly == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			result := opts.Anomaly.Observe(key, r.URL.Path, r.UserAgent(), rec.status())
			if result.Suspicious && opts.Audit != nil {
				ev := domain.NewFlagEvent(result.Snapshot, result.Reasons)
				if err := opts.Audit.Flagged(r.Context(), ev); err != nil && opts.Log != nil {
					opts.Log.Warn("audit sink failed",
						zap.String("client", key),
						zap.Error(err))
				}
			}
		})
	}
}

// statusRecorder captura o status escrito pelo handler seguinte para
// alimentar o rastreador de anomalia.
type statusRecorder struct {
	http.ResponseWriter
	code    int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.code = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.code = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap expõe o ResponseWriter original para http.ResponseController,
// preservando Flusher/Hijacker do writer embrulhado.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) status() int {
	if !r.written {
		return http.StatusOK
	}
	return r.code
}
