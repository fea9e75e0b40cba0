package application

import (
	"strings"
	"sync"
	"time"

	"sentinela-gateway/middleware/admission/domain"
)

// Thresholds define os limiares que sinalizam um cliente. Qualquer um
// que for atingido dispara a flag.
type Thresholds struct {
	FailedAuth         int64
	ClientErrors       int64
	ServerErrors       int64
	SuspiciousPatterns int64
}

// DefaultThresholds retorna os limiares recomendados.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailedAuth:         10,
		ClientErrors:       20,
		ServerErrors:       5,
		SuspiciousPatterns: 5,
	}
}

// FlagResult é o resultado de uma observação.
type FlagResult struct {
	Suspicious bool
	Reasons    []string
	Snapshot   domain.ActivitySnapshot
}

// AnomalyService mantém o perfil rolante de cada cliente observado.
//
// O estado é local ao processo por design: em deployment multi-instância
// cada instância sinaliza com base nas próprias observações. O serviço é
// observacional, nunca um gate — quem bloqueia é o AdmissionService.
//
// Deve ser construído uma vez no boot e passado por referência ao código
// de request (não é um singleton ambiente).
type AnomalyService struct {
	rules      domain.Rules
	thresholds Thresholds
	retention  time.Duration

	// pathMarkers e agentMarkers são comparados por substring,
	// case-insensitive.
	pathMarkers  []string
	agentMarkers []string

	records sync.Map // client -> *activityRecord
	now     func() time.Time
}

type activityRecord struct {
	mu sync.Mutex
	// evicted marca um registro removido pelo sweep; quem o carregou antes
	// da remoção precisa recomeçar com um registro novo.
	evicted bool

	failedAuth         int64
	clientErrors       int64
	serverErrors       int64
	suspiciousPatterns int64
	lastActivity       time.Time
}

type AnomalyOption func(*AnomalyService)

// WithThresholds substitui os limiares padrão.
func WithThresholds(t Thresholds) AnomalyOption {
	return func(s *AnomalyService) { s.thresholds = t }
}

// WithRetention ajusta a janela de retenção dos registros ociosos.
func WithRetention(d time.Duration) AnomalyOption {
	return func(s *AnomalyService) { s.retention = d }
}

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) AnomalyOption {
	return func(s *AnomalyService) { s.now = now }
}

func NewAnomalyService(rules domain.Rules, opts ...AnomalyOption) *AnomalyService {
	s := &AnomalyService{
		rules:        rules,
		thresholds:   DefaultThresholds(),
		retention:    15 * time.Minute,
		pathMarkers:  []string{"admin", "config"},
		agentMarkers: []string{"bot", "crawler", "scanner"},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe registra o resultado de uma requisição admitida e avalia os limiares.
//
// Cada observação também varre o mapa oportunisticamente, removendo registros
// cuja última atividade caiu fora da janela de retenção. A varredura roda no
// mesmo caminho da chamada (sem task agendada): a memória fica limitada pelo
// volume de requisições, não por corrida com um timer.
func (s *AnomalyService) Observe(client, path, userAgent string, statusCode int) FlagResult {
	now := s.now()

	var snap domain.ActivitySnapshot
	for {
		v, _ := s.records.LoadOrStore(client, &activityRecord{})
		rec := v.(*activityRecord)

		rec.mu.Lock()
		if rec.evicted {
			// o sweep removeu este registro entre o LoadOrStore e o Lock;
			// tenta de novo com um registro fresco.
			rec.mu.Unlock()
			continue
		}

		rec.lastActivity = now
		clientError := statusCode >= 400 && statusCode <= 499
		if clientError && s.rules.Classify(path) == domain.CategoryAuth {
			rec.failedAuth++
		}
		if clientError {
			rec.clientErrors++
		} else if statusCode >= 500 && statusCode <= 599 {
			rec.serverErrors++
		}
		if s.matchesPattern(path, userAgent) {
			rec.suspiciousPatterns++
		}

		snap = domain.ActivitySnapshot{
			Client:             client,
			FailedAuth:         rec.failedAuth,
			ClientErrors:       rec.clientErrors,
			ServerErrors:       rec.serverErrors,
			SuspiciousPatterns: rec.suspiciousPatterns,
			LastActivity:       rec.lastActivity,
		}
		rec.mu.Unlock()
		break
	}

	s.sweep(now)

	reasons := s.tripped(snap)
	return FlagResult{
		Suspicious: len(reasons) > 0,
		Reasons:    reasons,
		Snapshot:   snap,
	}
}

// Snapshot retorna o registro corrente do cliente, se existir.
func (s *AnomalyService) Snapshot(client string) (domain.ActivitySnapshot, bool) {
	v, ok := s.records.Load(client)
	if !ok {
		return domain.ActivitySnapshot{}, false
	}
	rec := v.(*activityRecord)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.evicted {
		return domain.ActivitySnapshot{}, false
	}
	return domain.ActivitySnapshot{
		Client:             client,
		FailedAuth:         rec.failedAuth,
		ClientErrors:       rec.clientErrors,
		ServerErrors:       rec.serverErrors,
		SuspiciousPatterns: rec.suspiciousPatterns,
		LastActivity:       rec.lastActivity,
	}, true
}

func (s *AnomalyService) matchesPattern(path, userAgent string) bool {
	p := strings.ToLower(path)
	for _, marker := range s.pathMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	ua := strings.ToLower(userAgent)
	for _, marker := range s.agentMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func (s *AnomalyService) tripped(snap domain.ActivitySnapshot) []string {
	var reasons []string
	if snap.FailedAuth >= s.thresholds.FailedAuth {
		reasons = append(reasons, domain.ReasonFailedAuth)
	}
	if snap.ClientErrors >= s.thresholds.ClientErrors {
		reasons = append(reasons, domain.ReasonClientErrors)
	}
	if snap.ServerErrors >= s.thresholds.ServerErrors {
		reasons = append(reasons, domain.ReasonServerErrors)
	}
	if snap.SuspiciousPatterns >= s.thresholds.SuspiciousPatterns {
		reasons = append(reasons, domain.ReasonSuspiciousPattern)
	}
	return reasons
}

// sweep remove registros ociosos. Só remove o que confirmar obsoleto sob o
// lock do próprio registro, então nunca come a atualização em andamento de
// outro cliente (quem atualiza segura o lock e carimba lastActivity antes).
func (s *AnomalyService) sweep(now time.Time) {
	cutoff := now.Add(-s.retention)

	s.records.Range(func(key, v any) bool {
		rec := v.(*activityRecord)
		rec.mu.Lock()
		if !rec.evicted && rec.lastActivity.Before(cutoff) {
			rec.evicted = true
			s.records.Delete(key)
		}
		rec.mu.Unlock()
		return true
	})
}
