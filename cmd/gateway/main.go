package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sentinela-gateway/middleware/admission"
	"sentinela-gateway/middleware/admission/application"
	"sentinela-gateway/middleware/admission/domain"
	"sentinela-gateway/middleware/admission/infra"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := readConfig()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	rules := domain.DefaultRules()
	thresholds := application.DefaultThresholds()
	retention := 15 * time.Minute
	if cfg.rulesFile != "" {
		f, err := admission.LoadRulesFile(cfg.rulesFile)
		if err != nil {
			logger.Fatal("rules file error", zap.String("path", cfg.rulesFile), zap.Error(err))
		}
		rules, _ = f.Rules()
		thresholds = f.Thresholds()
		retention, _ = f.Retention()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store domain.CounterStore
	var statsStore domain.StatsStore
	switch cfg.counterBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			logger.Fatal("redis ping error", zap.Error(err))
		}

		store = infra.NewRedisCounterStore(rdb, infra.WithCounterPrefix(cfg.counterPrefix))
		if cfg.statsEnabled {
			statsStore = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.statsPrefix),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsBucket(cfg.statsBucket),
				infra.WithStatsTrackClients(cfg.statsTrackClients),
			)
		}
	case "memory":
		mem := infra.NewMemoryCounterStore()
		mem.StartJanitor(ctx, 2*time.Minute)
		store = mem
		if cfg.statsEnabled {
			statsStore = infra.NewMemoryStatsStore(infra.WithTrackClients(cfg.statsTrackClients))
		}
	default:
		logger.Fatal("unsupported COUNTER_BACKEND", zap.String("backend", cfg.counterBackend))
	}

	anomaly := application.NewAnomalyService(rules,
		application.WithThresholds(thresholds),
		application.WithRetention(retention),
	)

	audit := []domain.AuditSink{infra.NewZapAuditSink(logger)}
	var stats []domain.StatsStore
	if statsStore != nil {
		stats = append(stats, statsStore)
	}

	if cfg.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		sink := infra.NewPrometheusSink(registry)
		audit = append(audit, sink)
		stats = append(stats, sink)

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	h := http.Handler(proxy)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.admissionEnabled {
		h = admission.Middleware(admission.Options{
			Store:               store,
			Rules:               rules,
			Anomaly:             anomaly,
			Audit:               fanoutSink(audit),
			Stats:               fanoutStats(stats),
			KeyHeader:           cfg.keyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			AddAdmissionHeaders: cfg.addHeaders,
			Log:                 logger,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()),
		zap.Bool("admission", cfg.admissionEnabled),
		zap.String("counter_backend", cfg.counterBackend),
		zap.Bool("trust_xff", cfg.trustXFF),
		zap.Int("concurrency_max", cfg.concurrencyMax),
		zap.String("metrics_addr", cfg.metricsAddr),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// multiSink entrega o evento a todos os sinks; erros são best-effort e o
// primeiro é devolvido só para fins de log.
type multiSink []domain.AuditSink

func fanoutSink(sinks []domain.AuditSink) domain.AuditSink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multiSink(sinks)
}

func (m multiSink) Flagged(ctx context.Context, ev domain.FlagEvent) error {
	var first error
	for _, s := range m {
		if err := s.Flagged(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type multiStats []domain.StatsStore

func fanoutStats(stores []domain.StatsStore) domain.StatsStore {
	if len(stores) == 0 {
		return nil
	}
	if len(stores) == 1 {
		return stores[0]
	}
	return multiStats(stores)
}

func (m multiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type config struct {
	listenAddr  string
	upstreamURL string

	admissionEnabled bool
	rulesFile        string
	keyHeader        string
	trustXFF         bool
	addHeaders       bool

	counterBackend string
	counterPrefix  string
	redisAddr      string
	redisPassword  string
	redisDB        int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled      bool
	statsPrefix       string
	statsTTL          time.Duration
	statsBucket       string
	statsTrackClients bool

	metricsAddr string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.admissionEnabled = getenvBoolDefault("ADMISSION_ENABLED", true)
	cfg.rulesFile = os.Getenv("ADMISSION_RULES_FILE")
	cfg.keyHeader = os.Getenv("KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", true)
	cfg.addHeaders = getenvBoolDefault("ADD_ADMISSION_HEADERS", false)

	cfg.counterBackend = strings.ToLower(getenvDefault("COUNTER_BACKEND", "memory"))
	cfg.counterPrefix = os.Getenv("COUNTER_PREFIX")
	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackClients = getenvBoolDefault("STATS_TRACK_CLIENTS", false)

	cfg.metricsAddr = os.Getenv("METRICS_ADDR")

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.counterBackend != "redis" && cfg.counterBackend != "memory" {
		return config{}, errors.New("COUNTER_BACKEND must be redis or memory")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
