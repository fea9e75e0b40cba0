package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinela-gateway/middleware/admission"
	"sentinela-gateway/middleware/admission/application"
	"sentinela-gateway/middleware/admission/domain"
	"sentinela-gateway/middleware/admission/infra"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Exemplo: injetando os middlewares diretamente no seu webserver (sem proxy).
	// Usa o contador em memória: bom para uma instância só.
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryCounterStore()
	store.StartJanitor(ctx, 2*time.Minute)

	rules := domain.DefaultRules()
	anomaly := application.NewAnomalyService(rules)

	r := chi.NewRouter()
	r.Use(admission.Middleware(admission.Options{
		Store:               store,
		Rules:               rules,
		Anomaly:             anomaly,
		Audit:               infra.NewZapAuditSink(logger),
		Stats:               infra.NewMemoryStatsStore(),
		TrustXForwardedFor:  true,
		AddAdmissionHeaders: true,
		Log:                 logger,
	}))
	r.Use(admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{Max: 50}))

	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			User     string `json:"user"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "letmein" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"message": "welcome, " + body.User})
	})
	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"message": "registered"})
	})
	r.Get("/api/items", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{"item-1", "item-2"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
