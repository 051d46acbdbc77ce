// Command authd runs the credential and session lifecycle service.
package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/casetrail/authd/pkg/api"
	"github.com/casetrail/authd/pkg/audit"
	"github.com/casetrail/authd/pkg/auth"
	"github.com/casetrail/authd/pkg/botcheck"
	"github.com/casetrail/authd/pkg/config"
	"github.com/casetrail/authd/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting authd")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("connected to postgres")

	store := auth.NewStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Connect to Redis
	cache, err := auth.NewTokenCache(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()
	logger.Info("connected to redis")

	// Audit logging
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logging: %v", err)
	}
	recorder := audit.NewRecorder(auditLogger, logger)
	defer recorder.Close()

	// Metrics
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// Bot mitigation
	var verifier botcheck.Verifier = botcheck.Disabled{}
	if cfg.BotCheck.Enabled {
		verifier = botcheck.NewHTTPVerifier(cfg.BotCheck.URL, cfg.BotCheck.Secret, cfg.BotCheck.Timeout)
		logger.Info("bot verification enabled")
	}

	service := auth.NewService(auth.ServiceOptions{
		Store:                   store,
		Cache:                   cache,
		Hasher:                  auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Codec:                   auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
		Lockout:                 auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, Window: cfg.Auth.LockoutWindow},
		Recorder:                recorder,
		BotCheck:                verifier,
		Metrics:                 metrics,
		Logger:                  logger,
		VerificationTTL:         cfg.Auth.VerificationTTL,
		ReturnVerificationToken: cfg.Auth.ReturnVerificationToken,
	})

	apiServer := api.NewServer(service, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metrics != nil {
		go auth.ReportActiveSessions(ctx, store, metrics, logger, time.Minute)
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener so probes stay up even
	// when the API port is saturated.
	healthServer := newHealthServer(cfg, db, cache, metrics)

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("api server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}

	logger.Info("shutdown complete")
}

func newHealthServer(cfg *config.Config, db *sql.DB, cache *auth.TokenCache, metrics *observability.Metrics) *http.Server {
	checker := observability.NewHealthChecker(db, cache.Client())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
