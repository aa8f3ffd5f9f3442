package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/db"
	"deepresearch/backend/internal/grounding"
	"deepresearch/backend/internal/httpapi"
	"deepresearch/backend/internal/logging"
	"deepresearch/backend/internal/providers"
	"deepresearch/backend/internal/reports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer database.Close()
	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatal("migrate db", zap.Error(err))
	}

	var cache redis.UniversalClient
	if cfg.RedisURL != "" {
		client, err := grounding.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("search cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cache = client
		}
	}

	orchestrator, err := providers.NewOrchestrator(ctx, cfg, cache, logger)
	if err != nil {
		logger.Fatal("build research pipeline", zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}

	handler := httpapi.NewHandler(cfg, orchestrator, reports.NewStore(database), logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ResearchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			zap.String("addr", cfg.ListenAddress()),
			zap.String("provider", cfg.LLMProvider),
			zap.Strings("search_apis", providers.AvailableSearchAPIs(cfg)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
