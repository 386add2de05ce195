// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics-ai-core/internal/config"
	"analytics-ai-core/internal/infra/adapters/assistant"
	pg "analytics-ai-core/internal/infra/db/postgres"
	"analytics-ai-core/internal/infra/logging"
	"analytics-ai-core/internal/infra/metrics"
	red "analytics-ai-core/internal/infra/redis"
	"analytics-ai-core/internal/infra/transport"
	"analytics-ai-core/internal/infra/web"
	"analytics-ai-core/internal/infra/worker"
	"analytics-ai-core/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	convStore := red.NewConversationStore(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	jobRepo := pg.NewAnalysisJobRepo(pool)
	docStore := pg.NewDocumentStore(pool)

	// ---- Remote assistant service ----
	tc := transport.NewClient(logger,
		transport.WithBaseDelay(cfg.Retry.BaseDelay),
		transport.WithMaxRetries(cfg.Retry.MaxRetries),
	)
	api, err := assistant.NewClient(
		cfg.Assistant.Endpoint,
		cfg.Assistant.APIKey,
		cfg.Assistant.APIVersion,
		cfg.Assistant.Model,
		tc,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("assistant client")
	}

	// ---- Use cases ----
	sessionUC := usecase.NewSessionUseCase(
		convStore,
		api,
		cfg.Assistant.Instructions,
		cfg.Assistant.PollInterval,
		cfg.Assistant.MaxPollAttempts,
		logger,
	)

	// ---- Async analysis worker ----
	pool2 := worker.NewPool(cfg.Worker.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	processor := worker.NewAnalysisJobProcessor(jobRepo, docStore, sessionUC, logger)
	go processor.Start(ctx, pool2)

	// ---- HTTP ----
	server := web.NewServer(sessionUC, jobRepo, docStore, cfg.Web.Port, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
