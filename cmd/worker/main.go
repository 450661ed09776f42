package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/app"
	"github.com/noah-isme/backend-liquidacion/internal/config"
	"github.com/noah-isme/backend-liquidacion/internal/obs"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	if cfg.OutboxTransport != config.TransportAsynq {
		logger.Fatal().Str("transport", cfg.OutboxTransport).Msg("worker requires OUTBOX_TRANSPORT=asynq")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget("upstream").
		WithLogger(logger)
	backend, err := app.NewBackend(cfg, breaker)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise upstream")
	}

	srv, err := app.NewTaskServer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task server")
	}
	mux := asynq.NewServeMux()
	outbox.Register(mux, backend, logger)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	logger.Info().Str("queue", outbox.QueueName(cfg.OutboxQueue)).Int("concurrency", cfg.OutboxWorkers).Msg("worker starting")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	client, err := app.NewRedis(ctx, cfg.RedisURL, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	return client
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
