// Package app wires the shared infrastructure used by the API, the worker
// and the offline tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/config"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/ratelimit"
	"github.com/noah-isme/backend-liquidacion/internal/resilience"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// Backend is an upstream that can also serve option lists and be pinged.
type Backend interface {
	upstream.Backend
	catalog.Source
	Ping(ctx context.Context) error
}

var (
	_ Backend = (*upstream.Mock)(nil)
	_ Backend = (*upstream.Client)(nil)
)

// Dependencies enumerates core services shared across modules.
type Dependencies struct {
	Redis      *redis.Client
	Validator  *validator.Validate
	Limiter    ratelimit.Limiter
	TaskClient *asynq.Client
	Backend    Backend
	Breaker    *resilience.Breaker
	Catalog    catalog.Catalog
}

// Build connects every dependency cfg asks for. Redis is optional unless
// the asynq transport is selected.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, redisMetrics bool) (*Dependencies, error) {
	deps := &Dependencies{Validator: liquidation.Validator()}

	if cfg.RedisURL != "" {
		rdb, err := NewRedis(ctx, cfg.RedisURL, logger, redisMetrics)
		if err != nil {
			return nil, err
		}
		deps.Redis = rdb
	}
	deps.Limiter = NewLimiter(deps.Redis)

	cat, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Catalog = cat

	deps.Breaker = resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget("upstream").
		WithLogger(logger)
	backend, err := NewBackend(cfg, deps.Breaker)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Backend = backend

	if cfg.OutboxTransport == config.TransportAsynq {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("parse asynq redis url: %w", err)
		}
		deps.TaskClient = asynq.NewClient(opt)
	}
	return deps, nil
}

// Close releases the connections Build opened.
func (d *Dependencies) Close() error {
	var errs []error
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, url string, logger zerolog.Logger, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter uses the Redis sliding window when Redis is available and an
// in-memory window otherwise.
func NewLimiter(rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.SlidingWindow{Client: rdb, Prefix: "liquidacion:ratelimit:"}
	}
	return ratelimit.NewMemory()
}

// LoadCatalog reads the YAML option catalog, or returns the built-in one.
func LoadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// NewBackend selects the mock or the REST upstream.
func NewBackend(cfg *config.Config, breaker *resilience.Breaker) (Backend, error) {
	switch cfg.UpstreamMode {
	case config.UpstreamHTTP:
		return upstream.NewClient(upstream.ClientConfig{
			BaseURL: cfg.UpstreamBaseURL,
			Timeout: cfg.UpstreamTimeout,
			Breaker: breaker,
		})
	default:
		return upstream.NewMock(cfg.UpstreamMockDelay), nil
	}
}

// NewTransport returns where dispatched commands go: asynq when a task
// client is configured, otherwise straight to the backend.
func (d *Dependencies) NewTransport(queue string) outbox.Transport {
	if d.TaskClient != nil {
		return outbox.AsynqTransport{Client: d.TaskClient, Queue: queue}
	}
	return outbox.SinkTransport{Sink: d.Backend}
}

// Checker adapts the dependencies to the readiness check.
type Checker struct {
	Redis   *redis.Client
	Backend Backend
}

// PingRedis pings Redis. A deployment without Redis is reported ready.
func (c Checker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}

// PingUpstream pings the backend.
func (c Checker) PingUpstream(ctx context.Context, timeout time.Duration) error {
	if c.Backend == nil {
		return errors.New("upstream not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Backend.Ping(ctx)
}

// NewTaskServer builds the asynq server that drains the outbox queue.
// Retries are disabled; a failed command is logged and dropped.
func NewTaskServer(cfg *config.Config, logger zerolog.Logger) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse asynq redis url: %w", err)
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.OutboxWorkers,
		Queues:      map[string]int{outbox.QueueName(cfg.OutboxQueue): 1},
		RetryDelayFunc: func(int, error, *asynq.Task) time.Duration {
			return 0
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("outbox task failed")
		}),
		Logger:   asynqLogger{logger: logger},
		LogLevel: asynq.WarnLevel,
	}), nil
}

type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
