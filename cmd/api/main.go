package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-liquidacion/internal/app"
	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/common"
	"github.com/noah-isme/backend-liquidacion/internal/config"
	"github.com/noah-isme/backend-liquidacion/internal/editor"
	"github.com/noah-isme/backend-liquidacion/internal/health"
	"github.com/noah-isme/backend-liquidacion/internal/lock"
	"github.com/noah-isme/backend-liquidacion/internal/obs"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/ratelimit"
	"github.com/noah-isme/backend-liquidacion/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "liquidacion")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "liquidacion-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	catalogService := catalog.NewService(catalog.ServiceConfig{
		Catalog: deps.Catalog,
		Source:  deps.Backend,
		Cache:   catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Logger:  logger,
	})
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	var refresher *catalog.Refresher
	if deps.Redis != nil {
		refresher = &catalog.Refresher{
			Service: catalogService,
			Guard:   lock.Locker{R: deps.Redis, Prefix: "liquidacion:lock:"},
			Timeout: 4 * cfg.UpstreamTimeout,
			Logger:  logger,
		}
		if err := refresher.Start(cfg.CatalogRefresh); err != nil {
			logger.Fatal().Err(err).Str("spec", cfg.CatalogRefresh).Msg("schedule catalog refresh")
		}
	}

	dispatcher := outbox.NewDispatcher(deps.NewTransport(cfg.OutboxQueue), outbox.Options{
		Workers: cfg.OutboxWorkers,
		Buffer:  cfg.OutboxBuffer,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
	})
	outboxAdmin := &outbox.AdminHandler{Dispatcher: dispatcher, Redis: deps.Redis, Queue: cfg.OutboxQueue}

	registry := editor.NewRegistry(cfg.SessionIdleTTL, logger)
	if err := registry.StartSweeper(cfg.SessionSweepSpec); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.SessionSweepSpec).Msg("schedule session sweeper")
	}
	editorHandler := editor.NewHandler(editor.HandlerConfig{
		Registry: registry,
		Deps: editor.Deps{
			Provider: deps.Backend,
			Outbox:   dispatcher,
			Catalog:  deps.Catalog,
			Logger:   logger,
		},
		Catalog: catalogService,
		Saver:   deps.Backend,
		Logger:  logger,
	})

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: deps.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
		Skip:  func(r *http.Request) bool { return r.Method == http.MethodOptions },
		Scope: "api",
	}
	writeLimiter := limiter
	writeLimiter.Scope = "write"
	writeLimiter.Config.Key = ratelimit.BySession
	writeLimiter.Config.Max = cfg.RateLimitWriteMax
	writes := func(next http.Handler) http.Handler {
		return writeLimiter.Middleware(idem.Middleware(next))
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLE", cfg.AppEnv == "production"),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", true),
	}.Middleware)
	r.Use(cors.Handler(corsOptions(cfg)))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:         app.Checker{Redis: deps.Redis, Backend: deps.Backend},
		RedisTimeout:    envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		UpstreamTimeout: envDurationMillis("HEALTH_READY_UPSTREAM_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limiter.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Route("/options", func(o chi.Router) {
			o.Get("/rubros/{tab}", catalogHandler.Rubros)
			o.Get("/exporters", catalogHandler.Exporters)
			o.Get("/bases", catalogHandler.Bases)
		})

		v.Route("/sessions", func(s chi.Router) {
			s.With(idem.Middleware).Post("/", editorHandler.Create)
			s.Route("/{sessionID}", func(one chi.Router) {
				one.Get("/", editorHandler.Get)
				one.Get("/totals", editorHandler.Totals)
				one.Get("/consolidated", editorHandler.Consolidated)
				one.Get("/export.xlsx", editorHandler.Export)
				one.Post("/navigation", editorHandler.Navigate)
				one.Post("/cancel", editorHandler.Cancel)
				one.Group(func(g chi.Router) {
					g.Use(writes)
					g.Patch("/general-info", editorHandler.UpdateGeneralInfo)
					g.Post("/items", editorHandler.AddItem)
					g.Delete("/items/{type}/{itemId}", editorHandler.DeleteItem)
					g.Post("/save", editorHandler.Save)
				})
				one.Route("/shipments/{shipmentId}", func(sh chi.Router) {
					sh.Get("/items", editorHandler.Items)
					sh.Get("/totals", editorHandler.Totals)
					sh.With(writes).Post("/items", editorHandler.AddItem)
					sh.With(writes).Delete("/items/{type}/{itemId}", editorHandler.DeleteItem)
				})
			})
		})

		v.Route("/admin/outbox", func(admin chi.Router) {
			admin.Get("/failures", outboxAdmin.Failures)
			admin.Get("/stats", outboxAdmin.Stats)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("upstream", cfg.UpstreamMode).Str("outbox", cfg.OutboxTransport).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}

	if refresher != nil {
		refresher.Stop()
	}
	registry.Close()
	dispatcher.Close()
	stats := dispatcher.Stats()
	logger.Info().
		Int64("delivered", stats.Delivered).
		Int64("failed", stats.Failed).
		Int64("dropped", stats.Dropped).
		Msg("server stopped")
}

func corsOptions(cfg *config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
