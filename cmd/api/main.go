package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/quotedesk/internal/analytics"
	"github.com/noah-isme/quotedesk/internal/app"
	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/auth"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/health"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/queue"
	"github.com/noah-isme/quotedesk/internal/quote"
	"github.com/noah-isme/quotedesk/internal/ratelimit"
	"github.com/noah-isme/quotedesk/internal/security"
)

const (
	adminCookie = "qd_admin"
	csrfCookie  = "qd_csrf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	env := config.Environment()
	logFormat := env.String("OBS_LOG_FORMAT", "json")
	logLevel := env.String("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("service", "quotedesk-api").Logger()

	metricsNamespace := env.String("OBS_METRICS_NAMESPACE", "quotedesk")
	metricsEnabled := env.Bool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := env.Bool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "quotedesk-api",
			Endpoint:      env.String("OBS_OTLP_ENDPOINT", ""),
			Exporter:      env.String("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: env.Float("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Build(ctx, cfg, logger, app.Options{
		AppName:      "quotedesk-api",
		MaxConns:     int32(env.Int("DB_MAX_CONNS", 10)),
		RedisMetrics: metricsEnabled,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: deps.Quotes, Validator: deps.Validator})

	authService, err := auth.NewService(auth.Config{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Secret:            []byte(cfg.JWTSecret),
		Issuer:            cfg.JWTIssuer,
		AccessTokenTTL:    cfg.AccessTokenTTL,
		Logger:            obs.Component(logger, "auth"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise admin auth")
	}
	secureCookies := cfg.AppEnv == "production"
	authHandler := &auth.Handler{
		Service:          authService,
		Validator:        deps.Validator,
		AccessCookieName: adminCookie,
		CSRFCookieName:   csrfCookie,
		CookieSecure:     secureCookies,
		CookieSameSite:   http.SameSiteStrictMode,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: adminCookie}
	csrf := security.CSRF{Cookie: csrfCookie}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	taskRedis, err := app.TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task redis url")
	}
	inspector := asynq.NewInspector(taskRedis)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Error().Err(err).Msg("close task inspector")
		}
	}()
	auditStore := audit.NewStore(deps.Pool)
	auditRec := audit.HTTPRecorder{Service: audit.Service{
		Store:   auditStore,
		Enabled: env.Bool("AUDIT_ENABLED", true),
		Logger:  obs.Component(logger, "audit"),
	}}
	auditHandler := audit.Handler{Store: auditStore}

	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Q:            analytics.NewQuerier(deps.Pool),
		R:            deps.Redis,
		TTL:          env.Millis("ANALYTICS_CACHE_TTL_MS", 5*time.Minute),
		DefaultRange: env.Int("ANALYTICS_DEFAULT_DAYS", 30),
	}}

	queueAdmin := &queue.AdminHandler{Inspector: inspector, Logger: obs.Component(logger, "queue")}
	if metricsEnabled {
		prometheus.MustRegister(queue.NewDepthCollector(metricsNamespace, inspector, queue.DefaultQueue))
	}

	limiterStore, err := ratelimit.NewRedisStore(deps.Redis, "ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	publicLimit := ratelimit.PerMinute(limiterStore, cfg.QuoteRatePerMinute)
	onLimitError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	submitLimit := ratelimit.Handler{Limiter: publicLimit, Scope: "submit", OnError: onLimitError}
	approveLimit := ratelimit.Handler{Limiter: publicLimit, Scope: "approve", OnError: onLimitError}
	loginLimit := ratelimit.Handler{Limiter: publicLimit, Scope: "login", OnError: onLimitError}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(env.String("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.HTTP{Logger: obs.Component(logger, "http"), Metrics: httpMetrics, Trace: tracingEnabled}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: secureCookies}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if env.Bool("OBS_ENABLE_PPROF", false) {
		r.Group(func(g chi.Router) {
			if user := env.String("SECURE_PPROF_BASIC_AUTH_USER", ""); user != "" {
				g.Use(middleware.BasicAuth("quotedesk-debug", map[string]string{
					user: env.String("SECURE_PPROF_BASIC_AUTH_PASS", ""),
				}))
			}
			g.Mount("/debug", middleware.Profiler())
		})
	}

	healthHandler := health.Handler{
		Checker:      health.Dependencies{Pool: deps.Pool, Redis: deps.Redis},
		DBTimeout:    env.Millis("HEALTH_READY_DB_TIMEOUT_MS", 500*time.Millisecond),
		RedisTimeout: env.Millis("HEALTH_READY_REDIS_TIMEOUT_MS", 300*time.Millisecond),
		Logger:       logger,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", quoteHandler.GetCart)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", quoteHandler.CreateCart)
				g.Post("/{id}/items", quoteHandler.AddItem)
				g.Patch("/{id}/items/{itemId}", quoteHandler.UpdateItem)
				g.Delete("/{id}/items/{itemId}", quoteHandler.RemoveItem)
				g.With(submitLimit.Middleware).Post("/{id}/submit", quoteHandler.Submit)
			})
		})
		v.Post("/quotes/preview", quoteHandler.Preview)

		v.Route("/approve/{token}", func(a chi.Router) {
			a.Use(security.NoStore)
			a.Use(approveLimit.Middleware)
			a.Get("/", quoteHandler.ViewByToken)
			a.Post("/", quoteHandler.Approve)
			a.Post("/reject", quoteHandler.Reject)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.With(loginLimit.Middleware, auditRec.Middleware(audit.HTTPConfig{Action: "admin.login", ResourceType: "session"})).Post("/login", authHandler.Login)
			admin.Post("/logout", authHandler.Logout)
			admin.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAdmin)
				g.Use(csrf.Middleware)
				g.Get("/me", authHandler.Me)
				g.Get("/quotes", quoteHandler.AdminList)
				g.Get("/quotes/{id}", quoteHandler.AdminGet)
				g.With(idem.Middleware, auditRec.Middleware(audit.HTTPConfig{Action: "quote.send", ResourceType: "quote", ResourceIDParam: "id"})).
					Post("/quotes/{id}/send", quoteHandler.AdminSend)
				g.Get("/tasks/stats", queueAdmin.Stats)
				g.Get("/tasks/failed", queueAdmin.ListFailed)
				g.With(auditRec.Middleware(audit.HTTPConfig{Action: "tasks.replay", ResourceType: "task"})).Post("/tasks/replay", queueAdmin.Replay)
				g.Get("/audit", auditHandler.List)
				g.Get("/analytics/funnel", analyticsHandler.Funnel)
				g.Get("/analytics/products", analyticsHandler.TopProducts)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	time.Sleep(env.Millis("SHUTDOWN_DRAIN_MS", 2*time.Second))
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
