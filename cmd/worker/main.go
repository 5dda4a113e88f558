package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/app"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/notify"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/resilience"
	"github.com/noah-isme/quotedesk/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	env := config.Environment()
	logFormat := env.String("OBS_LOG_FORMAT", "json")
	logLevel := env.String("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("service", "quotedesk-worker").Logger()

	obs.MustRegisterDomainMetrics(env.String("OBS_METRICS_NAMESPACE", "quotedesk"), nil)

	if env.Bool("OBS_ENABLE_TRACING", true) {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "quotedesk-worker",
			Environment:   cfg.AppEnv,
			Exporter:      env.String("OBS_TRACING_EXPORTER", "otlp"),
			Endpoint:      env.String("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: env.Float("OBS_TRACING_SAMPLING_RATIO", 1.0),
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Build(initCtx, cfg, logger, app.Options{
		AppName:  "quotedesk-worker",
		MaxConns: int32(env.Int("DB_MAX_CONNS", 5)),
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

	processor := mustBuildProcessor(cfg, env, deps, logger)

	redisOpt, err := app.TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task redis url")
	}
	taskLogger := obs.Component(logger, "tasks")
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Logger:          asynqLogger{log: taskLogger},
		ShutdownTimeout: env.Millis("WORKER_SHUTDOWN_MS", 20*time.Second),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			taskLogger.Warn().Err(err).Str("type", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(notify.TypeQuoteEmail, processor)

	sweepLogger := obs.Component(logger, "sweep")
	scheduler, err := sweep.Schedule(ctx, cfg.ExpirySweepSpec, sweep.Sweeper{
		Quotes:  deps.Quotes,
		Locker:  lock.Locker{R: deps.Redis, Prefix: "lock:"},
		Timeout: env.Millis("SWEEP_TIMEOUT_MS", time.Minute),
		Logger:  sweepLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.ExpirySweepSpec).Msg("schedule expiry sweep")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	scheduler.Start()
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("sweep", cfg.ExpirySweepSpec).Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	<-scheduler.Stop().Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustBuildProcessor(cfg *config.Config, env config.Env, deps *app.Dependencies, logger zerolog.Logger) *notify.Processor {
	loc, err := time.LoadLocation(env.String("QUOTE_TIMEZONE", "Australia/Sydney"))
	if err != nil {
		logger.Warn().Err(err).Msg("load quote timezone, using UTC")
		loc = time.UTC
	}
	renderer, err := notify.NewRenderer(cfg.CurrencyCode, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse email templates")
	}

	var sender notify.Sender = notify.LogSender{Logger: obs.Component(logger, "mail")}
	if cfg.ResendAPIKey != "" {
		resilience.MustRegisterMetrics(nil)
		breaker := resilience.NewBreaker("resend", resilience.Options{
			MinRequests:  env.Int("RESEND_BREAKER_MIN_REQUESTS", 5),
			FailureRatio: 0.5,
			OpenFor:      env.Millis("RESEND_BREAKER_OPEN_MS", 30*time.Second),
			Logger:       obs.Component(logger, "resilience"),
		})
		resendSender, err := notify.NewResendSender(cfg.ResendAPIKey, resilience.Transport{Breaker: breaker})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise resend")
		}
		sender = resendSender
	} else {
		logger.Warn().Msg("RESEND_API_KEY not set, emails are logged only")
	}

	var pdf notify.PDFRenderer
	if cfg.PDFEnabled {
		pdf = notify.ChromePDF{ExecPath: cfg.ChromePath, Timeout: env.Millis("PDF_TIMEOUT_MS", 30*time.Second)}
	}

	return &notify.Processor{
		Quotes:      deps.Quotes,
		Renderer:    renderer,
		PDF:         pdf,
		Sender:      sender,
		Guard:       notify.RedisDeliveryGuard{Client: deps.Redis, Prefix: "notify:sent:"},
		From:        cfg.NotifyEmailFrom,
		SalesEmail:  cfg.NotifySalesEmail,
		ApprovalURL: cfg.ApprovalURL,
		Logger:      obs.Component(logger, "notify"),
	}
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
