// Package app assembles the infrastructure and services shared by the API
// and the worker processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/db"
	"github.com/noah-isme/quotedesk/internal/events"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/notify"
	"github.com/noah-isme/quotedesk/internal/pricing"
	"github.com/noah-isme/quotedesk/internal/quote"
)

// Dependencies holds long-lived clients and the quote service.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	TaskClient *asynq.Client
	Validator  *validator.Validate
	Catalog    catalog.Reader
	Bus        *events.Bus
	Quotes     *quote.Service
}

// Options tune Build for the calling process.
type Options struct {
	AppName        string
	MaxConns       int32
	RedisMetrics   bool
	DisableNotices bool
}

// Build connects to Postgres and Redis and wires the quote service. Callers
// must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, opts.AppName, opts.MaxConns)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Redis:     rdb,
		Validator: common.NewValidator(),
	}
	d.Catalog = catalog.NewCachedReader(catalog.NewStore(pool), catalog.NewCache(rdb, cfg.CatalogCacheTTL), logger)
	d.Bus = &events.Bus{Store: events.NewStore(pool)}
	if !opts.DisableNotices {
		redisOpt, err := TaskRedisOpt(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.TaskClient = asynq.NewClient(redisOpt)
		d.Bus.Notifiers = append(d.Bus.Notifiers, notify.Dispatcher{
			Client: d.TaskClient,
			Logger: logger.With().Str("component", "notify").Logger(),
		})
	}

	d.Quotes, err = NewQuoteService(cfg, d.Catalog, pool, rdb, d.Bus, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// NewQuoteService wires the quote workflow over Postgres and Redis.
func NewQuoteService(cfg *config.Config, reader catalog.Reader, pool *pgxpool.Pool, rdb *redis.Client, bus *events.Bus, logger zerolog.Logger) (*quote.Service, error) {
	policy := cfg.PricingPolicy()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	svcCfg := quote.ServiceConfig{
		Catalog: reader,
		Carts:   quote.RedisCartStore{R: rdb, TTL: cfg.CartTTL},
		Store:   quote.NewStore(pool),
		Numbers: quote.RedisNumberer{R: rdb, Prefix: cfg.QuoteNumberPrefix},
		Locker:  lock.Locker{R: rdb, RetryBackoff: 25 * time.Millisecond, Prefix: "lock:"},
		Builder: quote.Builder{
			Resolver:         quote.NewResolver(cfg.CustomSpecBrands),
			PlaceholderImage: cfg.QuotePlaceholderImage,
		},
		Assembler: quote.Assembler{Calculator: pricing.NewCalculator(policy)},
		Lifecycle: quote.NewLifecycle(cfg.QuoteTokenTTL),
		Logger:    logger.With().Str("component", "quote").Logger(),
	}
	if bus != nil {
		svcCfg.Events = bus
	}
	return quote.NewService(svcCfg)
}

// NewRedis opens a traced Redis client and checks connectivity.
func NewRedis(ctx context.Context, url string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}
	return client, nil
}

// TaskRedisOpt converts the Redis URL for asynq.
func TaskRedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("app: parse task redis url: %w", err)
	}
	return opt, nil
}

// Close releases every client. It is safe to call on a partially built value.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var joined error
	if d.TaskClient != nil {
		joined = errors.Join(joined, d.TaskClient.Close())
	}
	if d.Redis != nil {
		joined = errors.Join(joined, d.Redis.Close())
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	return joined
}
