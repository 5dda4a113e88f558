// Package config loads quotedesk settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	JWTSecret         string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	AdminEmail        string
	AdminPasswordHash string

	CurrencyCode     string
	TaxRateBps       int
	CertFeeCents     int64
	DiscountTiers    []pricing.Tier
	CustomSpecBrands []string

	QuoteTokenTTL         time.Duration
	QuoteNumberPrefix     string
	QuotePlaceholderImage string
	CartTTL               time.Duration
	CatalogCacheTTL       time.Duration
	IdempotencyTTL        time.Duration
	QuoteRatePerMinute    int64

	ResendAPIKey     string
	NotifyEmailFrom  string
	NotifySalesEmail string
	PublicBaseURL    string
	PDFEnabled       bool
	ChromePath       string

	ExpirySweepSpec   string
	WorkerConcurrency int
}

var defaults = map[string]any{
	"APP_ENV":                  "development",
	"PORT":                     "8080",
	"JWT_ISSUER":               "quotedesk",
	"ACCESS_TOKEN_TTL":         "12h",
	"CURRENCY_CODE":            "AUD",
	"PRICING_TAX_RATE_BPS":     1000,
	"PRICING_CERT_FEE_CENTS":   35_000,
	"PRICING_DISCOUNT_TIERS":   "10:15,5:10,2:5",
	"CUSTOM_SPEC_BRANDS":       "Straub,Teekay",
	"QUOTE_TOKEN_TTL":          "168h",
	"QUOTE_NUMBER_PREFIX":      "Q",
	"QUOTE_PLACEHOLDER_IMAGE":  "/images/placeholder.png",
	"CART_TTL":                 "168h",
	"CATALOG_CACHE_TTL":        "5m",
	"IDEMPOTENCY_TTL":          "24h",
	"RATE_LIMIT_QUOTE_PER_MIN": 5,
	"NOTIFY_EMAIL_FROM":        "Quotes <quotes@example.com>",
	"PUBLIC_BASE_URL":          "http://localhost:3000",
	"PDF_ENABLED":              false,
	"EXPIRY_SWEEP_SPEC":        "@every 15m",
	"WORKER_CONCURRENCY":       5,
}

// Load reads a .env file when present, then the process environment over
// the built-in defaults. Blank variables count as unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("config default %s: %w", key, err)
		}
	}
	nonBlank := func(key, value string) (string, any) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil
		}
		return key, value
	}
	if err := k.Load(env.ProviderWithValue("", ".", nonBlank), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	var errs []error
	tiers, err := pricing.ParseTiers(k.String("PRICING_DISCOUNT_TIERS"))
	if err != nil {
		errs = append(errs, fmt.Errorf("PRICING_DISCOUNT_TIERS: %w", err))
	}
	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(k.String(key))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, k.String(key)))
		}
		return d
	}

	cfg := &Config{
		AppEnv:             k.String("APP_ENV"),
		Port:               k.String("PORT"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: csv(k.String("CORS_ALLOWED_ORIGINS")),

		JWTSecret:         k.String("JWT_SECRET"),
		JWTIssuer:         k.String("JWT_ISSUER"),
		AccessTokenTTL:    duration("ACCESS_TOKEN_TTL"),
		AdminEmail:        strings.ToLower(k.String("ADMIN_EMAIL")),
		AdminPasswordHash: k.String("ADMIN_PASSWORD_HASH"),

		CurrencyCode:     strings.ToUpper(k.String("CURRENCY_CODE")),
		TaxRateBps:       k.Int("PRICING_TAX_RATE_BPS"),
		CertFeeCents:     k.Int64("PRICING_CERT_FEE_CENTS"),
		DiscountTiers:    tiers,
		CustomSpecBrands: csv(k.String("CUSTOM_SPEC_BRANDS")),

		QuoteTokenTTL:         duration("QUOTE_TOKEN_TTL"),
		QuoteNumberPrefix:     k.String("QUOTE_NUMBER_PREFIX"),
		QuotePlaceholderImage: k.String("QUOTE_PLACEHOLDER_IMAGE"),
		CartTTL:               duration("CART_TTL"),
		CatalogCacheTTL:       duration("CATALOG_CACHE_TTL"),
		IdempotencyTTL:        duration("IDEMPOTENCY_TTL"),
		QuoteRatePerMinute:    k.Int64("RATE_LIMIT_QUOTE_PER_MIN"),

		ResendAPIKey:     k.String("RESEND_API_KEY"),
		NotifyEmailFrom:  k.String("NOTIFY_EMAIL_FROM"),
		NotifySalesEmail: k.String("NOTIFY_SALES_EMAIL"),
		PublicBaseURL:    strings.TrimRight(k.String("PUBLIC_BASE_URL"), "/"),
		PDFEnabled:       k.Bool("PDF_ENABLED"),
		ChromePath:       k.String("CHROME_PATH"),

		ExpirySweepSpec:   k.String("EXPIRY_SWEEP_SPEC"),
		WorkerConcurrency: k.Int("WORKER_CONCURRENCY"),
	}

	for key, v := range map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"JWT_SECRET":   cfg.JWTSecret,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if cfg.WorkerConcurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if len(errs) == 0 {
		if err := cfg.PricingPolicy().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PricingPolicy builds the pricing policy from configuration.
func (c *Config) PricingPolicy() pricing.Policy {
	policy := pricing.DefaultPolicy()
	if len(c.DiscountTiers) > 0 {
		policy.Tiers = c.DiscountTiers
	}
	policy.TaxRateBps = c.TaxRateBps
	policy.CertFeePerSKU = c.CertFeeCents
	policy.Currency = c.CurrencyCode
	return policy
}

// HTTPAddr returns the listen address, accepting PORT as "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ApprovalURL returns the customer-facing approval link for a raw token.
func (c *Config) ApprovalURL(token string) string {
	return c.PublicBaseURL + "/quote/approve/" + token
}

func csv(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
