package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/common"
)

const (
	defaultAccessTTL = 12 * time.Hour
	defaultClockSkew = 30 * time.Second
	defaultAudience  = "quotedesk-admin"
)

var (
	ErrInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	errMissingToken       = common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
)

// Config holds the single back-office account and token settings.
type Config struct {
	AdminEmail        string
	AdminPasswordHash string
	Secret            []byte
	Issuer            string
	Audience          string
	AccessTokenTTL    time.Duration
	ClockSkew         time.Duration
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Service authenticates staff and issues short-lived access tokens.
type Service struct {
	email        string
	passwordHash string
	secret       []byte
	issuer       string
	audience     string
	accessTTL    time.Duration
	clockSkew    time.Duration
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	logger       zerolog.Logger
	now          func() time.Time
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewService validates cfg and applies defaults.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPasswordHash == "" {
		return nil, errors.New("auth: admin email and password hash are required")
	}
	if _, _, _, err := argon2id.DecodeHash(cfg.AdminPasswordHash); err != nil {
		return nil, fmt.Errorf("auth: admin password hash: %w", err)
	}
	s := &Service{
		email:        email,
		passwordHash: cfg.AdminPasswordHash,
		secret:       cfg.Secret,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		accessTTL:    cfg.AccessTokenTTL,
		clockSkew:    cfg.ClockSkew,
		signer:       jwa.HS256,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if s.issuer == "" {
		s.issuer = "quotedesk"
	}
	if s.audience == "" {
		s.audience = defaultAudience
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.clockSkew <= 0 {
		s.clockSkew = defaultClockSkew
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.validator = TokenValidator{
		Issuer:    s.issuer,
		Audience:  s.audience,
		ClockSkew: s.clockSkew,
		Algorithm: s.signer,
		Role:      RoleAdmin,
	}
	return s, nil
}

// HashPassword produces the argon2id hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// Login checks the credentials against the configured account.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	match, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		return LoginResult{}, err
	}
	// both checks run so a wrong email costs the same as a wrong password
	if !match || email != s.email {
		s.logger.Warn().Str("email", email).Msg("admin_login_failed")
		return LoginResult{}, ErrInvalidCredentials
	}
	token, expiresAt, err := s.signAccessToken(s.email)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info().Str("email", email).Msg("admin_login")
	return LoginResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// ParseAccessToken verifies the token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errMissingToken
	}
	algorithm, err := headerAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized(err)
	}
	if algorithm != s.validator.Algorithm {
		return "", unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized(err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", unauthorized(err)
	}
	return parsed.Subject(), nil
}

func (s *Service) signAccessToken(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, RoleAdmin).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}
