package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Env reads process-level knobs (observability, timeouts, pool sizes) that
// are not part of Config. Each getter takes the fallback used when the
// variable is unset, blank or malformed.
type Env struct {
	k *koanf.Koanf
}

// Environment snapshots the current process environment.
func Environment() Env {
	k := koanf.New(".")
	_ = k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil
		}
		return key, value
	}), nil)
	return Env{k: k}
}

func (e Env) String(key, fallback string) string {
	if e.k == nil || !e.k.Exists(key) {
		return fallback
	}
	return e.k.String(key)
}

func (e Env) Bool(key string, fallback bool) bool {
	switch strings.ToLower(e.String(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func (e Env) Int(key string, fallback int) int {
	n, err := strconv.Atoi(e.String(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func (e Env) Float(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(e.String(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Millis reads a whole number of milliseconds.
func (e Env) Millis(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(e.String(key, ""))
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
