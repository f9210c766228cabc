/*
config.go - Environment configuration for the client and the plan service

PURPOSE:
  Both binaries read their settings from the environment. A .env file in
  the working directory is loaded first when present; real environment
  variables win over it. Command-line flags override both (see cmd/).

CLIENT KEYS (cmd/planes):
  PERUGO_API_URL           Plan service base URL       (http://localhost:8080)
  PERUGO_EMAIL             Account used for login
  PERUGO_PASSWORD
  PERUGO_CACHE_DB          SQLite offline cache path   (perugo-cache.db)
  PERUGO_PAYMENT_DELAY     Simulated payment delay     (1.8s)
  PERUGO_REFRESH_INTERVAL  Background reload period    (1m)
  PERUGO_HTTP_TIMEOUT      Per-request timeout         (20s)
  PERUGO_RELOAD_TIMEOUT    Rollback reload timeout     (15s)

SERVER KEYS (cmd/server):
  HTTP_ADDR or PORT        Listen address              (:8080)
  DB_PATH                  SQLite database             (perugo.db)
  JWT_SECRET               Token signing key (required outside dev)
  TOKEN_TTL                Session token lifetime      (168h)
  ALLOWED_ORIGINS          Comma-separated CORS origins
  RATE_LIMIT_RPS           Per-IP requests per second  (10)
  RATE_LIMIT_BURST         Per-IP burst                (20)

SHARED:
  APP_ENV                  dev | prod                  (dev)
  LOG_LEVEL                debug | info | warn | error (info)

SEE ALSO:
  - cmd/server/main.go
  - cmd/planes/main.go
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned in prod when JWT_SECRET is unset.
var ErrMissingSecret = errors.New("JWT_SECRET is required when APP_ENV=prod")

// DevSecret signs tokens when JWT_SECRET is unset outside prod.
const DevSecret = "perugo-dev-secret"

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	Client ClientConfig
	Server ServerConfig
}

type ClientConfig struct {
	APIURL          string
	Email           string
	Password        string
	CacheDB         string
	PaymentDelay    time.Duration
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
	ReloadTimeout   time.Duration
}

type ServerConfig struct {
	HTTPAddr       string
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Unset keys take their
// defaults; malformed values are errors.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	httpAddr := getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8080"
		}
	}

	cfg := Config{
		AppEnv:   p.str("APP_ENV", "dev"),
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),
		Client: ClientConfig{
			APIURL:          strings.TrimRight(p.str("PERUGO_API_URL", "http://localhost:8080"), "/"),
			Email:           getenv("PERUGO_EMAIL"),
			Password:        getenv("PERUGO_PASSWORD"),
			CacheDB:         p.str("PERUGO_CACHE_DB", "perugo-cache.db"),
			PaymentDelay:    p.duration("PERUGO_PAYMENT_DELAY", 1800*time.Millisecond),
			RefreshInterval: p.duration("PERUGO_REFRESH_INTERVAL", time.Minute),
			HTTPTimeout:     p.duration("PERUGO_HTTP_TIMEOUT", 20*time.Second),
			ReloadTimeout:   p.duration("PERUGO_RELOAD_TIMEOUT", 15*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:       httpAddr,
			DBPath:         p.str("DB_PATH", "perugo.db"),
			JWTSecret:      getenv("JWT_SECRET"),
			TokenTTL:       p.duration("TOKEN_TTL", 7*24*time.Hour),
			AllowedOrigins: list(getenv("ALLOWED_ORIGINS")),
			RateLimitRPS:   p.float("RATE_LIMIT_RPS", 10),
			RateLimitBurst: p.int("RATE_LIMIT_BURST", 20),
		},
	}
	if p.err != nil {
		return Config{}, p.err
	}

	if cfg.Server.JWTSecret == "" {
		if cfg.AppEnv == "prod" {
			return Config{}, ErrMissingSecret
		}
		cfg.Server.JWTSecret = DevSecret
	}
	return cfg, nil
}

// =============================================================================
// PARSING
// =============================================================================

// parser keeps the first malformed key.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, fallback string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, v)
		return fallback
	}
	return d
}

func (p *parser) float(key string, fallback float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		p.fail(key, v)
		return fallback
	}
	return f
}

func (p *parser) int(key string, fallback int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.fail(key, v)
		return fallback
	}
	return n
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v)
		return fallback
	}
	return l
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q", key, value)
	}
}

func list(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Logger returns a text logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}
