package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perugo/reservation-engine/config"
)

func envOf(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080", cfg.Client.APIURL)
	assert.Equal(t, 1800*time.Millisecond, cfg.Client.PaymentDelay)
	assert.Equal(t, 20*time.Second, cfg.Client.HTTPTimeout)
	assert.Equal(t, 15*time.Second, cfg.Client.ReloadTimeout)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, config.DevSecret, cfg.Server.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Server.TokenTTL)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{
		"PERUGO_API_URL":       "https://api.perugo.pe/",
		"PERUGO_PAYMENT_DELAY": "0s",
		"PORT":                 "9000",
		"ALLOWED_ORIGINS":      " http://a.pe , ,http://b.pe",
		"RATE_LIMIT_RPS":       "2.5",
		"LOG_LEVEL":            "debug",
		"JWT_SECRET":           "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://api.perugo.pe", cfg.Client.APIURL)
	assert.Zero(t, cfg.Client.PaymentDelay)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"http://a.pe", "http://b.pe"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
}

func TestFromEnv_HTTPAddrBeatsPort(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{"HTTP_ADDR": "127.0.0.1:7000", "PORT": "9000"}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.HTTPAddr)
}

func TestFromEnv_RejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"PERUGO_HTTP_TIMEOUT": "soon",
		"TOKEN_TTL":           "-1h",
		"RATE_LIMIT_BURST":    "zero",
		"RATE_LIMIT_RPS":      "0",
		"LOG_LEVEL":           "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := config.FromEnv(envOf(map[string]string{key: value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnv_ProdRequiresSecret(t *testing.T) {
	_, err := config.FromEnv(envOf(map[string]string{"APP_ENV": "prod"}))
	assert.ErrorIs(t, err, config.ErrMissingSecret)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	// GIVEN a .env file in the working directory
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PERUGO_EMAIL=ana@example.com\nDB_PATH=from-file.db\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	// t.Setenv restores both keys after the test.
	t.Setenv("PERUGO_EMAIL", "")
	require.NoError(t, os.Unsetenv("PERUGO_EMAIL"))
	t.Setenv("DB_PATH", "from-env.db")

	// WHEN
	cfg, err := config.Load()

	// THEN the file fills unset keys and the environment wins otherwise
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", cfg.Client.Email)
	assert.Equal(t, "from-env.db", cfg.Server.DBPath)
}
