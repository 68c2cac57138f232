package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValidInEveryMode(t *testing.T) {
	for _, mode := range []string{"scan", "trade", "full"} {
		cfg := Defaults()
		cfg.Mode = mode
		assert.NoError(t, cfg.Validate(), "mode %s", mode)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Stake.KellyFraction = 1.5
	cfg.Stake.MinStake = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "kelly_fraction")
	assert.Contains(t, err.Error(), "min_stake")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateOracleNeedsApiKey(t *testing.T) {
	cfg := Defaults()
	cfg.Rank.OracleEnabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle: api_key")

	cfg.Oracle.ApiKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidateTradeModeChecksBucketAndWatchlist(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Strategy.SpotBucket = "nonexistent"
	cfg.Strategy.Instruments = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spot_bucket")
	assert.Contains(t, err.Error(), "instruments")
}

func TestValidateTelegramRequiresChatID(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "12345:abc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram_chat_id")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"
log_level = "debug"

[stake]
kelly_fraction = 0.5
max_stake = 75

[strategy]
spot_interval = "90s"
instruments = ["SOL-USD"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.5, cfg.Stake.KellyFraction, 1e-9)
	assert.InDelta(t, 75.0, cfg.Stake.MaxStake, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Strategy.SpotInterval.Duration)
	assert.Equal(t, []string{"SOL-USD"}, cfg.Strategy.Instruments)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 5.0, cfg.Stake.MinStake, 1e-9)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "scan"`), 0o600))

	t.Setenv("QUANTBOT_MODE", "trade")
	t.Setenv("QUANTBOT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("QUANTBOT_STAKE_MAX_STAKE", "120")
	t.Setenv("QUANTBOT_STRATEGY_INSTRUMENTS", "BTC-USD, DOGE-USD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode, "env wins over the file")
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.InDelta(t, 120.0, cfg.Stake.MaxStake, 1e-9)
	assert.Equal(t, []string{"BTC-USD", "DOGE-USD"}, cfg.Strategy.Instruments)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Oracle.ApiKey = "sk-secret"
	cfg.Notify.TelegramToken = "tg-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Feeds.Venues = []VenueFeedConfig{{Name: "alpha", ApiKey: "venue-secret"}}

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Oracle.ApiKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Feeds.Venues[0].ApiKey)

	// The original is untouched and empty secrets stay empty.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
	assert.Empty(t, red.Redis.Password)
}
