package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies QUANTBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known QUANTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Aggregate ──
	setDuration(&cfg.Aggregate.AdapterTimeout, "QUANTBOT_AGGREGATE_ADAPTER_TIMEOUT")
	setFloat64(&cfg.Aggregate.MinConfidence, "QUANTBOT_AGGREGATE_MIN_CONFIDENCE")
	setFloat64(&cfg.Aggregate.MinExpectedValue, "QUANTBOT_AGGREGATE_MIN_EXPECTED_VALUE")

	// ── Rank ──
	setBool(&cfg.Rank.OracleEnabled, "QUANTBOT_RANK_ORACLE_ENABLED")
	setInt(&cfg.Rank.OracleTopN, "QUANTBOT_RANK_ORACLE_TOP_N")
	setInt(&cfg.Rank.HistorySize, "QUANTBOT_RANK_HISTORY_SIZE")

	// ── Stake ──
	setFloat64(&cfg.Stake.KellyFraction, "QUANTBOT_STAKE_KELLY_FRACTION")
	setFloat64(&cfg.Stake.MinStake, "QUANTBOT_STAKE_MIN_STAKE")
	setFloat64(&cfg.Stake.MaxStake, "QUANTBOT_STAKE_MAX_STAKE")

	// ── Lifecycle ──
	setFloat64(&cfg.Lifecycle.TakeProfitPct, "QUANTBOT_LIFECYCLE_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Lifecycle.StopLossPct, "QUANTBOT_LIFECYCLE_STOP_LOSS_PCT")
	setFloat64(&cfg.Lifecycle.FeeRate, "QUANTBOT_LIFECYCLE_FEE_RATE")
	setInt(&cfg.Lifecycle.MaxOpenPositions, "QUANTBOT_LIFECYCLE_MAX_OPEN_POSITIONS")

	// ── Strategy ──
	setBool(&cfg.Strategy.AutoExecute, "QUANTBOT_STRATEGY_AUTO_EXECUTE")
	setDuration(&cfg.Strategy.SpotInterval, "QUANTBOT_STRATEGY_SPOT_INTERVAL")
	setDuration(&cfg.Strategy.ScanInterval, "QUANTBOT_STRATEGY_SCAN_INTERVAL")
	setStringSlice(&cfg.Strategy.Instruments, "QUANTBOT_STRATEGY_INSTRUMENTS")

	// ── Feeds ──
	setStr(&cfg.Feeds.PicksURL, "QUANTBOT_FEEDS_PICKS_URL")
	setStr(&cfg.Feeds.PicksApiKey, "QUANTBOT_FEEDS_PICKS_API_KEY")
	setStr(&cfg.Feeds.NewsURL, "QUANTBOT_FEEDS_NEWS_URL")
	setStr(&cfg.Feeds.NewsApiKey, "QUANTBOT_FEEDS_NEWS_API_KEY")
	setStr(&cfg.Feeds.TickerWsURL, "QUANTBOT_FEEDS_TICKER_WS_URL")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "QUANTBOT_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.ApiKey, "QUANTBOT_ORACLE_API_KEY")
	setStr(&cfg.Oracle.Model, "QUANTBOT_ORACLE_MODEL")
	setDuration(&cfg.Oracle.Timeout, "QUANTBOT_ORACLE_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "QUANTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "QUANTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "QUANTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "QUANTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "QUANTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "QUANTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "QUANTBOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "QUANTBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "QUANTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QUANTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QUANTBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "QUANTBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "QUANTBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "QUANTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "QUANTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "QUANTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "QUANTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "QUANTBOT_S3_SECRET_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "QUANTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "QUANTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "QUANTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "QUANTBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "QUANTBOT_MODE")
	setStr(&cfg.LogLevel, "QUANTBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
