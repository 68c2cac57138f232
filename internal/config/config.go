// Package config defines the top-level configuration for quantbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by QUANTBOT_* environment variables.
type Config struct {
	Aggregate AggregateConfig `toml:"aggregate"`
	Rank      RankConfig      `toml:"rank"`
	Stake     StakeConfig     `toml:"stake"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Oracle    OracleConfig    `toml:"oracle"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Report    ReportConfig    `toml:"report"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// AggregateConfig controls the opportunity aggregator.
type AggregateConfig struct {
	// AdapterTimeout bounds each source adapter's Fetch call.
	AdapterTimeout duration `toml:"adapter_timeout"`
	// MinConfidence drops opportunities below this confidence (0..100).
	MinConfidence float64 `toml:"min_confidence"`
	// MinExpectedValue drops opportunities below this expected percent return.
	MinExpectedValue float64 `toml:"min_expected_value"`
}

// RankConfig controls the ranking engine.
type RankConfig struct {
	// OracleEnabled turns the advisory oracle pass on for the top slate.
	OracleEnabled bool `toml:"oracle_enabled"`
	// OracleTopN is how many leading candidates are sent for advice.
	OracleTopN int `toml:"oracle_top_n"`
	// HistorySize bounds the in-memory learning buffer.
	HistorySize int `toml:"history_size"`
}

// StakeConfig controls the Kelly stake sizer.
type StakeConfig struct {
	// KellyFraction scales the raw Kelly stake; 0.25 is quarter-Kelly.
	KellyFraction float64 `toml:"kelly_fraction"`
	MinStake      float64 `toml:"min_stake"`
	MaxStake      float64 `toml:"max_stake"`
}

// ArbitrageConfig controls the cross-venue matcher.
type ArbitrageConfig struct {
	Enabled bool `toml:"enabled"`
	// MatchThreshold is the minimum fuzzy-match score for two quotes to be
	// treated as the same event.
	MatchThreshold int `toml:"match_threshold"`
	// MinEdge is the minimum combined-price edge, e.g. 0.03.
	MinEdge float64 `toml:"min_edge"`
}

// LifecycleConfig controls position entry/exit behavior.
type LifecycleConfig struct {
	// TakeProfitPct and StopLossPct are fractional offsets from entry,
	// e.g. 0.015 and 0.02.
	TakeProfitPct float64 `toml:"take_profit_pct"`
	StopLossPct   float64 `toml:"stop_loss_pct"`
	// FeeRate estimates venue fees when the venue does not report them.
	FeeRate          float64  `toml:"fee_rate"`
	MaxOpenPositions int      `toml:"max_open_positions"`
	TickerTimeout    duration `toml:"ticker_timeout"`
}

// BucketConfig seeds one capital bucket.
type BucketConfig struct {
	Initial    float64 `toml:"initial"`
	DailyLimit float64 `toml:"daily_limit"`
}

// LedgerConfig controls the capital ledger.
type LedgerConfig struct {
	Buckets map[string]BucketConfig `toml:"buckets"`
	// DesyncTolerance is the absolute dollar drift between internal state
	// and the venue balance that triggers a desync warning.
	DesyncTolerance float64 `toml:"desync_tolerance"`
	// LockTTL bounds the distributed reservation lock.
	LockTTL duration `toml:"lock_ttl"`
}

// StrategyConfig controls the periodic loops.
type StrategyConfig struct {
	// AutoExecute gates real order placement in the spot loop.
	AutoExecute  bool     `toml:"auto_execute"`
	SpotInterval duration `toml:"spot_interval"`
	ScanInterval duration `toml:"scan_interval"`
	// SpotBucket and ScanBucket name the ledger buckets each loop draws on.
	SpotBucket string `toml:"spot_bucket"`
	ScanBucket string `toml:"scan_bucket"`
	// Instruments is the watchlist for the momentum scanner, e.g. ["BTC-USD"].
	Instruments []string `toml:"instruments"`
}

// VenueFeedConfig points at one prediction venue's quote endpoint.
type VenueFeedConfig struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
}

// FeedsConfig holds upstream data feed endpoints.
type FeedsConfig struct {
	PicksURL    string            `toml:"picks_url"`
	PicksApiKey string            `toml:"picks_api_key"`
	NewsURL     string            `toml:"news_url"`
	NewsApiKey  string            `toml:"news_api_key"`
	Venues      []VenueFeedConfig `toml:"venues"`
	// TickerWsURL is the websocket ticker feed for watchlist instruments.
	TickerWsURL string `toml:"ticker_ws_url"`
}

// OracleConfig holds the advisory oracle (OpenAI-compatible) endpoint.
type OracleConfig struct {
	BaseURL string   `toml:"base_url"`
	ApiKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ReportConfig controls daily reporting and archival.
type ReportConfig struct {
	Interval duration `toml:"interval"`
	// ArchiveAfter is how old closed positions and learnings must be before
	// the archiver moves them to object storage.
	ArchiveAfter duration `toml:"archive_after"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding ("30s", "5m") as well as text marshalling.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var validModes = map[string]bool{
	"scan":  true,
	"trade": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Aggregate: AggregateConfig{
			AdapterTimeout:   duration{10 * time.Second},
			MinConfidence:    55,
			MinExpectedValue: 2,
		},
		Rank: RankConfig{
			OracleEnabled: false,
			OracleTopN:    5,
			HistorySize:   500,
		},
		Stake: StakeConfig{
			KellyFraction: 0.25,
			MinStake:      5,
			MaxStake:      50,
		},
		Arbitrage: ArbitrageConfig{
			Enabled:        true,
			MatchThreshold: 4,
			MinEdge:        0.03,
		},
		Lifecycle: LifecycleConfig{
			TakeProfitPct:    0.015,
			StopLossPct:      0.02,
			FeeRate:          0.006,
			MaxOpenPositions: 3,
			TickerTimeout:    duration{5 * time.Second},
		},
		Ledger: LedgerConfig{
			Buckets: map[string]BucketConfig{
				"spot":       {Initial: 200, DailyLimit: 100},
				"prediction": {Initial: 100, DailyLimit: 50},
			},
			DesyncTolerance: 1.0,
			LockTTL:         duration{15 * time.Second},
		},
		Strategy: StrategyConfig{
			AutoExecute:  false,
			SpotInterval: duration{5 * time.Minute},
			ScanInterval: duration{30 * time.Minute},
			SpotBucket:   "spot",
			ScanBucket:   "prediction",
			Instruments:  []string{"BTC-USD", "ETH-USD"},
		},
		Oracle: OracleConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: duration{20 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "quantbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "quantbot-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "ledger_desync", "opportunity_found", "daily_report", "error"},
		},
		Report: ReportConfig{
			Interval:     duration{24 * time.Hour},
			ArchiveAfter: duration{30 * 24 * time.Hour},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// Validate checks Config for obviously invalid or missing values and returns a
// single error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Aggregate.AdapterTimeout.Duration <= 0 {
		errs = append(errs, "aggregate: adapter_timeout must be > 0")
	}
	if c.Aggregate.MinConfidence < 0 || c.Aggregate.MinConfidence > 100 {
		errs = append(errs, fmt.Sprintf("aggregate: min_confidence must be 0-100, got %g", c.Aggregate.MinConfidence))
	}

	if c.Rank.OracleTopN < 1 {
		errs = append(errs, "rank: oracle_top_n must be >= 1")
	}
	if c.Rank.HistorySize < 1 {
		errs = append(errs, "rank: history_size must be >= 1")
	}
	if c.Rank.OracleEnabled && c.Oracle.ApiKey == "" {
		errs = append(errs, "oracle: api_key is required when rank.oracle_enabled is true")
	}

	if c.Stake.KellyFraction <= 0 || c.Stake.KellyFraction > 1 {
		errs = append(errs, fmt.Sprintf("stake: kelly_fraction must be in (0,1], got %g", c.Stake.KellyFraction))
	}
	if c.Stake.MinStake <= 0 {
		errs = append(errs, "stake: min_stake must be > 0")
	}
	if c.Stake.MaxStake < c.Stake.MinStake {
		errs = append(errs, "stake: max_stake must be >= min_stake")
	}

	if c.Arbitrage.Enabled {
		if c.Arbitrage.MatchThreshold < 1 {
			errs = append(errs, "arbitrage: match_threshold must be >= 1")
		}
		if c.Arbitrage.MinEdge <= 0 {
			errs = append(errs, "arbitrage: min_edge must be > 0 when enabled")
		}
	}

	if c.Lifecycle.TakeProfitPct <= 0 {
		errs = append(errs, "lifecycle: take_profit_pct must be > 0")
	}
	if c.Lifecycle.StopLossPct <= 0 || c.Lifecycle.StopLossPct >= 1 {
		errs = append(errs, "lifecycle: stop_loss_pct must be in (0,1)")
	}
	if c.Lifecycle.MaxOpenPositions < 1 {
		errs = append(errs, "lifecycle: max_open_positions must be >= 1")
	}

	if len(c.Ledger.Buckets) == 0 {
		errs = append(errs, "ledger: at least one bucket must be configured")
	}
	for name, b := range c.Ledger.Buckets {
		if b.Initial < 0 {
			errs = append(errs, fmt.Sprintf("ledger: bucket %q initial must be >= 0", name))
		}
		if b.DailyLimit <= 0 {
			errs = append(errs, fmt.Sprintf("ledger: bucket %q daily_limit must be > 0", name))
		}
	}
	if c.Ledger.DesyncTolerance < 0 {
		errs = append(errs, "ledger: desync_tolerance must be >= 0")
	}

	mode := strings.ToLower(c.Mode)
	if mode == "trade" || mode == "full" {
		if _, ok := c.Ledger.Buckets[c.Strategy.SpotBucket]; !ok {
			errs = append(errs, fmt.Sprintf("strategy: spot_bucket %q is not a configured ledger bucket", c.Strategy.SpotBucket))
		}
		if len(c.Strategy.Instruments) == 0 {
			errs = append(errs, "strategy: instruments must not be empty for mode "+mode)
		}
		if c.Strategy.SpotInterval.Duration <= 0 {
			errs = append(errs, "strategy: spot_interval must be > 0")
		}
	}
	if mode == "scan" || mode == "full" {
		if _, ok := c.Ledger.Buckets[c.Strategy.ScanBucket]; !ok {
			errs = append(errs, fmt.Sprintf("strategy: scan_bucket %q is not a configured ledger bucket", c.Strategy.ScanBucket))
		}
		if c.Strategy.ScanInterval.Duration <= 0 {
			errs = append(errs, "strategy: scan_interval must be > 0")
		}
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if c.Report.Interval.Duration <= 0 {
		errs = append(errs, "report: interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
