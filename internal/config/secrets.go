package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Feeds
	out.Feeds = cfg.Feeds
	redact(&out.Feeds.PicksApiKey)
	redact(&out.Feeds.NewsApiKey)
	if cfg.Feeds.Venues != nil {
		out.Feeds.Venues = make([]VenueFeedConfig, len(cfg.Feeds.Venues))
		copy(out.Feeds.Venues, cfg.Feeds.Venues)
		for i := range out.Feeds.Venues {
			redact(&out.Feeds.Venues[i].ApiKey)
		}
	}

	// Oracle
	out.Oracle = cfg.Oracle
	redact(&out.Oracle.ApiKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Strategy.Instruments != nil {
		out.Strategy.Instruments = make([]string, len(cfg.Strategy.Instruments))
		copy(out.Strategy.Instruments, cfg.Strategy.Instruments)
	}
	if cfg.Ledger.Buckets != nil {
		out.Ledger.Buckets = make(map[string]BucketConfig, len(cfg.Ledger.Buckets))
		for k, v := range cfg.Ledger.Buckets {
			out.Ledger.Buckets[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
