package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/quantbotio/quantbot/internal/blob/s3"
	"github.com/quantbotio/quantbot/internal/cache/redis"
	"github.com/quantbotio/quantbot/internal/config"
	"github.com/quantbotio/quantbot/internal/domain"
	"github.com/quantbotio/quantbot/internal/notify"
	"github.com/quantbotio/quantbot/internal/rank"
	"github.com/quantbotio/quantbot/internal/store/postgres"
)

// Dependencies bundles the infrastructure every mode builds on. Constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore    domain.PositionStore
	OpportunityStore domain.OpportunityStore
	LearningStore    domain.LearningStore
	AuditStore       domain.AuditStore

	// Caches
	PriceCache  domain.PriceCache
	LockManager domain.LockManager

	// Blob storage; nil unless s3.enabled.
	Archiver *s3blob.ArchiveImpl

	// Notifications
	Notifier *notify.Notifier

	// History is the in-memory learning buffer, seeded from the store.
	History *rank.History
}

// Wire constructs the concrete dependency implementations from the given
// configuration. The returned cleanup function releases every resource wired
// so far, in reverse order, and must be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.OpportunityStore = postgres.NewOpportunityStore(pool)
	deps.LearningStore = postgres.NewLearningStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.PositionStore,
			deps.LearningStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Learning history, seeded with the most recent persisted records ---
	seed, err := deps.LearningStore.ListRecent(ctx, cfg.Rank.HistorySize)
	if err != nil {
		logger.WarnContext(ctx, "wire: seeding learning history failed, starting empty",
			slog.String("error", err.Error()))
		seed = nil
	}
	deps.History = rank.NewHistory(cfg.Rank.HistorySize, seed)

	return deps, cleanup, nil
}
