package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	s3blob "github.com/alanyoungcy/tpwatch/internal/blob/s3"
	"github.com/alanyoungcy/tpwatch/internal/bus"
	"github.com/alanyoungcy/tpwatch/internal/config"
	"github.com/alanyoungcy/tpwatch/internal/domain"
	"github.com/alanyoungcy/tpwatch/internal/platform/gw2"
	"github.com/alanyoungcy/tpwatch/internal/platform/replay"
	"github.com/alanyoungcy/tpwatch/internal/service"
	"github.com/alanyoungcy/tpwatch/internal/store/memory"
	"github.com/alanyoungcy/tpwatch/internal/store/postgres"
	"github.com/alanyoungcy/tpwatch/internal/store/redis"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Provider   domain.PricingProvider
	Aggregates service.AggregateProvider // nil for the replay source
	Store      domain.PriceStore
	Lister     domain.ItemLister

	SignalBus   domain.SignalBus
	LockManager domain.LockManager // nil without Redis

	Archive *s3blob.ArchiveImpl // nil unless archive is enabled

	Prices *service.PriceService
}

// Wire constructs the concrete implementations selected by cfg and returns
// them with a cleanup function that releases their resources in reverse
// order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	// --- Price source ---
	switch strings.ToLower(cfg.GW2.Source) {
	case "replay":
		deps.Provider = replay.NewSource(os.DirFS(cfg.GW2.ReplayDir), ".")
	default:
		source := gw2.NewPriceSource(gw2.NewClient(cfg.GW2.BaseURL, cfg.GW2.HTTPTimeout.Duration))
		deps.Provider = source
		deps.Aggregates = source
	}

	// --- Redis (store backend, bus and locks) ---
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = c.Close() })
		redisClient = c
	}

	// --- Price store ---
	switch strings.ToLower(cfg.Store.Backend) {
	case "postgres":
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
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		store := postgres.NewPriceStore(pgClient.Pool())
		deps.Store, deps.Lister = store, store
	case "redis":
		store := redis.NewPriceStore(redisClient)
		deps.Store, deps.Lister = store, store
	default:
		store := memory.NewPriceStore()
		deps.Store, deps.Lister = store, store
	}

	// --- Signal bus and locks ---
	if cfg.Redis.Enabled && redisClient != nil {
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		deps.SignalBus = bus.NewLocal()
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled {
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
			return fail("s3", err)
		}
		deps.Archive = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Store,
			cfg.Archive.Prefix,
		)
	}

	deps.Prices = service.NewPriceService(
		deps.Provider,
		deps.Store,
		deps.Aggregates,
		deps.SignalBus,
		logger.With(slog.String("component", "price_service")),
	)

	logger.Info("dependencies wired",
		slog.String("source", cfg.GW2.Source),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("redis", redisClient != nil),
		slog.Bool("archive", deps.Archive != nil),
	)

	return deps, cleanup, nil
}
