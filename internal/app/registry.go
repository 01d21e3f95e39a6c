// Package app assembles the permission registry and the gRPC server from
// configuration. It is shared by the server binary, kanmonctl and the e2e tests.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/asakaida/kanmon/internal/infrastructure/cache"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/database"
	"github.com/asakaida/kanmon/internal/infrastructure/ops"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/repositories/cached"
	"github.com/asakaida/kanmon/internal/repositories/memory"
	"github.com/asakaida/kanmon/internal/repositories/postgres"
	pkgcache "github.com/asakaida/kanmon/pkg/cache"
	"github.com/asakaida/kanmon/pkg/cache/memorycache"
	"github.com/asakaida/kanmon/pkg/cache/rediscache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "kanmon:"

// Registry is the configured permission registry
type Registry struct {
	Functionalities repositories.FunctionalityRepository
	Authorities     repositories.AuthorityRepository

	// Cache is nil when caching is disabled
	Cache pkgcache.Cache
	// Postgres is nil for the memory driver
	Postgres *database.Postgres

	cached      *cached.FunctionalityRepository
	invalidator *cache.Invalidator
	redis       *rediscache.Cache
	logger      logrus.FieldLogger
}

// RegistryOption adjusts OpenRegistry
type RegistryOption func(*registryOptions)

type registryOptions struct {
	withoutCache bool
}

// WithoutCache opens the registry uncached whatever the configuration says.
// Administrative tools use it so that they always see the stored state.
func WithoutCache() RegistryOption {
	return func(o *registryOptions) { o.withoutCache = true }
}

// OpenRegistry opens the storage driver selected by cfg and wraps it in the
// configured cache. The memory driver is seeded with the default permissions.
func OpenRegistry(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, opts ...RegistryOption) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{logger: logger}

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pg, err := database.NewPostgres(&cfg.Database)
		if err != nil {
			return nil, err
		}
		r.Postgres = pg

		if cfg.Storage.AutoMigrate {
			if err := migrateUp(pg); err != nil {
				pg.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}

		r.Functionalities = postgres.NewPostgresFunctionalityRepository(pg.DB)
		r.Authorities = postgres.NewPostgresAuthorityRepository(pg.DB)

		logger.WithFields(logrus.Fields{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Database,
		}).Info("connected to database")

	case config.StorageDriverMemory:
		store := memory.NewStore()
		r.Functionalities = store.Functionalities()
		r.Authorities = store.Authorities()
		if err := repositories.SeedDefaultsAs(ctx, r.Authorities, r.Functionalities, cfg.Gate.AdminAuthority, cfg.Gate.AnonymousAuthority); err != nil {
			return nil, err
		}
		logger.Warn("using in-memory permission registry; changes are lost on restart")

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Cache.Enabled && !o.withoutCache {
		if err := r.enableCache(ctx, cfg); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

func migrateUp(pg *database.Postgres) error {
	root, err := config.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to locate migrations: %w", err)
	}
	return pg.RunMigrations(filepath.Join(root, database.MigrationsPathSuffix))
}

// redisPrefix returns the shared key prefix. Memory registries are private
// to the process, so their entries get a prefix of their own.
func redisPrefix(cfg *config.Config) string {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return redisKeyPrefix + uuid.NewString() + ":"
	}
	return redisKeyPrefix
}

func (r *Registry) enableCache(ctx context.Context, cfg *config.Config) error {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rc, err := rediscache.New(ctx, &rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   redisPrefix(cfg),
		})
		if err != nil {
			return err
		}
		r.Cache = rc
		r.redis = rc
	default:
		mc, err := memorycache.New(&memorycache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			DefaultTTL:    cfg.Cache.TTL(),
			EnableMetrics: true,
		})
		if err != nil {
			return err
		}
		r.Cache = mc
	}

	r.cached = cached.New(r.Functionalities, r.Cache, cfg.Cache.TTL(), r.logger)
	r.Functionalities = r.cached

	// Writes made by other instances reach us through LISTEN/NOTIFY
	if r.Postgres != nil {
		r.invalidator = cache.NewInvalidator(cfg.Database.ConnectionString(), r.cached, r.logger)
	}

	r.logger.WithFields(logrus.Fields{
		"backend": cfg.Cache.Backend,
		"ttl":     cfg.Cache.TTL().String(),
	}).Info("permission cache enabled")
	return nil
}

// Cached returns the caching layer, or nil when caching is disabled
func (r *Registry) Cached() *cached.FunctionalityRepository {
	return r.cached
}

// Start begins background work (cache invalidation from the database)
func (r *Registry) Start(ctx context.Context) error {
	if r.invalidator == nil {
		return nil
	}
	return r.invalidator.Start(ctx)
}

// ReadinessChecks returns probes for every external dependency
func (r *Registry) ReadinessChecks() []ops.ReadinessCheck {
	var checks []ops.ReadinessCheck
	if r.Postgres != nil {
		checks = append(checks, ops.ReadinessCheck{Name: "postgres", Check: r.Postgres.HealthCheck})
	}
	if r.redis != nil {
		checks = append(checks, ops.ReadinessCheck{Name: "redis", Check: r.redis.Ping})
	}
	return checks
}

// Close stops background work and releases connections
func (r *Registry) Close() error {
	var errs []error
	if r.invalidator != nil {
		if err := r.invalidator.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("invalidator: %w", err))
		}
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if r.Postgres != nil {
		if err := r.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
