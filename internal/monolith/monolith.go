// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/di"
	"github.com/fd1az/depth-compare/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	// Redis returns nil when the persisted price cache is disabled.
	Redis() *redis.Client
	// DB returns nil when the audit store is disabled.
	DB() *pgxpool.Pool
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	redis         *redis.Client
	db            *pgxpool.Pool
	container     di.Container
}

// New creates a new Monolith instance, connecting to the optional collaborators.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	assetRegistry := asset.DefaultRegistry()
	stables := make([]asset.Symbol, 0, len(cfg.Oracle.Stablecoins))
	for _, s := range cfg.Oracle.Stablecoins {
		stables = append(stables, asset.NewSymbol(s))
	}
	assetRegistry.MarkStablecoins(stables...)

	a := &app{
		config:        cfg,
		logger:        log,
		assetRegistry: assetRegistry,
		container:     di.NewContainer(),
	}

	if cfg.Redis.Enabled {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
	}

	if cfg.Audit.Enabled {
		pool, err := newPool(ctx, cfg.Audit)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = pool
	}

	// Register global services
	a.container.Register("config", cfg)
	a.container.Register("logger", log)
	a.container.Register("assetRegistry", assetRegistry)
	a.container.Register("redis", a.redis)
	a.container.Register("db", a.db)

	return a, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func newPool(ctx context.Context, cfg config.AuditConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Redis() *redis.Client {
	return a.redis
}

func (a *app) DB() *pgxpool.Pool {
	return a.db
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules in order.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
