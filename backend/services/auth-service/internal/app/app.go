package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/migrations"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
	"github.com/redis/go-redis/v9"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
	migrateTimeout = 60 * time.Second
)

type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	// Redis is nil unless REDIS_URL is configured.
	Redis redis.UniversalClient
}

func NewApp(cfg *config.Config) (*App, error) {
	dbPool, err := connectWithRetry("database", func(ctx context.Context) (*pgxpool.Pool, error) {
		return newDBPool(ctx, cfg.DBUrl)
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: dbPool}

	if err := a.migrate(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		rdb, err := connectWithRetry("redis", func(ctx context.Context) (redis.UniversalClient, error) {
			return newRedisClient(ctx, cfg.RedisURL)
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
	}

	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			utils.Logger.WithError(err).Warn("Error closing redis client")
		} else {
			utils.Logger.Info("Redis connection closed.")
		}
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("Database connection closed.")
	}
}

// migrate applies the embedded schema through a database/sql handle that
// shares the pool's connection settings.
func (a *App) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	sqlDB := stdlib.OpenDB(*a.DB.Config().ConnConfig)
	defer sqlDB.Close()

	if err := migrations.Up(ctx, sqlDB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	utils.Logger.Info("Database migrations are up to date.")
	return nil
}

func connectWithRetry[T any](name string, dial func(ctx context.Context) (T, error)) (T, error) {
	var (
		conn    T
		err     error
		backoff = initialBackoff
	)

	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		conn, err = dial(ctx)
		cancel()
		if err == nil {
			utils.Logger.Infof("Successfully connected to %s on attempt %d", name, i)
			return conn, nil
		}

		utils.Logger.WithError(err).Warnf(
			"Failed to connect to %s on attempt %d/%d. Retrying in %v...",
			name, i, maxRetries, backoff,
		)

		if i == maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	var zero T
	return zero, fmt.Errorf("unable to connect to %s after %d attempts: %w", name, maxRetries, err)
}

// newDBPool constructs the pgx pool with production-safe settings.
//
//   - MaxConnIdleTime closes idle sockets before an upstream proxy does
//   - HealthCheckPeriod keeps every conn warm
func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	return pgxpool.ConnectConfig(ctx, cfg)
}

func newRedisClient(ctx context.Context, redisURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
