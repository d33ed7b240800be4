// Package bootstrap opens the stores selected by the configuration. It is
// shared by the bot binary and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"santabot/backend/internal/config"
	"santabot/backend/internal/lock"
	"santabot/backend/internal/session"
	"santabot/backend/internal/storage"
	"santabot/backend/internal/storage/jsondb"
	"santabot/backend/internal/storage/postgres"

	"github.com/redis/go-redis/v9"
)

// OpenStore opens the persistent store named by cfg.StorageDriver.
func OpenStore(cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverJSONDB:
		db, err := jsondb.Open(cfg.DBPath, jsondb.WithHumanReadable())
		if err != nil {
			return nil, fmt.Errorf("open json db: %w", err)
		}
		slog.Info("json document store ready", "path", cfg.DBPath)
		return db, nil
	case config.DriverPostgres:
		return postgres.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// OpenRedis connects to cfg.RedisAddr. It returns a nil client when no
// address is configured.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	slog.Info("redis connection established", "addr", cfg.RedisAddr)
	return rdb, nil
}

// Coordination returns the session store and locker. Without redis both
// live in process.
func Coordination(cfg config.Config, rdb *redis.Client) (session.Store, lock.Locker) {
	if rdb == nil {
		slog.Warn("REDIS_ADDR not set: sessions and locks are in-process only")
		return session.NewMemoryStore(), lock.NewLocalLocker()
	}
	return session.NewRedisStore(rdb, cfg.SessionTTL),
		lock.NewRedisLocker(rdb, cfg.LockTTL, config.LockRetryBackoff, config.LockMaxWait)
}
