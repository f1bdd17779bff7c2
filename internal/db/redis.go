package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lijuuu/CTFArenaService/internal/config"
	"github.com/lijuuu/CTFArenaService/internal/logging"
)

// NewRedisClient connects to the shared store and configures RDB snapshots
// so arena state survives a Redis restart.
func NewRedisClient(ctx context.Context, cfg *config.Config, log logging.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  cfg.StoreTimeout,
		WriteTimeout: cfg.StoreTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Save if at least 1 key changed in 15 minutes, 10 in 5 minutes or
	// 10000 in 1 minute.
	if err := rdb.ConfigSet(pingCtx, "save", "900 1 300 10 60 10000").Err(); err != nil {
		log.Warn(ctx, "failed to set redis rdb save configuration", "error", err)
	}
	if err := rdb.ConfigSet(pingCtx, "dbfilename", "ctf-arena.rdb").Err(); err != nil {
		log.Warn(ctx, "failed to set redis rdb filename", "error", err)
	}

	if size, err := rdb.DBSize(pingCtx).Result(); err == nil {
		log.Info(ctx, "connected to redis", "addr", cfg.RedisURL, "keys", size)
	}
	return rdb, nil
}

// SaveRedisData forces an RDB save, falling back to a blocking SAVE when a
// background save cannot start.
func SaveRedisData(ctx context.Context, rdb *redis.Client, log logging.Logger) error {
	if err := rdb.BgSave(ctx).Err(); err != nil {
		log.Warn(ctx, "background save failed, attempting synchronous save", "error", err)
		if err := rdb.Save(ctx).Err(); err != nil {
			return fmt.Errorf("failed to save redis data: %w", err)
		}
	}
	log.Info(ctx, "redis data saved")
	return nil
}
