package server

import (
	"context"
	"fmt"

	"crystelf-core/internal/config"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store"
	"crystelf-core/internal/core/store/embedded"
	"crystelf-core/internal/core/store/jsonfile"
	"crystelf-core/internal/core/store/memory"
	"crystelf-core/internal/core/store/postgres"
	redisstore "crystelf-core/internal/core/store/redis"
)

// createCache 根据配置创建缓存层
func createCache(ctx context.Context, cfg *config.CacheConfig, logger corelog.Logger) (store.CacheStore, error) {
	switch cfg.Type {
	case config.CacheRedis:
		return redisstore.Connect(ctx, redisstore.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password.Value(),
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			Logger:     logger,
		})
	case config.CacheEmbedded:
		s, err := embedded.New(cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		logger.Infof("server: embedded redis listening on %s", s.Addr())
		return s, nil
	case config.CacheMemory:
		return memory.New(cfg.Memory.Size, cfg.Memory.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// createDurable 根据配置创建持久层
func createDurable(ctx context.Context, cfg *config.DurableConfig, logger corelog.Logger) (store.DurableStore, error) {
	switch cfg.Type {
	case config.DurableJSON:
		return jsonfile.New(cfg.JSON.DataDir)
	case config.DurablePostgres:
		return postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN.Value(),
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unsupported durable type: %s", cfg.Type)
	}
}

func describeCache(cfg *config.CacheConfig) string {
	switch cfg.Type {
	case config.CacheRedis:
		return "redis (" + cfg.Redis.Addr + ")"
	case config.CacheMemory:
		return fmt.Sprintf("memory (lru %d)", cfg.Memory.Size)
	default:
		return cfg.Type
	}
}

func describeDurable(cfg *config.DurableConfig) string {
	switch cfg.Type {
	case config.DurableJSON:
		return "json (" + cfg.JSON.DataDir + ")"
	case config.DurablePostgres:
		return "postgres (" + cfg.Postgres.DSN.String() + ")"
	default:
		return cfg.Type
	}
}
