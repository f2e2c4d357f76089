package config

import (
	"time"

	corelog "crystelf-core/internal/core/log"
)

// Default returns a configuration with every optional field populated
func Default() *Root {
	return &Root{
		Server: ServerConfig{
			ListenAddr:     ":6868",
			MaxConnections: 1024,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		Hub: HubConfig{
			Path:              "/ws",
			HeartbeatInterval: 30 * time.Second,
			RequestTimeout:    5 * time.Second,
			WriteTimeout:      10 * time.Second,
			MaxMessageSize:    1 << 20,
		},
		API: APIConfig{
			RateLimit: RateLimitConfig{Enabled: true, RPS: 20, Burst: 40},
		},
		Broadcast: BroadcastConfig{
			MinDelay: 10 * time.Second,
			MaxDelay: 150 * time.Second,
		},
		Storage: StorageConfig{
			Cache: CacheConfig{
				Type: CacheRedis,
				Redis: RedisConfig{
					Addr:       "127.0.0.1:6379",
					PoolSize:   10,
					MaxRetries: 3,
				},
				Memory: MemoryConfig{Size: 4096},
			},
			Durable: DurableConfig{
				Type:     DurableJSON,
				JSON:     JSONConfig{DataDir: "private/data"},
				Postgres: PostgresConfig{Table: "state_records", MaxConns: 8},
			},
		},
		Log: corelog.Config{
			Level:  "info",
			Format: corelog.FormatText,
			Output: corelog.OutputStdout,
		},
	}
}
