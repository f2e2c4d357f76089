package config

import (
	"errors"
	"fmt"
	"strings"

	coreerrors "crystelf-core/internal/core/errors"
)

// Validate checks required fields and value ranges
//
// All problems are reported together.
func (c *Root) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Hub.Secret.IsEmpty() {
		add("hub.secret is required (WS_SECRET)")
	}
	if !strings.HasPrefix(c.Hub.Path, "/") {
		add("hub.path must start with /, got %q", c.Hub.Path)
	}
	if c.Hub.HeartbeatInterval <= 0 {
		add("hub.heartbeat_interval must be positive")
	}
	if c.Hub.RequestTimeout <= 0 {
		add("hub.request_timeout must be positive")
	}
	if c.Server.ListenAddr == "" {
		add("server.listen_addr is required")
	}
	if c.Server.MaxConnections < 0 {
		add("server.max_connections must not be negative")
	}
	if c.Broadcast.MinDelay < 0 || c.Broadcast.MaxDelay < c.Broadcast.MinDelay {
		add("broadcast delay range [%s, %s] is invalid", c.Broadcast.MinDelay, c.Broadcast.MaxDelay)
	}
	if c.API.RateLimit.Enabled && (c.API.RateLimit.RPS <= 0 || c.API.RateLimit.Burst <= 0) {
		add("api.rate_limit needs positive rps and burst")
	}

	switch c.Storage.Cache.Type {
	case CacheRedis:
		if c.Storage.Cache.Redis.Addr == "" {
			add("storage.cache.redis.addr is required")
		}
	case CacheEmbedded, CacheMemory:
	default:
		add("unknown storage.cache.type %q", c.Storage.Cache.Type)
	}
	switch c.Storage.Durable.Type {
	case DurableJSON:
		if c.Storage.Durable.JSON.DataDir == "" {
			add("storage.durable.json.data_dir is required")
		}
	case DurablePostgres:
		if c.Storage.Durable.Postgres.DSN.IsEmpty() {
			add("storage.durable.postgres.dsn is required (PG_DSN)")
		}
	default:
		add("unknown storage.durable.type %q", c.Storage.Durable.Type)
	}

	if len(errs) == 0 {
		return nil
	}
	return coreerrors.Wrap(errors.Join(errs...), coreerrors.CodeConfigError, "invalid configuration")
}
