package config

import (
	"net"
	"os"
	"strconv"
	"strings"
)

// LookupFunc resolves an environment variable
type LookupFunc func(key string) (string, bool)

// applyEnv overrides cfg with environment variables
//
// RD_ADD and RD_PORT are joined into the Redis address; either may be set alone.
func applyEnv(cfg *Root, lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envLoader{lookup: lookup}

	e.secret("WS_SECRET", &cfg.Hub.Secret)
	e.secret("TOKEN", &cfg.API.Token)
	e.str("LISTEN_ADDR", &cfg.Server.ListenAddr)

	e.str("CACHE_TYPE", &cfg.Storage.Cache.Type)
	host, hostSet := lookup("RD_ADD")
	port, portSet := lookup("RD_PORT")
	if hostSet || portSet {
		curHost, curPort, err := net.SplitHostPort(cfg.Storage.Cache.Redis.Addr)
		if err != nil {
			curHost, curPort = cfg.Storage.Cache.Redis.Addr, "6379"
		}
		if hostSet && host != "" {
			curHost = host
		}
		if portSet && port != "" {
			curPort = port
		}
		cfg.Storage.Cache.Redis.Addr = net.JoinHostPort(curHost, curPort)
	}
	e.secret("RD_PASSWORD", &cfg.Storage.Cache.Redis.Password)
	e.integer("RD_DB", &cfg.Storage.Cache.Redis.DB)

	e.str("DURABLE_TYPE", &cfg.Storage.Durable.Type)
	e.str("DATA_DIR", &cfg.Storage.Durable.JSON.DataDir)
	e.secret("PG_DSN", &cfg.Storage.Durable.Postgres.DSN)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
}

type envLoader struct {
	lookup LookupFunc
}

func (e envLoader) str(key string, target *string) {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		*target = strings.TrimSpace(v)
	}
}

func (e envLoader) secret(key string, target *Secret) {
	if v, ok := e.lookup(key); ok && v != "" {
		*target = Secret(v)
	}
}

func (e envLoader) integer(key string, target *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*target = n
	}
}
