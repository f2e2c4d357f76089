// Package config loads the hub configuration from YAML and environment variables
package config

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	corelog "crystelf-core/internal/core/log"
)

// Root is the top-level configuration structure
type Root struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Hub       HubConfig       `yaml:"hub" json:"hub"`
	API       APIConfig       `yaml:"api" json:"api"`
	Broadcast BroadcastConfig `yaml:"broadcast" json:"broadcast"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Log       corelog.Config  `yaml:"log" json:"log"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// HubConfig contains websocket hub settings
type HubConfig struct {
	Path              string        `yaml:"path" json:"path"`
	Secret            Secret        `yaml:"secret" json:"secret"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	MaxMessageSize    int64         `yaml:"max_message_size" json:"max_message_size"`
}

// APIConfig contains bot HTTP API settings
type APIConfig struct {
	Token     Secret          `yaml:"token" json:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains token bucket settings
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	RPS     float64 `yaml:"rps" json:"rps"`
	Burst   int     `yaml:"burst" json:"burst"`
}

// BroadcastConfig bounds the random delay of broadcast deliveries
type BroadcastConfig struct {
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// Storage backend types
const (
	CacheRedis    = "redis"
	CacheEmbedded = "embedded"
	CacheMemory   = "memory"

	DurableJSON     = "json"
	DurablePostgres = "postgres"
)

// StorageConfig contains cache and durable store settings
type StorageConfig struct {
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Durable DurableConfig `yaml:"durable" json:"durable"`
}

// CacheConfig selects and configures the cache store
type CacheConfig struct {
	Type   string        `yaml:"type" json:"type"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
	Redis  RedisConfig   `yaml:"redis" json:"redis"`
	Memory MemoryConfig  `yaml:"memory" json:"memory"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	Password   Secret `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db"`
	PoolSize   int    `yaml:"pool_size" json:"pool_size"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	KeyPrefix  string `yaml:"key_prefix" json:"key_prefix"`
}

// MemoryConfig contains in-process LRU settings
type MemoryConfig struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// DurableConfig selects and configures the durable store
type DurableConfig struct {
	Type     string         `yaml:"type" json:"type"`
	JSON     JSONConfig     `yaml:"json" json:"json"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// JSONConfig contains file store settings
type JSONConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// PostgresConfig contains PostgreSQL store settings
type PostgresConfig struct {
	DSN      Secret `yaml:"dsn" json:"dsn"`
	Table    string `yaml:"table" json:"table"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
}

// Secret masks sensitive values when logged or serialized
type Secret string

// String returns a masked representation
func (s Secret) String() string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "****"
	default:
		return string(s[:2]) + "****" + string(s[len(s)-2:])
	}
}

// Value returns the raw secret
func (s Secret) Value() string { return string(s) }

// IsEmpty reports whether the secret is unset
func (s Secret) IsEmpty() bool { return s == "" }

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	*s = Secret(node.Value)
	return nil
}
