// Package redis Redis 缓存存储
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store"

	"github.com/redis/go-redis/v9"
)

const backend = "redis"

// Config Redis 连接配置
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	KeyPrefix  string

	DialTimeout time.Duration

	// 启动时连接重试，间隔每次翻倍
	ConnectAttempts int
	RetryDelay      time.Duration

	Logger corelog.Logger
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = corelog.Default()
	}
}

// Store 基于 go-redis 的 CacheStore
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New 包装已有客户端
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Connect 建立连接并 Ping，失败时按指数退避重试
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})

	delay := cfg.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			cfg.Logger.Infof("redis: connected to %s (db=%d)", cfg.Addr, cfg.DB)
			return New(client, cfg.KeyPrefix), nil
		}

		cfg.Logger.Warnf("redis: connect attempt %d/%d to %s failed: %v", attempt, cfg.ConnectAttempts, cfg.Addr, lastErr)
		if attempt == cfg.ConnectAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeStorageError, "redis connect cancelled")
		}
		delay *= 2
	}

	_ = client.Close()
	return nil, coreerrors.Wrapf(lastErr, coreerrors.CodeStorageError,
		"redis %s unreachable after %d attempts", cfg.Addr, cfg.ConnectAttempts)
}

func (s *Store) key(k string) string {
	return s.keyPrefix + k
}

// Client 底层客户端
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(backend, "get", key, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return store.NewError(backend, "set", key, fmt.Errorf("negative ttl %v", ttl))
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return store.NewError(backend, "set", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return store.NewError(backend, "delete", key, err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, s.key(set), member).Err(); err != nil {
		return store.NewError(backend, "sadd", set, err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, set, member string) error {
	if err := s.client.SRem(ctx, s.key(set), member).Err(); err != nil {
		return store.NewError(backend, "srem", set, err)
	}
	return nil
}

func (s *Store) Members(ctx context.Context, set string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(set)).Result()
	if err != nil {
		return nil, store.NewError(backend, "smembers", set, err)
	}
	return members, nil
}

// TTL 剩余过期时间，未设置过期返回 0
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, store.NewError(backend, "ttl", key, err)
	}
	switch d {
	case -2:
		return 0, store.ErrNotFound
	case -1:
		return 0, nil
	}
	return d, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return store.NewError(backend, "ping", "", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.CacheStore = (*Store)(nil)
