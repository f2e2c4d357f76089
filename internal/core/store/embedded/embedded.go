// Package embedded 进程内 Redis（miniredis），用于单机部署和测试
package embedded

import (
	"fmt"
	"time"

	redisstore "crystelf-core/internal/core/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Store 内嵌 Redis 缓存，行为与 redis.Store 一致
type Store struct {
	*redisstore.Store
	server *miniredis.Miniredis
}

// New 启动 miniredis 并连接
func New(keyPrefix string) (*Store, error) {
	server, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return &Store{
		Store:  redisstore.New(client, keyPrefix),
		server: server,
	}, nil
}

// Addr 监听地址
func (s *Store) Addr() string {
	return s.server.Addr()
}

// FastForward 推进 TTL 时钟
func (s *Store) FastForward(d time.Duration) {
	s.server.FastForward(d)
}

// FlushAll 清空全部数据，模拟缓存淘汰
func (s *Store) FlushAll() {
	s.server.FlushAll()
}

// Close 关闭客户端与服务
func (s *Store) Close() error {
	err := s.Store.Close()
	s.server.Close()
	return err
}
