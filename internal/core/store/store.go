// Package store 缓存与持久化存储抽象
//
// 缓存层保存序列化后的 JSON，可设置 TTL；
// 持久层按 namespace/name 保存记录，进程重启后仍可读取。
package store

import (
	"context"
	"time"
)

// CacheStore 键值缓存
type CacheStore interface {
	// Get 不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Set ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// AddMember 向集合 set 加入 member，集合不随条目 TTL 过期
	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	// Members 集合成员，集合不存在时返回空
	Members(ctx context.Context, set string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// DurableStore 持久化记录存储
type DurableStore interface {
	// Read 不存在时返回 ErrNotFound
	Read(ctx context.Context, namespace, name string) ([]byte, error)
	Write(ctx context.Context, namespace, name string, data []byte) error
	// List 返回 namespace 下全部记录名，按字典序
	List(ctx context.Context, namespace string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
