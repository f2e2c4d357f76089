// Package state 缓存优先、持久化兜底的状态存储
package state

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/core/store"
)

// Config 状态存储配置
type Config struct {
	Cache   store.CacheStore
	Durable store.DurableStore
	// CacheTTL 写入缓存时的过期时间，0 表示不过期
	CacheTTL time.Duration
	Logger   corelog.Logger
	Metrics  metrics.Metrics
}

// Store 读优先走缓存，缓存缺失时从持久层读取并回填
type Store struct {
	cache    store.CacheStore
	durable  store.DurableStore
	cacheTTL time.Duration
	logger   corelog.Logger
	metrics  metrics.Metrics
}

// New 创建状态存储
func New(cfg *Config) *Store {
	s := &Store{
		cache:    cfg.Cache,
		durable:  cfg.Durable,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = corelog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	return s
}

// Fetch 读取记录并解码到 out，两层都没有时返回 store.ErrNotFound
func (s *Store) Fetch(ctx context.Context, namespace, name string, out any) error {
	key := store.CacheKey(namespace, name)

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		jerr := json.Unmarshal(data, out)
		if jerr == nil {
			return nil
		}
		s.logger.Warnf("state: cached %s is not valid json, falling back: %v", key, jerr)
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warnf("state: cache read %s failed, falling back: %v", key, err)
	}

	data, err = s.durable.Read(ctx, namespace, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "decode %s", key)
	}

	s.metrics.Inc(metrics.StoreFallbacks, map[string]string{"namespace": namespace})
	if err := s.cache.Set(ctx, key, data, 0); err != nil {
		s.logger.Warnf("state: warm cache %s failed: %v", key, err)
	}
	return nil
}

// Persist 依次写入缓存和持久层，返回前两次写入都已尝试
//
// 单层失败只记录日志，两层都失败时返回错误。
func (s *Store) Persist(ctx context.Context, namespace, name string, value any) error {
	if err := store.ValidateName("namespace", namespace); err != nil {
		return err
	}
	if err := store.ValidateName("name", name); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "encode state value")
	}

	key := store.CacheKey(namespace, name)
	cacheErr := s.cache.Set(ctx, key, data, s.cacheTTL)
	if cacheErr == nil {
		cacheErr = s.cache.AddMember(ctx, store.IndexKey(namespace), name)
	}
	if cacheErr != nil {
		s.logger.Errorf("state: cache write %s failed: %v", key, cacheErr)
	}
	durableErr := s.durable.Write(ctx, namespace, name, data)
	if durableErr != nil {
		s.logger.Errorf("state: durable write %s failed: %v", key, durableErr)
	}

	if cacheErr != nil && durableErr != nil {
		return coreerrors.Wrapf(errors.Join(cacheErr, durableErr), coreerrors.CodeStorageError, "persist %s", key)
	}
	return nil
}

// Update 浅合并 partial 到已有记录并写回，记录不存在时返回 store.ErrNotFound
func (s *Store) Update(ctx context.Context, namespace, name string, partial map[string]any) (map[string]any, error) {
	existing := map[string]any{}
	if err := s.Fetch(ctx, namespace, name, &existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Errorf("state: update %s: record does not exist", store.CacheKey(namespace, name))
		}
		return nil, err
	}

	for k, v := range partial {
		existing[k] = v
	}
	if err := s.Persist(ctx, namespace, name, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Names namespace 下的记录名：缓存索引与持久层列表的并集，按字典序
//
// 持久层写入失败的记录只存在于缓存中。一边读取失败时记录日志并使用另一边。
func (s *Store) Names(ctx context.Context, namespace string) ([]string, error) {
	cached, cacheErr := s.cache.Members(ctx, store.IndexKey(namespace))
	if cacheErr != nil {
		s.logger.Warnf("state: cache index of %s unavailable: %v", namespace, cacheErr)
	}
	durable, durableErr := s.durable.List(ctx, namespace)
	if durableErr != nil {
		s.logger.Warnf("state: durable list of %s failed: %v", namespace, durableErr)
	}
	if cacheErr != nil && durableErr != nil {
		return nil, coreerrors.Wrapf(errors.Join(cacheErr, durableErr), coreerrors.CodeStorageError, "list %s", namespace)
	}

	seen := make(map[string]struct{}, len(cached)+len(durable))
	names := make([]string, 0, len(cached)+len(durable))
	for _, list := range [][]string{cached, durable} {
		for _, n := range list {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Evict 删除缓存中的记录及其索引项，持久层不受影响
func (s *Store) Evict(ctx context.Context, namespace, name string) error {
	if err := s.cache.Delete(ctx, store.CacheKey(namespace, name)); err != nil {
		return err
	}
	return s.cache.RemoveMember(ctx, store.IndexKey(namespace), name)
}
