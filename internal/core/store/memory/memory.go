// Package memory 进程内 LRU 缓存
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crystelf-core/internal/core/store"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	data     []byte
	expireAt time.Time
}

// Store 基于 expirable LRU 的 CacheStore
//
// defaultTTL 作用于整个缓存，Set 传入的 ttl 作用于单个条目，先到期者生效。
//
// 集合与条目分开保存，不参与 LRU 淘汰。
type Store struct {
	lru    *expirable.LRU[string, entry]
	closed atomic.Bool
	now    func() time.Time

	setsMu sync.Mutex
	sets   map[string]map[string]struct{}
}

// New 创建缓存，size 为 0 表示不限容量，defaultTTL 为 0 表示不过期
func New(size int, defaultTTL time.Duration) *Store {
	return &Store{
		lru:  expirable.NewLRU[string, entry](size, nil, defaultTTL),
		now:  time.Now,
		sets: make(map[string]map[string]struct{}),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, store.ErrNotFound
	}
	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		s.lru.Remove(key)
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	e := entry{data: make([]byte, len(value))}
	copy(e.data, value)
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

func (s *Store) AddMember(_ context.Context, set, member string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	s.setsMu.Lock()
	defer s.setsMu.Unlock()
	members, ok := s.sets[set]
	if !ok {
		members = make(map[string]struct{})
		s.sets[set] = members
	}
	members[member] = struct{}{}
	return nil
}

func (s *Store) RemoveMember(_ context.Context, set, member string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	s.setsMu.Lock()
	defer s.setsMu.Unlock()
	if members, ok := s.sets[set]; ok {
		delete(members, member)
		if len(members) == 0 {
			delete(s.sets, set)
		}
	}
	return nil
}

func (s *Store) Members(_ context.Context, set string) ([]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	s.setsMu.Lock()
	defer s.setsMu.Unlock()
	out := make([]string, 0, len(s.sets[set]))
	for m := range s.sets[set] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Len 当前条目数
func (s *Store) Len() int {
	return s.lru.Len()
}

// Purge 清空缓存，包括集合
func (s *Store) Purge() {
	s.lru.Purge()
	s.setsMu.Lock()
	s.sets = make(map[string]map[string]struct{})
	s.setsMu.Unlock()
}

func (s *Store) Ping(context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	s.Purge()
	return nil
}

var _ store.CacheStore = (*Store)(nil)
