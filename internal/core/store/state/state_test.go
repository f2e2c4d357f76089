package state

import (
	"context"
	"errors"
	"testing"
	"time"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/core/store"
	"crystelf-core/internal/core/store/embedded"
	"crystelf-core/internal/core/store/jsonfile"
	"crystelf-core/internal/core/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	UIN      int64  `json:"uin"`
	Nickname string `json:"nickname"`
}

func newTestStore(t *testing.T) (*Store, *embedded.Store, *jsonfile.Store, *metrics.Memory) {
	t.Helper()
	cache, err := embedded.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	durable, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)

	m := metrics.NewMemory()
	return New(&Config{Cache: cache, Durable: durable, Logger: corelog.NewTestLogger(t), Metrics: m}), cache, durable, m
}

func TestStore_PersistEvictFetch(t *testing.T) {
	s, cache, _, m := newTestStore(t)
	ctx := context.Background()

	want := []record{{UIN: 1, Nickname: "a"}, {UIN: 2, Nickname: "b"}}
	require.NoError(t, s.Persist(ctx, "crystelfBots", "alice", want))

	cache.FlushAll()

	var got []record
	require.NoError(t, s.Fetch(ctx, "crystelfBots", "alice", &got))
	assert.Equal(t, want, got)
	assert.Equal(t, 1.0, m.Get(metrics.StoreFallbacks, map[string]string{"namespace": "crystelfBots"}))

	// 回填后再次读取命中缓存
	raw, err := cache.Get(ctx, store.CacheKey("crystelfBots", "alice"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"uin":1,"nickname":"a"},{"uin":2,"nickname":"b"}]`, string(raw))
}

func TestStore_FetchMissing(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	var out []record
	err := s.Fetch(context.Background(), "crystelfBots", "ghost", &out)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_KeysDoNotCollide(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, "crystelfBots", "alice", []record{{UIN: 1}}))
	require.NoError(t, s.Persist(ctx, "crystelfBots", "bob", []record{{UIN: 2}}))

	var alice []record
	require.NoError(t, s.Fetch(ctx, "crystelfBots", "alice", &alice))
	assert.Equal(t, int64(1), alice[0].UIN)
}

func TestStore_Update(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "settings", "global", map[string]any{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Persist(ctx, "settings", "global", map[string]any{"a": "1", "b": "2"}))
	merged, err := s.Update(ctx, "settings", "global", map[string]any{"b": "3", "c": "4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, merged)

	var stored map[string]any
	require.NoError(t, s.Fetch(ctx, "settings", "global", &stored))
	assert.Equal(t, merged, stored)
}

func TestStore_Names(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, "crystelfBots", "bob", []record{}))
	require.NoError(t, s.Persist(ctx, "crystelfBots", "alice", []record{}))

	names, err := s.Names(ctx, "crystelfBots")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

type failingDurable struct{ store.DurableStore }

func (failingDurable) Write(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func (failingDurable) Read(context.Context, string, string) ([]byte, error) {
	return nil, store.ErrNotFound
}

func TestStore_DurableFailureIsNotSurfaced(t *testing.T) {
	cache := memory.New(0, 0)
	s := New(&Config{Cache: cache, Durable: failingDurable{}, Logger: corelog.NewNopLogger()})
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, "crystelfBots", "alice", []record{{UIN: 7}}))

	var got []record
	require.NoError(t, s.Fetch(ctx, "crystelfBots", "alice", &got))
	assert.Equal(t, int64(7), got[0].UIN)

	require.NoError(t, cache.Close())
	err := s.Persist(ctx, "crystelfBots", "alice", []record{})
	assert.Error(t, err)
}

func TestStore_CacheTTL(t *testing.T) {
	cache, err := embedded.New("")
	require.NoError(t, err)
	defer cache.Close()
	durable, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)

	s := New(&Config{Cache: cache, Durable: durable, CacheTTL: time.Minute, Logger: corelog.NewNopLogger()})
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, "ns", "k", map[string]int{"v": 1}))

	cache.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, store.CacheKey("ns", "k"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	var out map[string]int
	require.NoError(t, s.Fetch(ctx, "ns", "k", &out))
	assert.Equal(t, 1, out["v"])
}

func TestStore_PersistRejectsBadName(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	assert.Error(t, s.Persist(context.Background(), "crystelfBots", "../x", []record{}))
}

// readOnlyDurable 可读可列举，写入总是失败
type readOnlyDurable struct{ store.DurableStore }

func (readOnlyDurable) Write(context.Context, string, string, []byte) error {
	return errors.New("read-only file system")
}

func TestStore_NamesIncludeCacheOnlyRecords(t *testing.T) {
	durable, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, durable.Write(ctx, "crystelfBots", "bob", []byte(`[]`)))

	s := New(&Config{Cache: memory.New(0, 0), Durable: readOnlyDurable{durable}, Logger: corelog.NewNopLogger()})
	require.NoError(t, s.Persist(ctx, "crystelfBots", "alice", []record{{UIN: 100}}))

	listed, err := durable.List(ctx, "crystelfBots")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, listed)

	names, err := s.Names(ctx, "crystelfBots")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	require.NoError(t, s.Evict(ctx, "crystelfBots", "alice"))
	names, err = s.Names(ctx, "crystelfBots")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names)
}
