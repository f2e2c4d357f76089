package redis

import (
	"context"
	"testing"
	"time"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Connect(context.Background(), Config{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
		Logger:    corelog.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_GetSetDelete(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`), 0))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))
		assert.True(t, mr.Exists("test:k"))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "k"))
		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStore_TTL(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), 10*time.Second))
	ttl, err := s.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(11 * time.Second)
	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "forever", []byte("1"), 0))
	ttl, err = s.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)

	assert.Error(t, s.Set(ctx, "bad", []byte("1"), -time.Second))
}

func TestStore_Members(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	members, err := s.Members(ctx, "index/ns")
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, s.AddMember(ctx, "index/ns", "alice"))
	require.NoError(t, s.AddMember(ctx, "index/ns", "bob"))
	require.NoError(t, s.AddMember(ctx, "index/ns", "alice"))
	members, err = s.Members(ctx, "index/ns")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)
	assert.True(t, mr.Exists("test:index/ns"))

	require.NoError(t, s.RemoveMember(ctx, "index/ns", "alice"))
	members, err = s.Members(ctx, "index/ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)
}

func TestConnect_RetriesThenFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err := Connect(context.Background(), Config{
		Addr:            addr,
		DialTimeout:     100 * time.Millisecond,
		ConnectAttempts: 3,
		RetryDelay:      10 * time.Millisecond,
		Logger:          corelog.NewNopLogger(),
	})
	require.Error(t, err)
	// 两次退避：10ms + 20ms
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConnect_Cancelled(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, Config{
		Addr:            addr,
		ConnectAttempts: 5,
		RetryDelay:      time.Hour,
		Logger:          corelog.NewNopLogger(),
	})
	assert.Error(t, err)
}
