package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	coreerrors "crystelf-core/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelator_ResolveOnce(t *testing.T) {
	c := NewCorrelator(nil)
	p, err := c.begin(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pending())

	reply := &Message{Type: "getGroupInfo", RequestID: p.id}
	assert.True(t, c.Resolve(p.id, reply))
	assert.False(t, c.Resolve(p.id, reply))
	assert.False(t, c.Resolve("", reply))
	assert.Equal(t, 0, c.Pending())

	got, err := c.wait(context.Background(), p)
	require.NoError(t, err)
	assert.Same(t, reply, got)
}

func TestCorrelator_Timeout(t *testing.T) {
	c := NewCorrelator(nil)
	p, err := c.begin(20 * time.Millisecond)
	require.NoError(t, err)

	_, err = c.wait(context.Background(), p)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeTimeout))
	assert.False(t, c.Resolve(p.id, &Message{}))
	assert.Equal(t, 0, c.Pending())
}

func TestCorrelator_Cancel(t *testing.T) {
	c := NewCorrelator(nil)
	p, err := c.begin(time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.wait(ctx, p)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeCancelled))
	assert.Equal(t, 0, c.Pending())
}

func TestCorrelator_CloseRejectsPending(t *testing.T) {
	c := NewCorrelator(nil)
	p1, _ := c.begin(time.Minute)
	p2, _ := c.begin(time.Minute)

	c.Close()

	for _, p := range []*pendingRequest{p1, p2} {
		_, err := c.wait(context.Background(), p)
		assert.ErrorIs(t, err, coreerrors.ErrServiceClosed)
	}
	_, err := c.begin(time.Second)
	assert.ErrorIs(t, err, coreerrors.ErrServiceClosed)
}

// 回复与超时竞争时调用方只观察到一个结果
func TestCorrelator_ReplyTimeoutRace(t *testing.T) {
	c := NewCorrelator(nil)
	var resolved atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		p, err := c.begin(time.Millisecond)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			if c.Resolve(p.id, &Message{Type: "reply"}) {
				resolved.Add(1)
			}
		}()
		msg, err := c.wait(context.Background(), p)
		if err == nil {
			assert.Equal(t, "reply", msg.Type)
		} else {
			assert.True(t, coreerrors.IsCode(err, coreerrors.CodeTimeout))
		}
	}
	wg.Wait()
	assert.Equal(t, 0, c.Pending())
}
