package safe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RecoversPanic(t *testing.T) {
	before := GetStats().PanicCount
	assert.False(t, Run("boom", func() { panic("x") }))
	assert.True(t, Run("fine", func() {}))
	assert.Equal(t, before+1, GetStats().PanicCount)
}

func TestGo_TracksActive(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	before := GetStats()

	GoWithContext(context.Background(), "worker", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	assert.GreaterOrEqual(t, GetStats().Active, before.Active+1)
	assert.Equal(t, before.Total+1, GetStats().Total)

	close(release)
	require.Eventually(t, func() bool { return GetStats().Active == before.Active }, time.Second, 5*time.Millisecond)
}
