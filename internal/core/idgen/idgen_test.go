package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_PlainIsParseable(t *testing.T) {
	id := NewUUIDGenerator("").Next()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDGenerator_Prefix(t *testing.T) {
	id := NewUUIDGenerator(PrefixConnection).Next()
	assert.True(t, strings.HasPrefix(id, PrefixConnection))
	assert.Len(t, id, len(PrefixConnection)+36)
}

func TestUUIDGenerator_ConcurrentUnique(t *testing.T) {
	gen := NewUUIDGenerator("")
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Next()
				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup, "duplicate id %s", id)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 5000)
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func() string { return "fixed" })
	assert.Equal(t, "fixed", g.Next())
}
