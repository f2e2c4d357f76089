package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store/jsonfile"
	"crystelf-core/internal/core/store/memory"
	"crystelf-core/internal/core/store/state"
	"crystelf-core/internal/hub"

	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	durable, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)
	st := state.New(&state.Config{Cache: memory.New(0, 0), Durable: durable, Logger: corelog.NewNopLogger()})
	return NewRepository(st, corelog.NewNopLogger())
}

type sent struct {
	clientID string
	msg      *hub.Message
}

// fakeMessenger 记录投递，offline 中的客户端投递失败
type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	offline map[string]bool
	reply   func(clientID string, msg *hub.Message) (*hub.Message, error)
}

func (f *fakeMessenger) Send(clientID string, msg *hub.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[clientID] {
		return false
	}
	f.sent = append(f.sent, sent{clientID: clientID, msg: msg})
	return true
}

func (f *fakeMessenger) SendAndWait(_ context.Context, clientID string, msg *hub.Message, _ time.Duration) (*hub.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sent{clientID: clientID, msg: msg})
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return &hub.Message{Type: msg.Type}, nil
	}
	return reply(clientID, msg)
}

func (f *fakeMessenger) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

// recordingScheduler 只记录不执行，由测试手动触发
type recordingScheduler struct {
	mu    sync.Mutex
	tasks []scheduled
}

func (r *recordingScheduler) Schedule(delay time.Duration, fn func()) {
	r.mu.Lock()
	r.tasks = append(r.tasks, scheduled{delay: delay, fn: fn})
	r.mu.Unlock()
}

func (r *recordingScheduler) fireAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, t := range tasks {
		t.fn()
	}
}
