package bot

import (
	"sync"
	"time"

	"crystelf-core/internal/core/safe"
)

// Scheduler 延迟执行任务
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler 基于 time.AfterFunc，记录未触发的计时器以便停止
type TimerScheduler struct {
	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]*time.Timer
	stopped bool
}

// NewTimerScheduler 创建调度器
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[uint64]*time.Timer)}
}

// Schedule 停止后调用无效，任务 panic 不影响其他任务
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if live {
			safe.Run("broadcast", fn)
		}
	})
}

// Pending 未触发的任务数
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop 取消全部未触发任务，返回取消数量
func (s *TimerScheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	n := 0
	for id, t := range s.timers {
		if t.Stop() {
			n++
		}
		delete(s.timers, id)
	}
	return n
}
