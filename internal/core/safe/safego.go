// Package safe 带 panic 恢复的 goroutine 启动与统计
package safe

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	corelog "crystelf-core/internal/core/log"
)

var (
	active atomic.Int64
	total  atomic.Int64
	panics atomic.Int64
)

// Stats goroutine 统计
type Stats struct {
	Active     int64 `json:"active"`
	Total      int64 `json:"total"`
	PanicCount int64 `json:"panics"`
}

// GetStats 当前统计
func GetStats() Stats {
	return Stats{Active: active.Load(), Total: total.Load(), PanicCount: panics.Load()}
}

// Run 同步执行 fn，panic 被恢复并记录，返回 fn 是否正常结束
func Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			panics.Add(1)
			corelog.Errorf("safe[%s]: panic recovered: %v\n%s", name, r, debug.Stack())
			ok = false
		}
	}()
	fn()
	return true
}

// Go 在新 goroutine 中执行 fn
func Go(name string, fn func()) {
	total.Add(1)
	active.Add(1)
	go func() {
		defer active.Add(-1)
		Run(name, fn)
	}()
}

// GoWithContext 同 Go，fn 应在 ctx 取消时返回
func GoWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	Go(name, func() { fn(ctx) })
}
