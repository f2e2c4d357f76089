// Package random 均匀随机选择与区间抽样
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source 随机源，Int64N 返回 [0, n)
type Source interface {
	Int64N(n int64) int64
}

// Locked 并发安全的随机源
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded 以固定种子创建，用于可重放的测试
func NewSeeded(seed1, seed2 uint64) *Locked {
	return &Locked{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (l *Locked) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

type global struct{}

func (global) Int64N(n int64) int64 { return rand.Int64N(n) }

// Default 进程级随机源
func Default() Source { return global{} }

// Pick 从 items 中均匀选取一个，空切片返回 false
func Pick[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.Int64N(int64(len(items)))], true
}

// Between 在 [min, max] 闭区间内均匀抽取时长，min > max 时交换
func Between(src Source, min, max time.Duration) time.Duration {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	return min + time.Duration(src.Int64N(int64(max-min)+1))
}
