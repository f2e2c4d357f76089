// Package health 组件健康检查
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status 组件状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDraining  Status = "draining" // 关闭中，不再接受新连接
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth 组件健康信息
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	LastCheck time.Time     `json:"last_check"`
}

// Pinger 可探活的依赖，缓存和持久层都实现
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数适配为 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Report 一次整体检查的结果
type Report struct {
	Status     Status                      `json:"status"`
	Uptime     int64                       `json:"uptime_seconds"`
	Components map[string]*ComponentHealth `json:"components"`
}

// Checker 组合检查器，并发探测已注册组件
type Checker struct {
	mu       sync.RWMutex
	pingers  map[string]Pinger
	timeout  time.Duration
	started  time.Time
	draining bool
}

// NewChecker 创建检查器，timeout 为单个组件的探测超时
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		pingers: make(map[string]Pinger),
		timeout: timeout,
		started: time.Now(),
	}
}

// Register 注册组件，同名覆盖
func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	c.pingers[name] = p
	c.mu.Unlock()
}

// Names 已注册组件名
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.pingers))
	for n := range c.pingers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetDraining 标记进入关闭流程
func (c *Checker) SetDraining() {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()
}

// Check 探测全部组件
//
// 任一组件失败则整体 unhealthy；关闭中时整体为 draining。
func (c *Checker) Check(ctx context.Context) *Report {
	c.mu.RLock()
	pingers := make(map[string]Pinger, len(c.pingers))
	for n, p := range c.pingers {
		pingers[n] = p
	}
	draining := c.draining
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*ComponentHealth, len(pingers))
	)
	for name, p := range pingers {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			h := c.probe(ctx, name, p)
			mu.Lock()
			results[name] = h
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, h := range results {
		if h.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		}
	}
	if draining {
		overall = StatusDraining
	}
	return &Report{
		Status:     overall,
		Uptime:     int64(time.Since(c.started).Seconds()),
		Components: results,
	}
}

func (c *Checker) probe(ctx context.Context, name string, p Pinger) *ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	h := &ComponentHealth{
		Name:      name,
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		LastCheck: time.Now(),
	}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Message = err.Error()
	}
	return h
}
