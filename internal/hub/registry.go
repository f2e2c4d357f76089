package hub

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	coreerrors "crystelf-core/internal/core/errors"
	"crystelf-core/internal/core/idgen"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// DefaultRequestTimeout SendAndWait 默认超时
const DefaultRequestTimeout = 5 * time.Second

// RegistryConfig 注册表配置
type RegistryConfig struct {
	RequestTimeout time.Duration
	IDs            idgen.Generator
	Logger         corelog.Logger
	Metrics        metrics.Metrics
}

// Registry clientID 到连接的映射，持有本实例的请求关联表
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	correlator     *Correlator
	requestTimeout time.Duration
	logger         corelog.Logger
	metrics        metrics.Metrics
}

// NewRegistry 创建注册表
func NewRegistry(cfg *RegistryConfig) *Registry {
	if cfg == nil {
		cfg = &RegistryConfig{}
	}
	r := &Registry{
		conns:          make(map[string]*Conn),
		correlator:     NewCorrelator(cfg.IDs),
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
	if r.requestTimeout <= 0 {
		r.requestTimeout = DefaultRequestTimeout
	}
	if r.logger == nil {
		r.logger = corelog.Default()
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop{}
	}
	return r
}

// Add 登记连接，同一 clientID 后登记者覆盖先登记者
func (r *Registry) Add(clientID string, c *Conn) {
	r.mu.Lock()
	prev, replaced := r.conns[clientID]
	r.conns[clientID] = c
	n := len(r.conns)
	r.mu.Unlock()

	if replaced && prev != c {
		r.logger.Warnf("hub: client %s re-registered, connection %s replaced by %s", clientID, prev.ID(), c.ID())
	}
	r.metrics.SetGauge(metrics.ConnectionsActive, float64(n), nil)
}

// Remove 移除 clientID，不存在时无操作
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.conns, clientID)
	n := len(r.conns)
	r.mu.Unlock()
	r.metrics.SetGauge(metrics.ConnectionsActive, float64(n), nil)
}

// RemoveConn 仅当 clientID 仍指向 c 时移除
func (r *Registry) RemoveConn(clientID string, c *Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[clientID]
	if !ok || cur != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, clientID)
	n := len(r.conns)
	r.mu.Unlock()
	r.metrics.SetGauge(metrics.ConnectionsActive, float64(n), nil)
	return true
}

// Get 查找连接
func (r *Registry) Get(clientID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[clientID]
	return c, ok
}

// Clients 已登记的 clientID，按字典序
func (r *Registry) Clients() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count 已登记连接数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send 向客户端发送消息，未知、已关闭或写失败时返回 false
func (r *Registry) Send(clientID string, msg *Message) bool {
	c, ok := r.Get(clientID)
	if !ok {
		r.logger.Debugf("hub: send %s to %s skipped: client not registered", msg.Type, clientID)
		return false
	}
	if err := c.Send(msg); err != nil {
		r.logger.Warnf("hub: send %s to %s failed: %v", msg.Type, clientID, err)
		return false
	}
	return true
}

// Broadcast 并发发送给所有打开的连接，单个失败不影响其他连接，返回成功数
func (r *Registry) Broadcast(ctx context.Context, msg *Message) int {
	r.mu.RLock()
	targets := make(map[string]*Conn, len(r.conns))
	for id, c := range r.conns {
		targets[id] = c
	}
	r.mu.RUnlock()

	var delivered atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	for id, c := range targets {
		if !c.IsOpen() {
			continue
		}
		g.Go(func() error {
			if err := c.Send(msg); err != nil {
				r.logger.Warnf("hub: broadcast %s to %s failed: %v", msg.Type, id, err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// SendAndWait 发送带 requestId 的请求并等待同 ID 的回复
//
// timeout <= 0 时使用默认超时。msg 不会被修改。
func (r *Registry) SendAndWait(ctx context.Context, clientID string, msg *Message, timeout time.Duration) (*Message, error) {
	c, ok := r.Get(clientID)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeClientNotFound, "client %s not found", clientID)
	}
	if !c.IsOpen() {
		return nil, coreerrors.Newf(coreerrors.CodeClientOffline, "client %s connection closed", clientID)
	}
	if timeout <= 0 {
		timeout = r.requestTimeout
	}

	p, err := r.correlator.begin(timeout)
	if err != nil {
		return nil, err
	}

	out := msg.clone()
	out.RequestID = p.id
	if err := c.Send(out); err != nil {
		r.correlator.Reject(p.id, err)
	}

	reply, err := r.correlator.wait(ctx, p)
	r.metrics.Inc(metrics.RequestsTotal, map[string]string{"type": msg.Type, "outcome": outcomeLabel(err)})
	if err != nil {
		r.logger.Debugf("hub: request %s (%s) to %s ended: %v", p.id, msg.Type, clientID, err)
		return nil, err
	}
	return reply, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case coreerrors.IsCode(err, coreerrors.CodeTimeout):
		return "timeout"
	case coreerrors.IsCode(err, coreerrors.CodeCancelled):
		return "cancelled"
	default:
		return "error"
	}
}

// ResolvePendingRequest 用回复结束等待中的请求，同一 ID 只有第一次返回 true
func (r *Registry) ResolvePendingRequest(requestID string, reply *Message) bool {
	return r.correlator.Resolve(requestID, reply)
}

// PendingRequests 等待中的请求数
func (r *Registry) PendingRequests() int {
	return r.correlator.Pending()
}

// Close 拒绝所有等待中的请求并关闭全部连接
func (r *Registry) Close() error {
	r.correlator.Close()

	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	r.metrics.SetGauge(metrics.ConnectionsActive, 0, nil)
	return nil
}
