package hub

import (
	"context"
	"sync"
	"time"

	coreerrors "crystelf-core/internal/core/errors"
	"crystelf-core/internal/core/idgen"
)

type outcome struct {
	msg *Message
	err error
}

type pendingRequest struct {
	id     string
	result chan outcome
	timer  *time.Timer
}

// Correlator 请求关联表
//
// 每个请求恰好以一种结果结束：收到回复、超时、发送失败、调用方取消或关闭。
// 条目在锁内被删除的一方负责投递结果。
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	ids     idgen.Generator
	closed  bool
}

// NewCorrelator 创建关联表
func NewCorrelator(ids idgen.Generator) *Correlator {
	if ids == nil {
		ids = idgen.NewUUIDGenerator("")
	}
	return &Correlator{
		pending: make(map[string]*pendingRequest),
		ids:     ids,
	}
}

// begin 登记新请求并启动超时计时
func (c *Correlator) begin(timeout time.Duration) (*pendingRequest, error) {
	p := &pendingRequest{
		id:     c.ids.Next(),
		result: make(chan outcome, 1),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, coreerrors.ErrServiceClosed
	}
	c.pending[p.id] = p
	p.timer = time.AfterFunc(timeout, func() {
		c.complete(p.id, nil, coreerrors.Newf(coreerrors.CodeTimeout, "request %s timed out after %v", p.id, timeout))
	})
	return p, nil
}

// complete 结束请求，已结束或不存在时返回 false
func (c *Correlator) complete(id string, msg *Message, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.result <- outcome{msg: msg, err: err}
	return true
}

// wait 等待结果，ctx 取消时以取消错误结束请求
func (c *Correlator) wait(ctx context.Context, p *pendingRequest) (*Message, error) {
	select {
	case out := <-p.result:
		return out.msg, out.err
	case <-ctx.Done():
		c.complete(p.id, nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "request cancelled"))
		out := <-p.result
		return out.msg, out.err
	}
}

// Resolve 以回复结束请求
func (c *Correlator) Resolve(id string, msg *Message) bool {
	if id == "" {
		return false
	}
	return c.complete(id, msg, nil)
}

// Reject 以错误结束请求
func (c *Correlator) Reject(id string, err error) bool {
	return c.complete(id, nil, err)
}

// Pending 未结束的请求数
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close 拒绝所有未结束请求，之后不再接受新请求
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.complete(id, nil, coreerrors.ErrServiceClosed)
	}
}
