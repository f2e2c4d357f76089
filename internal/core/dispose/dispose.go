// Package dispose 基于 context 的资源释放
//
// 资源绑定到父 context，父 context 取消或主动 Close 时
// 依次执行清理函数，且整个过程只执行一次。
package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Disposable 可释放资源
type Disposable interface {
	Dispose() error
}

// DisposeFunc 函数适配为 Disposable
type DisposeFunc func() error

func (f DisposeFunc) Dispose() error { return f() }

// Dispose 资源释放器，嵌入到需要统一清理的结构体中
type Dispose struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	handlers []func() error
	closed   bool
	once     sync.Once
	err      error
}

// SetCtx 绑定父 context，onClose 作为第一个清理函数
func (d *Dispose) SetCtx(parent context.Context, onClose func() error) {
	if parent == nil {
		parent = context.Background()
	}

	d.mu.Lock()
	if d.ctx != nil {
		d.mu.Unlock()
		Warnf("dispose: context already set")
		return
	}
	d.ctx, d.cancel = context.WithCancel(parent)
	if onClose != nil {
		d.handlers = append(d.handlers, onClose)
	}
	ctx := d.ctx
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = d.Close()
	}()
}

// Ctx 返回绑定的 context，未绑定时返回 Background
func (d *Dispose) Ctx() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// Done 资源关闭通知
func (d *Dispose) Done() <-chan struct{} {
	return d.Ctx().Done()
}

// AddCleanHandler 追加清理函数，已关闭时立即执行
func (d *Dispose) AddCleanHandler(fn func() error) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if err := fn(); err != nil {
			Errorf("dispose: late clean handler failed: %v", err)
		}
		return
	}
	d.handlers = append(d.handlers, fn)
	d.mu.Unlock()
}

// IsClosed 是否已关闭
func (d *Dispose) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close 取消 context 并执行全部清理函数，重复调用返回首次结果
func (d *Dispose) Close() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		cancel := d.cancel
		handlers := d.handlers
		d.handlers = nil
		d.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		var errs []error
		for i, fn := range handlers {
			if err := fn(); err != nil {
				Errorf("dispose: clean handler[%d] failed: %v", i, err)
				errs = append(errs, fmt.Errorf("clean handler[%d]: %w", i, err))
			}
		}
		d.err = errors.Join(errs...)
	})
	return d.err
}

// Dispose 实现 Disposable
func (d *Dispose) Dispose() error {
	return d.Close()
}
