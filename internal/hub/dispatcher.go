package hub

import (
	"context"
	"fmt"
	"runtime/debug"

	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
)

// Handler 处理一种消息类型
type Handler interface {
	Type() string
	Handle(ctx context.Context, c *Conn, msg *Message) error
}

// HandlerFunc 函数适配为 Handler
type HandlerFunc struct {
	MsgType string
	Fn      func(ctx context.Context, c *Conn, msg *Message) error
}

func (h HandlerFunc) Type() string { return h.MsgType }

func (h HandlerFunc) Handle(ctx context.Context, c *Conn, msg *Message) error {
	return h.Fn(ctx, c, msg)
}

// DispatcherConfig 分发器配置
type DispatcherConfig struct {
	Registry *Registry
	Logger   corelog.Logger
	Metrics  metrics.Metrics
}

// Dispatcher 按 type 将已认证连接的消息交给对应 Handler
//
// 处理表在构造时确定，之后只读。
type Dispatcher struct {
	registry *Registry
	handlers map[string]Handler
	logger   corelog.Logger
	metrics  metrics.Metrics
}

// NewDispatcher 创建分发器，重复注册同一类型返回错误
func NewDispatcher(cfg *DispatcherConfig, handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: cfg.Registry,
		handlers: make(map[string]Handler, len(handlers)),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if d.logger == nil {
		d.logger = corelog.Default()
	}
	if d.metrics == nil {
		d.metrics = metrics.Nop{}
	}
	for _, h := range handlers {
		t := h.Type()
		if _, dup := d.handlers[t]; dup {
			return nil, coreerrors.Newf(coreerrors.CodeConfigError, "duplicate handler for message type %q", t)
		}
		d.handlers[t] = h
	}
	d.logger.Infof("hub: %d message handlers registered", len(d.handlers))
	return d, nil
}

// Types 已注册的消息类型
func (d *Dispatcher) Types() []string {
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch 处理一条消息
//
// 带 requestId 且命中等待中请求的消息作为回复消费，不再分发。
// Handler 返回错误或 panic 时回复通用错误，连接保持打开。
func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, msg *Message) {
	if msg.RequestID != "" && d.registry != nil && d.registry.ResolvePendingRequest(msg.RequestID, msg) {
		d.metrics.Inc(metrics.MessagesTotal, map[string]string{"type": "reply"})
		return
	}

	h, ok := d.handlers[msg.Type]
	if !ok {
		h, ok = d.handlers[TypeUnknown]
	}
	d.metrics.Inc(metrics.MessagesTotal, map[string]string{"type": d.label(msg.Type)})

	var err error
	if ok {
		err = d.invoke(ctx, h, c, msg)
	} else {
		d.logger.Warnf("hub: unknown message type %q from %s", msg.Type, c.ClientID())
		err = c.Send(ErrorMessage(UnknownTypeText(msg.Type)))
	}
	if err == nil {
		return
	}

	d.logger.WithFields(map[string]interface{}{
		"client": c.ClientID(),
		"type":   msg.Type,
	}).WithError(err).Error("hub: message handler failed")
	if sendErr := c.Send(ErrorMessage(TextHandlerError)); sendErr != nil {
		d.logger.Debugf("hub: error reply to %s not delivered: %v", c.ClientID(), sendErr)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, c *Conn, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("hub: handler %s panicked: %v\n%s", h.Type(), r, debug.Stack())
			err = coreerrors.Newf(coreerrors.CodeHandlerFailure, "handler %s panicked: %v", h.Type(), r)
		}
	}()
	if herr := h.Handle(ctx, c, msg); herr != nil {
		return fmt.Errorf("%s: %w", h.Type(), herr)
	}
	return nil
}

// label 限制指标标签基数，未注册类型统一记为 unknown
func (d *Dispatcher) label(msgType string) string {
	if _, ok := d.handlers[msgType]; ok {
		return msgType
	}
	return TypeUnknown
}
