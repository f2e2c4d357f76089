package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"crystelf-core/internal/core/dispose"
	"crystelf-core/internal/core/idgen"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// GatewayConfig 接入网关配置
type GatewayConfig struct {
	Secret            string
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	Registry          *Registry
	Dispatcher        *Dispatcher
	ConnIDs           idgen.Generator
	Logger            corelog.Logger
	Metrics           metrics.Metrics
}

// Gateway 为每条传输连接创建会话并驱动其生命周期
type Gateway struct {
	dispose.Dispose

	secret            string
	heartbeatInterval time.Duration
	writeTimeout      time.Duration
	registry          *Registry
	dispatcher        *Dispatcher
	connIDs           idgen.Generator
	logger            corelog.Logger
	metrics           metrics.Metrics

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewGateway 创建网关，parent 取消时关闭全部会话
func NewGateway(parent context.Context, cfg *GatewayConfig) (*Gateway, error) {
	if cfg.Secret == "" {
		return nil, errors.New("hub: gateway secret is required")
	}
	if cfg.Registry == nil || cfg.Dispatcher == nil {
		return nil, errors.New("hub: gateway needs registry and dispatcher")
	}
	g := &Gateway{
		secret:            cfg.Secret,
		heartbeatInterval: cfg.HeartbeatInterval,
		writeTimeout:      cfg.WriteTimeout,
		registry:          cfg.Registry,
		dispatcher:        cfg.Dispatcher,
		connIDs:           cfg.ConnIDs,
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
		sessions:          make(map[*Session]struct{}),
	}
	if g.heartbeatInterval <= 0 {
		g.heartbeatInterval = DefaultHeartbeatInterval
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = DefaultWriteTimeout
	}
	if g.connIDs == nil {
		g.connIDs = idgen.NewUUIDGenerator(idgen.PrefixConnection)
	}
	if g.logger == nil {
		g.logger = corelog.Default()
	}
	if g.metrics == nil {
		g.metrics = metrics.Nop{}
	}
	g.SetCtx(parent, g.onClose)
	return g, nil
}

// Serve 运行一条连接的会话直到其关闭
func (g *Gateway) Serve(t Transport) {
	conn := newConn(g.connIDs.Next(), t, g.writeTimeout)
	s := &Session{
		gw:   g,
		conn: conn,
		logger: g.logger.WithFields(map[string]interface{}{
			"conn":   conn.ID(),
			"remote": conn.RemoteAddr(),
		}),
	}
	s.setState(StateConnecting)

	s.SetCtx(g.Ctx(), s.teardown)
	if !g.track(s) {
		_ = s.Close()
		return
	}
	s.logger.Debug("hub: connection opened")

	s.run()
	_ = s.Close()
}

func (g *Gateway) track(s *Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions == nil {
		return false
	}
	g.sessions[s] = struct{}{}
	return true
}

func (g *Gateway) untrack(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s)
	g.mu.Unlock()
}

// Sessions 活动会话数，含未认证会话
func (g *Gateway) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Registry 网关使用的注册表
func (g *Gateway) Registry() *Registry {
	return g.registry
}

func (g *Gateway) onClose() error {
	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.sessions = nil
	g.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	g.logger.Infof("hub: gateway closed, %d sessions terminated", len(sessions))
	return nil
}
