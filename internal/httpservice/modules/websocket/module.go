// Package websocket 机器人客户端的 WebSocket 接入模块
package websocket

import (
	"net/http"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/httpservice"
	"crystelf-core/internal/hub"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const bufferSize = 4096

// Config 模块配置
type Config struct {
	Path string
	// MaxMessageSize 单帧上限，0 表示不限制
	MaxMessageSize int64
}

// Module 将升级后的连接交给 hub 网关
type Module struct {
	config   *Config
	gateway  *hub.Gateway
	upgrader websocket.Upgrader
	logger   corelog.Logger
}

// NewModule 创建模块
func NewModule(cfg *Config, gateway *hub.Gateway) *Module {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &Module{
		config:  cfg,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: corelog.Default(),
	}
}

func (m *Module) Name() string { return "WebSocket" }

func (m *Module) SetDependencies(deps *httpservice.ModuleDependencies) {
	if deps != nil && deps.Logger != nil {
		m.logger = deps.Logger
	}
}

func (m *Module) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(m.config.Path, m.handleUpgrade).Methods(http.MethodGet)
	m.logger.Infof("websocket: accepting bot clients on %s", m.config.Path)
}

// handleUpgrade 升级连接，阻塞直到会话结束
func (m *Module) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warnf("websocket: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	if m.config.MaxMessageSize > 0 {
		conn.SetReadLimit(m.config.MaxMessageSize)
	}
	m.gateway.Serve(conn)
}

func (m *Module) Start() error { return nil }

// Stop 关闭网关上的全部会话
func (m *Module) Stop() error {
	return m.gateway.Close()
}
