package httpservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"crystelf-core/internal/core/dispose"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/health"

	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Config HTTP 服务配置
type Config struct {
	ListenAddr     string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      RateLimitConfig

	Health *health.Checker
	// Stats 返回 /api/system/stats 的附加内容
	Stats   func() map[string]interface{}
	Logger  corelog.Logger
	Metrics metrics.Metrics
}

// HTTPService 统一 HTTP 服务
type HTTPService struct {
	dispose.Dispose

	config  *Config
	router  *mux.Router
	server  *http.Server
	logger  corelog.Logger
	metrics metrics.Metrics
	deps    *ModuleDependencies
	started time.Time

	buildOnce sync.Once
	mu        sync.Mutex
	modules   []HTTPModule
	listener  net.Listener
}

// NewHTTPService 创建 HTTP 服务，ctx 取消时自动关闭
func NewHTTPService(ctx context.Context, cfg *Config) *HTTPService {
	s := &HTTPService{
		config:  cfg,
		router:  mux.NewRouter(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		started: time.Now(),
	}
	if s.logger == nil {
		s.logger = corelog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	s.deps = &ModuleDependencies{Logger: s.logger, Metrics: s.metrics}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	s.SetCtx(ctx, s.onClose)
	return s
}

// RegisterModule 注册模块
func (s *HTTPService) RegisterModule(module HTTPModule) {
	if module == nil {
		return
	}
	module.SetDependencies(s.deps)
	s.mu.Lock()
	s.modules = append(s.modules, module)
	s.mu.Unlock()
	s.logger.Infof("http: registered module %s", module.Name())
}

// Router 路由器，测试用
func (s *HTTPService) Router() *mux.Router {
	return s.router
}

// Handler 装配中间件和全部路由后的 handler，不监听端口
//
// 首次调用后注册的模块不再生效。
func (s *HTTPService) Handler() http.Handler {
	s.buildOnce.Do(s.build)
	return s.router
}

func (s *HTTPService) build() {
	s.router.Use(loggingMiddleware(s.logger))
	if rl := s.config.RateLimit; rl.Enabled {
		s.router.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(rl.RPS), rl.Burst), isUpgrade))
	}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/api/system/stats", s.handleStats).Methods(http.MethodGet)

	s.mu.Lock()
	modules := append([]HTTPModule(nil), s.modules...)
	s.mu.Unlock()
	for _, m := range modules {
		m.RegisterRoutes(s.router)
	}
}

// Start 启动模块并开始监听
func (s *HTTPService) Start() error {
	handler := s.Handler()
	s.server.Handler = handler

	s.mu.Lock()
	modules := append([]HTTPModule(nil), s.modules...)
	s.mu.Unlock()
	for _, m := range modules {
		if err := m.Start(); err != nil {
			s.logger.Errorf("http: start module %s failed: %v", m.Name(), err)
			return err
		}
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("http: serve failed: %v", err)
		}
	}()
	s.logger.Infof("http: listening on %s", ln.Addr())
	return nil
}

// Addr 实际监听地址，未启动时为空
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *HTTPService) onClose() error {
	s.mu.Lock()
	modules := append([]HTTPModule(nil), s.modules...)
	s.mu.Unlock()
	for i := len(modules) - 1; i >= 0; i-- {
		if err := modules[i].Stop(); err != nil {
			s.logger.Warnf("http: stop module %s failed: %v", modules[i].Name(), err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http: shutting down")
	return s.server.Shutdown(ctx)
}

func (s *HTTPService) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.config.Health == nil {
		RespondSuccess(w, map[string]string{"status": string(health.StatusHealthy)})
		return
	}
	report := s.config.Health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	RespondJSON(w, status, report)
}

func (s *HTTPService) handleStats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"metrics":        s.metrics.Snapshot(),
	}
	if s.config.Stats != nil {
		for k, v := range s.config.Stats() {
			out[k] = v
		}
	}
	RespondSuccess(w, out)
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
