// Package server 装配并运行 crystelf-core 服务
package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crystelf-core/internal/bot"
	"crystelf-core/internal/config"
	"crystelf-core/internal/core/dispose"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/core/safe"
	"crystelf-core/internal/core/store"
	"crystelf-core/internal/core/store/state"
	"crystelf-core/internal/health"
	"crystelf-core/internal/httpservice"
	"crystelf-core/internal/httpservice/modules/botapi"
	wsmodule "crystelf-core/internal/httpservice/modules/websocket"
	"crystelf-core/internal/hub"
	"crystelf-core/internal/hub/handlers"
)

const shutdownTimeout = 15 * time.Second

// Server 进程内全部组件
type Server struct {
	config    *config.Root
	logger    corelog.Logger
	metrics   *metrics.Memory
	resources *dispose.ResourceManager
	ctx       context.Context
	cancel    context.CancelFunc

	cache     store.CacheStore
	durable   store.DurableStore
	registry  *hub.Registry
	gateway   *hub.Gateway
	scheduler *bot.TimerScheduler
	bots      *bot.Service
	health    *health.Checker
	http      *httpservice.HTTPService
}

// New 按配置创建全部组件，任一存储不可用时返回错误
func New(parent context.Context, cfg *config.Root, logger corelog.Logger) (*Server, error) {
	if logger == nil {
		logger = corelog.Default()
	}
	dispose.SetLogger(logger)

	ctx, cancel := context.WithCancel(parent)
	s := &Server{
		config:    cfg,
		logger:    logger,
		metrics:   metrics.NewMemory(),
		resources: dispose.NewResourceManager(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := s.build(); err != nil {
		cancel()
		if derr := s.resources.DisposeAll(context.Background()); derr != nil {
			logger.Warnf("server: cleanup after failed start: %v", derr)
		}
		return nil, err
	}
	return s, nil
}

// build 释放顺序与注册顺序相反：先停广播定时器，再关网关和注册表，然后 HTTP，最后存储
func (s *Server) build() error {
	cfg := s.config

	cache, err := createCache(s.ctx, &cfg.Storage.Cache, s.logger)
	if err != nil {
		return err
	}
	s.cache = cache
	s.register("cache", cache.Close)

	durable, err := createDurable(s.ctx, &cfg.Storage.Durable, s.logger)
	if err != nil {
		return err
	}
	s.durable = durable
	s.register("durable", durable.Close)

	st := state.New(&state.Config{
		Cache:    cache,
		Durable:  durable,
		CacheTTL: cfg.Storage.Cache.TTL,
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
	repo := bot.NewRepository(st, s.logger)

	s.health = health.NewChecker(2 * time.Second)
	s.health.Register("cache", cache)
	s.health.Register("durable", durable)

	s.http = httpservice.NewHTTPService(s.ctx, &httpservice.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		MaxConnections: cfg.Server.MaxConnections,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RateLimit: httpservice.RateLimitConfig{
			Enabled: cfg.API.RateLimit.Enabled,
			RPS:     cfg.API.RateLimit.RPS,
			Burst:   cfg.API.RateLimit.Burst,
		},
		Health:  s.health,
		Stats:   s.stats,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	s.register("http", s.http.Close)

	s.registry = hub.NewRegistry(&hub.RegistryConfig{
		RequestTimeout: cfg.Hub.RequestTimeout,
		Logger:         s.logger,
		Metrics:        s.metrics,
	})
	s.register("registry", s.registry.Close)

	dispatcher, err := hub.NewDispatcher(&hub.DispatcherConfig{
		Registry: s.registry,
		Logger:   s.logger,
		Metrics:  s.metrics,
	}, handlers.Default(&handlers.Config{Bots: repo, Logger: s.logger})...)
	if err != nil {
		return err
	}
	s.gateway, err = hub.NewGateway(s.ctx, &hub.GatewayConfig{
		Secret:            cfg.Hub.Secret.Value(),
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		WriteTimeout:      cfg.Hub.WriteTimeout,
		Registry:          s.registry,
		Dispatcher:        dispatcher,
		Logger:            s.logger,
		Metrics:           s.metrics,
	})
	if err != nil {
		return err
	}
	s.register("gateway", s.gateway.Close)

	s.scheduler = bot.NewTimerScheduler()
	s.register("broadcast", func() error {
		if n := s.scheduler.Stop(); n > 0 {
			s.logger.Warnf("server: %d scheduled broadcasts dropped", n)
		}
		return nil
	})
	s.bots = bot.NewService(&bot.ServiceConfig{
		Repository:     repo,
		Messenger:      s.registry,
		Scheduler:      s.scheduler,
		MinDelay:       cfg.Broadcast.MinDelay,
		MaxDelay:       cfg.Broadcast.MaxDelay,
		RequestTimeout: cfg.Hub.RequestTimeout,
		Logger:         s.logger,
		Metrics:        s.metrics,
	})

	s.http.RegisterModule(wsmodule.NewModule(&wsmodule.Config{
		Path:           cfg.Hub.Path,
		MaxMessageSize: cfg.Hub.MaxMessageSize,
	}, s.gateway))
	s.http.RegisterModule(botapi.NewModule(cfg.API.Token.Value(), s.bots))

	s.register("health", func() error {
		s.health.SetDraining()
		return nil
	})
	return nil
}

func (s *Server) register(name string, fn func() error) {
	if err := s.resources.Register(name, dispose.DisposeFunc(fn)); err != nil {
		s.logger.Errorf("server: %v", err)
	}
}

func (s *Server) stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":             s.registry.Clients(),
		"sessions":            s.gateway.Sessions(),
		"pending_requests":    s.registry.PendingRequests(),
		"scheduled_broadcast": s.scheduler.Pending(),
		"goroutines":          safe.GetStats(),
	}
}

// Start 开始监听
func (s *Server) Start() error {
	if s.config.API.Token.IsEmpty() {
		s.logger.Warn("server: api.token is empty, bot HTTP API will reject every request")
	}
	return s.http.Start()
}

// Addr HTTP 实际监听地址
func (s *Server) Addr() string {
	return s.http.Addr()
}

// Bots 机器人服务
func (s *Server) Bots() *bot.Service {
	return s.bots
}

// Run 启动并等待退出信号
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		_ = s.Shutdown(context.Background())
		return err
	}
	return s.Wait(ctx)
}

// Wait 阻塞到收到 SIGINT/SIGTERM 或 ctx 取消，然后优雅关闭
func (s *Server) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Infof("server: received %s, shutting down", sig)
	case <-ctx.Done():
		s.logger.Info("server: context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown 按注册的相反顺序释放资源
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.resources.DisposeAll(ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Errorf("server: shutdown finished with errors: %v", err)
		return err
	}
	s.logger.Info("server: stopped")
	return nil
}
