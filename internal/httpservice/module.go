// Package httpservice HTTP 服务框架
// 各模块自注册路由，由 HTTPService 统一启动和关闭
package httpservice

import (
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"

	"github.com/gorilla/mux"
)

// HTTPModule HTTP 服务模块接口
type HTTPModule interface {
	// Name 模块名称（用于日志）
	Name() string

	// RegisterRoutes 注册路由到 router
	RegisterRoutes(router *mux.Router)

	// SetDependencies 注入公共依赖
	SetDependencies(deps *ModuleDependencies)

	Start() error
	Stop() error
}

// ModuleDependencies 模块公共依赖
type ModuleDependencies struct {
	Logger  corelog.Logger
	Metrics metrics.Metrics
}
