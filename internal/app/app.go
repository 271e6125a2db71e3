package app

import (
	"context"
	"fmt"

	cmcfg "candlemind/internal/config"
	"candlemind/internal/logger"
	httpapi "candlemind/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *cmcfg.Config
	server  *httpapi.Server
	service *AnalysisService
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *cmcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	logger.Infof("✓ 应用启动（环境=%s，地址=%s）", a.cfg.App.Env, a.cfg.App.HTTPAddr)
	return a.server.Run(ctx)
}

// Service 暴露底层分析服务（供测试与回放工具使用）。
func (a *App) Service() *AnalysisService {
	if a == nil {
		return nil
	}
	return a.service
}
