package app

import (
	"context"
	"fmt"
	"time"

	"candlemind/internal/collab/indicator"
	"candlemind/internal/collab/pattern"
	"candlemind/internal/collab/trend"
	cmcfg "candlemind/internal/config"
	"candlemind/internal/consensus"
	"candlemind/internal/gateway/binance"
	"candlemind/internal/gateway/provider"
	"candlemind/internal/logger"
	"candlemind/internal/market"
	"candlemind/internal/orchestrator"
	"candlemind/internal/risk"
	"candlemind/internal/store"
	"candlemind/internal/strategy"
	httpapi "candlemind/internal/transport/http"
)

// AppBuilder 按配置装配全部依赖。各构建函数可在测试里替换。
type AppBuilder struct {
	cfg *cmcfg.Config

	marketSourceFn   func(cmcfg.MarketConfig) (market.Source, error)
	modelProvidersFn func(cmcfg.AIConfig) []provider.ModelProvider
	historyStoreFn   func(string) (*store.HistoryStore, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *cmcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:              cfg,
		marketSourceFn:   buildMarketSource,
		modelProvidersFn: buildModelProviders,
		historyStoreFn:   store.NewHistoryStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	source, err := b.marketSourceFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}

	providers := b.modelProvidersFn(cfg.AI)
	if len(providers) == 0 {
		return nil, fmt.Errorf("没有可用的模型，请检查 ai.models 配置")
	}
	logger.Infof("✓ 已加载 %d 个模型", len(providers))

	catalog, err := strategy.NewCatalog(cfg.Strategy.CatalogPath)
	if err != nil {
		// 描述符目录缺失时仍可用内置模板运行。
		logger.Warnf("策略描述符加载失败，使用内置模板: %v", err)
		catalog = nil
	}
	stats := strategy.NewUsageStats()
	registry := strategy.NewDefaultRegistry(cfg.Strategy.Default, stats, catalog)
	registry.Validate()

	policy := risk.Policy{
		FloorPct:  cfg.Risk.FloorPct,
		RRLo:      cfg.Risk.RRLo,
		RRHi:      cfg.Risk.RRHi,
		VolFloors: cfg.Risk.VolFloors,
	}
	engine := consensus.NewEngine(registry, providers, policy)
	if cfg.Orchestrator.DualStaggerSeconds > 0 {
		engine.DualStagger = secondsToDuration(cfg.Orchestrator.DualStaggerSeconds)
	}

	collaborators := []orchestrator.Collaborator{
		indicator.New(source, cfg.Market.KlineLimit),
		pattern.New(source, providers, cfg.AI.PatternModel, 0),
		trend.New(source, providers, cfg.AI.TrendModel, 0),
	}
	offsets := make([]time.Duration, 0, len(cfg.Orchestrator.StartOffsetsSeconds))
	for _, v := range cfg.Orchestrator.StartOffsetsSeconds {
		offsets = append(offsets, secondsToDuration(v))
	}
	coordinator := orchestrator.NewCoordinator(collaborators, offsets, engine)

	history, err := b.historyStoreFn(cfg.Store.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("初始化历史存储失败: %w", err)
	}

	service := NewAnalysisService(cfg, coordinator, registry, history)
	router := httpapi.NewRouter(service, registry, catalog, stats, history)
	server := httpapi.NewServer(cfg.App.HTTPAddr, router)

	return &App{
		cfg:     cfg,
		server:  server,
		service: service,
	}, nil
}

func buildMarketSource(cfg cmcfg.MarketConfig) (market.Source, error) {
	return binance.New(binance.Config{
		RESTBaseURL:  cfg.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.ProxyEnabled,
		ProxyURL:     cfg.ProxyURL,
	})
}

func buildModelProviders(cfg cmcfg.AIConfig) []provider.ModelProvider {
	models := make([]provider.ModelCfg, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		models = append(models, provider.ModelCfg{
			ID:             m.ID,
			Provider:       m.Provider,
			APIURL:         m.APIURL,
			APIKey:         m.APIKey,
			Model:          m.Model,
			Enabled:        m.Enabled,
			Headers:        m.Headers,
			SupportsVision: m.Vision,
			Temperature:    m.Temperature,
		})
	}
	return provider.BuildProvidersFromConfig(models, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func WithMarketSource(fn func(cmcfg.MarketConfig) (market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.marketSourceFn = fn
		}
	}
}

func WithModelProviders(fn func(cmcfg.AIConfig) []provider.ModelProvider) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.modelProvidersFn = fn
		}
	}
}

func WithHistoryStore(fn func(string) (*store.HistoryStore, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.historyStoreFn = fn
		}
	}
}
