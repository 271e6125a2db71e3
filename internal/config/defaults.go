package config

import "strings"

// 默认值常量
const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":9992"
	defaultMarketREST    = "https://fapi.binance.com"
	defaultMarketTimeout = 10
	defaultKlineLimit    = 200
	defaultAITimeout     = 120
	defaultRiskFloorPct  = 0.003
	defaultRiskRRLo      = 1.3
	defaultRiskRRHi      = 1.8
	defaultDualStagger   = 2.0
	defaultStrategyID    = "original"
	defaultCatalogPath   = "configs/strategies.yaml"
	defaultHistoryDBPath = "data/analysis_history.db"
)

var defaultStartOffsets = []float64{0, 5, 8}

func defaultVolFloors() map[string]float64 {
	return map[string]float64{"low": 0.003, "medium": 0.005, "high": 0.008}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Orchestrator.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
		fieldDefault{
			key:   "market.kline_limit",
			need:  func() bool { return m.KlineLimit <= 0 },
			apply: func() { m.KlineLimit = defaultKlineLimit },
		},
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "ai.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAITimeout },
		},
	)
	for i := range a.Models {
		m := &a.Models[i]
		if strings.TrimSpace(m.Provider) == "" {
			m.Provider = "openai"
		}
	}
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.floor_pct",
			need:  func() bool { return r.FloorPct <= 0 },
			apply: func() { r.FloorPct = defaultRiskFloorPct },
		},
		fieldDefault{
			key:   "risk.rr_lo",
			need:  func() bool { return r.RRLo <= 0 },
			apply: func() { r.RRLo = defaultRiskRRLo },
		},
		fieldDefault{
			key:   "risk.rr_hi",
			need:  func() bool { return r.RRHi <= 0 },
			apply: func() { r.RRHi = defaultRiskRRHi },
		},
	)
	if len(r.VolFloors) == 0 {
		r.VolFloors = defaultVolFloors()
	}
}

func (o *OrchestratorConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	if len(o.StartOffsetsSeconds) == 0 && !keys.isSet("orchestrator.start_offsets_seconds") {
		o.StartOffsetsSeconds = append([]float64(nil), defaultStartOffsets...)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "orchestrator.dual_stagger_seconds",
			need:  func() bool { return o.DualStaggerSeconds <= 0 },
			apply: func() { o.DualStaggerSeconds = defaultDualStagger },
		},
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.default", &s.Default, defaultStrategyID),
		stringFieldDefault("strategy.catalog_path", &s.CatalogPath, defaultCatalogPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.history_path", &s.HistoryPath, defaultHistoryDBPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
