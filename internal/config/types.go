package config

import "strings"

// Config 是 candlemind 的主配置载体。
type Config struct {
	App          AppConfig          `toml:"app"`
	Market       MarketConfig       `toml:"market"`
	AI           AIConfig           `toml:"ai"`
	Risk         RiskConfig         `toml:"risk"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Strategy     StrategyConfig     `toml:"strategy"`
	Store        StoreConfig        `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

type MarketConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ProxyEnabled   bool   `toml:"proxy_enabled"`
	ProxyURL       string `toml:"proxy_url"`
	KlineLimit     int    `toml:"kline_limit"`
}

// ModelConfig 描述一个可用的聊天模型端点。
type ModelConfig struct {
	ID          string            `toml:"id"`
	Provider    string            `toml:"provider"`
	APIURL      string            `toml:"api_url"`
	APIKey      string            `toml:"api_key"`
	Model       string            `toml:"model"`
	Temperature float64           `toml:"temperature"`
	Enabled     bool              `toml:"enabled"`
	Vision      bool              `toml:"vision"`
	Headers     map[string]string `toml:"headers"`
}

type AIConfig struct {
	Models         []ModelConfig `toml:"models"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	PrimaryModel   string        `toml:"primary_model"`
	SecondaryModel string        `toml:"secondary_model"`
	PatternModel   string        `toml:"pattern_model"`
	TrendModel     string        `toml:"trend_model"`
	DualEnabled    bool          `toml:"dual_enabled"`
}

// RiskConfig 风险硬约束（小数百分比）。
type RiskConfig struct {
	FloorPct  float64            `toml:"floor_pct"`
	RRLo      float64            `toml:"rr_lo"`
	RRHi      float64            `toml:"rr_hi"`
	VolFloors map[string]float64 `toml:"vol_floors"`
}

type OrchestratorConfig struct {
	StartOffsetsSeconds []float64 `toml:"start_offsets_seconds"`
	DualStaggerSeconds  float64   `toml:"dual_stagger_seconds"`
}

type StrategyConfig struct {
	Default     string `toml:"default"`
	CatalogPath string `toml:"catalog_path"`
}

type StoreConfig struct {
	HistoryPath string `toml:"history_path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
