package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
ai:
  models:
    - id: deepseek
      api_url: "https://api.deepseek.com/v1"
      model: deepseek-chat
      enabled: true
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.Equal(t, "https://fapi.binance.com", cfg.Market.RESTBaseURL)
	assert.Equal(t, 200, cfg.Market.KlineLimit)
	assert.Equal(t, 120, cfg.AI.TimeoutSeconds)
	assert.Equal(t, 0.003, cfg.Risk.FloorPct)
	assert.Equal(t, 1.3, cfg.Risk.RRLo)
	assert.Equal(t, 1.8, cfg.Risk.RRHi)
	assert.Equal(t, 0.008, cfg.Risk.VolFloors["high"])
	assert.Equal(t, []float64{0, 5, 8}, cfg.Orchestrator.StartOffsetsSeconds)
	assert.Equal(t, 2.0, cfg.Orchestrator.DualStaggerSeconds)
	assert.Equal(t, "original", cfg.Strategy.Default)
	assert.Equal(t, "configs/strategies.yaml", cfg.Strategy.CatalogPath)
	assert.Equal(t, "data/analysis_history.db", cfg.Store.HistoryPath)
	// 未写 provider 的模型默认 openai。
	assert.Equal(t, "openai", cfg.AI.Models[0].Provider)
}

func TestLoad_ExplicitValuesSurvive(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  http_addr: ":8080"
  log_level: debug
ai:
  timeout_seconds: 30
  models:
    - id: m1
      api_url: "https://example.com/v1"
      model: test-model
      enabled: true
orchestrator:
  start_offsets_seconds: [0, 1, 2]
  dual_stagger_seconds: 0.5
risk:
  floor_pct: 0.004
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 30, cfg.AI.TimeoutSeconds)
	assert.Equal(t, []float64{0, 1, 2}, cfg.Orchestrator.StartOffsetsSeconds)
	assert.Equal(t, 0.5, cfg.Orchestrator.DualStaggerSeconds)
	assert.Equal(t, 0.004, cfg.Risk.FloorPct)
}

func TestLoad_RequiresEnabledModel(t *testing.T) {
	_, err := Load(writeConfig(t, `
ai:
  models:
    - id: m1
      api_url: "https://example.com/v1"
      model: test-model
      enabled: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one enabled model")
}

func TestLoad_RejectsUnknownModelReference(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
  primary_model: nope
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestLoad_DualRequiresSecondary(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
  dual_enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secondary_model")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("  ")
	require.Error(t, err)
}
