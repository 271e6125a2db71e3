package trend

import (
	"context"
	"fmt"
	"testing"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/market"
	"candlemind/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	failing map[string]bool
	calls   []string
}

func (f *fakeSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	f.calls = append(f.calls, interval)
	if f.failing[interval] {
		return nil, fmt.Errorf("fetch %s failed", interval)
	}
	out := make([]market.Candle, 5)
	for i := range out {
		out[i] = market.Candle{Close: 100 + float64(i)}
	}
	return out, nil
}

type fakeProvider struct {
	reply   string
	err     error
	payload provider.ChatPayload
}

func (f *fakeProvider) ID() string           { return "trender" }
func (f *fakeProvider) Enabled() bool        { return true }
func (f *fakeProvider) SupportsVision() bool { return false }
func (f *fakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	f.payload = payload
	return f.reply, f.err
}

func TestTrend_MultiIntervalPrompt(t *testing.T) {
	src := &fakeSource{}
	p := &fakeProvider{reply: "1h 上升，4h 震荡，支撑 100"}
	c := New(src, []provider.ModelProvider{p}, "trender", 0)

	st := state.FromFields(map[string]any{
		state.KeySymbol:     "btcusdt",
		state.KeyTimeframes: []string{"1h", "4h"},
	})
	update, err := c.Analyze(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, []string{"1h", "4h"}, src.calls)
	assert.Contains(t, p.payload.User, "交易对: BTCUSDT")
	assert.Contains(t, p.payload.User, "## 1h 收盘序列")
	assert.Contains(t, p.payload.User, "## 4h 收盘序列")

	outcome, ok := update.Fields[state.KeyTrendReport].(state.Outcome)
	require.True(t, ok)
	assert.Equal(t, "1h 上升，4h 震荡，支撑 100", outcome.ReportText())
}

func TestTrend_FallsBackToSingleTimeframe(t *testing.T) {
	src := &fakeSource{}
	p := &fakeProvider{reply: "震荡"}
	c := New(src, []provider.ModelProvider{p}, "trender", 0)

	st := state.FromFields(map[string]any{
		state.KeySymbol:    "ETHUSDT",
		state.KeyTimeframe: "1h",
	})
	_, err := c.Analyze(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, []string{"1h"}, src.calls)
}

func TestTrend_PartialFetchFailureContinues(t *testing.T) {
	src := &fakeSource{failing: map[string]bool{"1h": true}}
	p := &fakeProvider{reply: "4h 向上"}
	c := New(src, []provider.ModelProvider{p}, "trender", 0)

	st := state.FromFields(map[string]any{
		state.KeySymbol:     "BTCUSDT",
		state.KeyTimeframes: []string{"1h", "4h"},
	})
	_, err := c.Analyze(context.Background(), st)
	require.NoError(t, err)
	assert.NotContains(t, p.payload.User, "## 1h 收盘序列")
	assert.Contains(t, p.payload.User, "## 4h 收盘序列")
}

func TestTrend_AllFetchesFailing(t *testing.T) {
	src := &fakeSource{failing: map[string]bool{"1h": true, "4h": true}}
	p := &fakeProvider{reply: "无"}
	c := New(src, []provider.ModelProvider{p}, "trender", 0)

	st := state.FromFields(map[string]any{
		state.KeySymbol:     "BTCUSDT",
		state.KeyTimeframes: []string{"1h", "4h"},
	})
	_, err := c.Analyze(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "所有周期K线获取失败")
}

func TestTrend_MissingProvider(t *testing.T) {
	c := New(&fakeSource{}, nil, "nope", 0)
	st := state.FromFields(map[string]any{
		state.KeySymbol:    "BTCUSDT",
		state.KeyTimeframe: "1h",
	})
	_, err := c.Analyze(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未找到趋势分析模型")
}
