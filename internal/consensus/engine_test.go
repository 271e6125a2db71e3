package consensus

import (
	"context"
	"fmt"
	"testing"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/risk"
	"candlemind/internal/state"
	"candlemind/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	id     string
	reply  string
	err    error
	calls  int
	vision bool
}

func (f *fakeProvider) ID() string           { return f.id }
func (f *fakeProvider) Enabled() bool        { return true }
func (f *fakeProvider) SupportsVision() bool { return f.vision }

func (f *fakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestEngine(providers ...provider.ModelProvider) *Engine {
	registry := strategy.NewDefaultRegistry("original", nil, nil)
	e := NewEngine(registry, providers, risk.DefaultPolicy())
	e.DualStagger = 0
	return e
}

func analysisState() *state.State {
	return state.FromFields(map[string]any{
		state.KeySymbol:      "BTCUSDT",
		state.KeyTimeframe:   "1h",
		state.KeyLatestPrice: 100.0,
		state.KeyVolatility:  "low",
	})
}

func TestEngine_SingleModel(t *testing.T) {
	p := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.7,"stop_loss":99.5,"take_profit":100.7}`}
	e := newTestEngine(p)

	res := e.Run(context.Background(), analysisState(), RunSpec{StrategyID: "original", Primary: "alpha"})

	require.Len(t, res.Models, 1)
	assert.Equal(t, ModeSingle, res.Comparison.Mode)
	assert.Equal(t, 1, res.Comparison.ModelCount)
	assert.True(t, res.Comparison.Consensus)
	assert.Equal(t, "LONG", res.Models[0].Decision)
	assert.Equal(t, 0.7, res.Models[0].Confidence)
	assert.NotEmpty(t, res.TraceID)
	assert.Equal(t, "original", res.StrategyID)
	assert.Equal(t, 1, p.calls)
}

func TestEngine_DualConsensus(t *testing.T) {
	a := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.7}`}
	b := &fakeProvider{id: "beta", reply: `{"decision":"long","confidence":0.65}`}
	e := newTestEngine(a, b)

	res := e.Run(context.Background(), analysisState(), RunSpec{
		StrategyID: "original", Primary: "alpha", Secondary: "beta", Dual: true,
	})

	require.Len(t, res.Models, 2)
	assert.Equal(t, ModeDual, res.Comparison.Mode)
	assert.True(t, res.Comparison.Consensus)
	assert.Empty(t, res.Comparison.Differences)
	assert.Equal(t, "两个模型决策一致: LONG", res.Comparison.Summary)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestEngine_DualDivergence(t *testing.T) {
	a := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.9}`}
	b := &fakeProvider{id: "beta", reply: `{"decision":"short","confidence":0.4}`}
	e := newTestEngine(a, b)

	res := e.Run(context.Background(), analysisState(), RunSpec{
		StrategyID: "original", Primary: "alpha", Secondary: "beta", Dual: true,
	})

	assert.False(t, res.Comparison.Consensus)
	assert.Equal(t, "模型决策分歧: LONG vs SHORT", res.Comparison.Summary)
	require.Len(t, res.Comparison.Differences, 2)
	assert.Equal(t, DiffDecision, res.Comparison.Differences[0].Type)
	assert.Equal(t, DiffConfidence, res.Comparison.Differences[1].Type)
}

func TestEngine_ConfidenceWithinThresholdNotRecorded(t *testing.T) {
	a := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.7}`}
	b := &fakeProvider{id: "beta", reply: `{"decision":"long","confidence":0.55}`}
	e := newTestEngine(a, b)

	res := e.Run(context.Background(), analysisState(), RunSpec{
		StrategyID: "original", Primary: "alpha", Secondary: "beta", Dual: true,
	})

	// 差 0.15 <= 0.2，不记分歧。
	assert.True(t, res.Comparison.Consensus)
	assert.Empty(t, res.Comparison.Differences)
}

func TestEngine_PartialFailureDoesNotAbort(t *testing.T) {
	a := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.7}`}
	e := newTestEngine(a)

	res := e.Run(context.Background(), analysisState(), RunSpec{
		StrategyID: "original", Primary: "alpha", Secondary: "missing", Dual: true,
	})

	require.Len(t, res.Models, 2)
	assert.Equal(t, "LONG", res.Models[0].Decision)
	assert.Equal(t, ErrorDecision, res.Models[1].Decision)
	assert.True(t, res.Models[1].Failed())
	assert.Zero(t, res.Models[1].Confidence)
	assert.Contains(t, res.Models[1].Error, "missing")
	assert.False(t, res.Comparison.Consensus)
	// 首选结果是成功侧。
	assert.Equal(t, "LONG", res.Final().Decision)
}

func TestEngine_ProviderErrorBecomesErrorResult(t *testing.T) {
	// 策略层把调用失败折叠为带 error 字段的兜底 JSON，
	// 引擎据此判定失败：decision = ERROR，置信度归零。
	p := &fakeProvider{id: "alpha", err: fmt.Errorf("rate limited")}
	e := newTestEngine(p)

	res := e.Run(context.Background(), analysisState(), RunSpec{StrategyID: "original", Primary: "alpha"})

	require.Len(t, res.Models, 1)
	m := res.Models[0]
	assert.Equal(t, ErrorDecision, m.Decision)
	assert.Zero(t, m.Confidence)
	assert.Contains(t, m.Error, "LLM调用失败")
	assert.True(t, m.Failed())
}

func TestEngine_DualBothProvidersFailing(t *testing.T) {
	a := &fakeProvider{id: "alpha", err: fmt.Errorf("timeout")}
	b := &fakeProvider{id: "beta", err: fmt.Errorf("connection refused")}
	e := newTestEngine(a, b)

	res := e.Run(context.Background(), analysisState(), RunSpec{
		StrategyID: "original", Primary: "alpha", Secondary: "beta", Dual: true,
	})

	require.Len(t, res.Models, 2)
	for _, m := range res.Models {
		assert.Equal(t, ErrorDecision, m.Decision)
		assert.Zero(t, m.Confidence)
		assert.True(t, m.Failed())
	}
	// 全部失败时仍返回完整结构，首选退回第一个结果。
	assert.Equal(t, ErrorDecision, res.Final().Decision)
	assert.GreaterOrEqual(t, res.TotalMs, int64(0))
}

func TestEngine_ParseFailure(t *testing.T) {
	p := &fakeProvider{id: "alpha", reply: "完全不是 JSON 的回复"}
	e := newTestEngine(p)

	res := e.Run(context.Background(), analysisState(), RunSpec{StrategyID: "original", Primary: "alpha"})

	require.Len(t, res.Models, 1)
	assert.Equal(t, ParseErrorDecision, res.Models[0].Decision)
	assert.Zero(t, res.Models[0].Confidence)
}

func TestEngine_UnknownStrategyFallsBack(t *testing.T) {
	p := &fakeProvider{id: "alpha", reply: `{"decision":"hold","confidence":0.5}`}
	e := newTestEngine(p)

	res := e.Run(context.Background(), analysisState(), RunSpec{StrategyID: "no-such-version", Primary: "alpha"})

	assert.Equal(t, "original", res.StrategyID)
	assert.Equal(t, "HOLD", res.Models[0].Decision)
}

func TestEngine_RiskFiguresFlowThrough(t *testing.T) {
	p := &fakeProvider{id: "alpha", reply: `{"decision":"long","confidence":0.8,"stop_loss":99.7,"risk_reward_ratio":1.55,"volatility_assessment":"low"}`}
	e := newTestEngine(p)

	res := e.Run(context.Background(), analysisState(), RunSpec{StrategyID: "original", Primary: "alpha"})

	// 止盈缺失，按 1.55 目标比例合成。
	fig := res.Models[0].Risk
	assert.Equal(t, 99.7, fig.StopLoss)
	assert.InDelta(t, 100.465, fig.TakeProfit, 1e-9)
	assert.Equal(t, "1:1.55", fig.RRDisplay)
}
