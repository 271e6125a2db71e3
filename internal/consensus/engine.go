package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/logger"
	"candlemind/internal/risk"
	"candlemind/internal/state"
	"candlemind/internal/strategy"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultDualStagger 双模型提交的固定错峰间隔。
const DefaultDualStagger = 2 * time.Second

// Engine 在同一份分析状态上运行一或两个模型并汇总共识结论。
// 单个模型失败不会中断整体流程：失败侧落为 ERROR 结果，引擎总是返回完整 Result。
type Engine struct {
	Registry    *strategy.Registry
	Providers   []provider.ModelProvider
	Policy      risk.Policy
	DualStagger time.Duration
}

func NewEngine(registry *strategy.Registry, providers []provider.ModelProvider, policy risk.Policy) *Engine {
	return &Engine{
		Registry:    registry,
		Providers:   providers,
		Policy:      policy,
		DualStagger: DefaultDualStagger,
	}
}

// RunSpec 描述一次共识执行。
type RunSpec struct {
	StrategyID string // 已经过 Registry.ResolveID 的版本 ID
	Primary    string // 主模型 ID；为空取第一个可用模型
	Secondary  string // 副模型 ID，仅 Dual 模式使用
	Dual       bool
}

// Run 执行共识流程。
func (e *Engine) Run(ctx context.Context, st *state.State, spec RunSpec) Result {
	start := time.Now()
	strat := e.Registry.Resolve(spec.StrategyID)
	res := Result{
		TraceID:    uuid.NewString(),
		StrategyID: strat.ID,
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !spec.Dual {
		m := e.runModel(ctx, strat, spec.Primary, st)
		res.Models = []ModelResult{m}
		res.Comparison = Comparison{
			Mode:       ModeSingle,
			ModelCount: 1,
			Consensus:  true,
			Summary:    fmt.Sprintf("单模型决策: %s", m.Decision),
		}
		res.TotalMs = elapsedMs(start)
		return res
	}

	stagger := e.DualStagger
	if stagger < 0 {
		stagger = 0
	}
	results := make([]ModelResult, 2)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		results[0] = e.runModel(egCtx, strat, spec.Primary, st)
		return nil
	})
	eg.Go(func() error {
		// 错峰提交，避免同时打到限流窗口。
		select {
		case <-egCtx.Done():
			results[1] = errorResult(spec.Secondary, egCtx.Err())
			return nil
		case <-time.After(stagger):
		}
		results[1] = e.runModel(egCtx, strat, spec.Secondary, st)
		return nil
	})
	if err := eg.Wait(); err != nil {
		logger.Debugf("consensus errgroup: %v", err)
	}

	res.Models = results
	res.Comparison = compare(results)
	res.TotalMs = elapsedMs(start)
	return res
}

// runModel 执行一次 策略渲染 -> 模型调用 -> 解析 -> 风险归一化。
// 执行错误不向上传播，折叠为 decision = ERROR 的结果。
func (e *Engine) runModel(ctx context.Context, strat *strategy.Strategy, providerID string, st *state.State) ModelResult {
	begin := time.Now()
	p := provider.FindProvider(e.Providers, providerID)
	if p == nil {
		if strings.TrimSpace(providerID) == "" {
			return errorResult(providerID, fmt.Errorf("无可用模型"))
		}
		return errorResult(providerID, fmt.Errorf("未找到模型 %s", providerID))
	}

	out, err := strat.Execute(ctx, p, st)
	if err != nil {
		m := errorResult(p.ID(), err)
		m.ElapsedMs = elapsedMs(begin)
		return m
	}

	payload := ParsePayload(out.DecisionText)
	entry, _ := st.Float(state.KeyLatestPrice)
	volatility := payload.Volatility
	if volatility == "" {
		volatility = st.String(state.KeyVolatility)
	}
	fig := risk.Normalize(risk.Input{
		Action:     payload.Decision,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
		RiskReward: payload.RiskReward,
		EntryPrice: entry,
		Volatility: volatility,
	}, e.Policy)

	m := ModelResult{
		ModelID:    p.ID(),
		Decision:   fig.Action,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
		Risk:       fig,
		Payload:    payload,
		RawOutput:  out.DecisionText,
		Prompt:     out.Prompt,
		ElapsedMs:  elapsedMs(begin),
	}
	if payload.ParseFailed() {
		m.Decision = ParseErrorDecision
	}
	if payload.ModelError != "" {
		// 带 error 字段的回包视同调用失败，折叠为 ERROR 结果。
		m.Decision = ErrorDecision
		m.Confidence = 0
		m.Error = payload.ModelError
	}
	return m
}

func errorResult(modelID string, err error) ModelResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ModelResult{
		ModelID:    strings.TrimSpace(modelID),
		Decision:   ErrorDecision,
		Confidence: 0,
		Error:      msg,
	}
}

// compare 汇总双模型结论：决策一致即共识；分歧与置信度差异分别记录。
// 输出对相同输入是确定的。
func compare(results []ModelResult) Comparison {
	cmp := Comparison{Mode: ModeDual, ModelCount: len(results)}
	if len(results) != 2 {
		cmp.Summary = fmt.Sprintf("模型数量异常: %d", len(results))
		return cmp
	}
	a, b := results[0], results[1]
	cmp.Consensus = a.Decision == b.Decision
	if !cmp.Consensus {
		cmp.Differences = append(cmp.Differences, Difference{
			Type:   DiffDecision,
			Detail: fmt.Sprintf("%s=%s vs %s=%s", a.ModelID, a.Decision, b.ModelID, b.Decision),
		})
	}
	if diff := a.Confidence - b.Confidence; diff > ConfidenceDivergence || diff < -ConfidenceDivergence {
		cmp.Differences = append(cmp.Differences, Difference{
			Type:   DiffConfidence,
			Detail: fmt.Sprintf("%s=%.2f vs %s=%.2f", a.ModelID, a.Confidence, b.ModelID, b.Confidence),
		})
	}
	if cmp.Consensus {
		cmp.Summary = fmt.Sprintf("两个模型决策一致: %s", a.Decision)
	} else {
		cmp.Summary = fmt.Sprintf("模型决策分歧: %s vs %s", a.Decision, b.Decision)
	}
	return cmp
}

func elapsedMs(start time.Time) int64 {
	ms := time.Since(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
