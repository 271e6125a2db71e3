package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/logger"
	textutil "candlemind/internal/pkg/text"
	"candlemind/internal/state"
)

// 缺省占位文本（来源报告缺失/失败时注入提示词）。
const (
	defaultSymbol          = "未知交易对"
	defaultTimeframe       = "未知"
	indicatorUnavailable   = "技术指标分析不可用"
	patternUnavailable     = "形态分析不可用"
	trendUnavailable       = "趋势分析不可用"
	indicatorFailed        = "技术指标分析失败"
	patternFailed          = "形态分析失败"
	trendFailed            = "趋势分析失败"
	maxReportChars         = 6000
	decisionMessageRole    = "assistant"
	forcedHoldDecisionText = "观望"
)

// Config 传给策略构造器的可调参数。
type Config struct {
	SystemPrompt string
	Template     string
	Temperature  float64
}

// Strategy 将共享分析状态渲染为提示词并请求模型给出决策文本。
// 模型调用失败不向上抛错，而是产出强制观望的决策 JSON。
type Strategy struct {
	ID           string
	SystemPrompt string
	Template     string
	Temperature  float64
}

// New 以内置模板构造指定版本的策略；Config 可覆盖模板与系统提示词。
func New(id string, cfg Config) *Strategy {
	tpl := strings.TrimSpace(cfg.Template)
	if tpl == "" {
		tpl = builtinTemplates()[id]
	}
	if tpl == "" {
		tpl = promptOriginal
	}
	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Strategy{ID: id, SystemPrompt: system, Template: tpl, Temperature: cfg.Temperature}
}

// ExecOutcome 是一次策略执行的产物。
type ExecOutcome struct {
	DecisionText string
	Prompt       string
	Messages     []state.Message
}

// Execute 渲染提示词并调用模型。占位符缺失与模型失败均为软失败：
// 前者注入 Prompt Error 片段继续，后者返回强制观望的决策文本。
func (s *Strategy) Execute(ctx context.Context, p provider.ModelProvider, st *state.State) (ExecOutcome, error) {
	if p == nil {
		return ExecOutcome{}, fmt.Errorf("策略 %s 未配置可用模型", s.ID)
	}
	vars, images := s.buildVars(st, p.SupportsVision())
	prompt, missing := FillTemplate(s.Template, vars)
	if len(missing) > 0 {
		logger.Warnf("策略 %s 提示词占位符缺失: %v", s.ID, missing)
	}

	chat := provider.ChatPayload{
		System:      s.SystemPrompt,
		User:        prompt,
		Images:      images,
		Temperature: s.Temperature,
	}
	payloadJSON, _ := json.Marshal(chat)
	logger.LogLLMRequest("decision", p.ID(), s.ID, s.SystemPrompt, prompt, imageURIs(images), string(payloadJSON))
	raw, err := p.Call(ctx, chat)
	if err != nil {
		logger.Warnf("策略 %s 模型调用失败 provider=%s err=%v", s.ID, p.ID(), err)
		raw = forcedHoldJSON(err)
	}
	logger.LogLLMResponse("decision", p.ID(), s.ID, raw)

	out := ExecOutcome{
		DecisionText: raw,
		Prompt:       prompt,
		Messages: []state.Message{
			{Role: decisionMessageRole, Name: s.ID, Content: raw},
		},
	}
	return out, nil
}

func (s *Strategy) buildVars(st *state.State, vision bool) (map[string]string, []provider.ImagePayload) {
	symbol := strings.TrimSpace(st.String(state.KeySymbol))
	if symbol == "" {
		symbol = defaultSymbol
	}
	timeframe := strings.TrimSpace(st.String(state.KeyTimeframe))
	if timeframe == "" {
		timeframe = defaultTimeframe
	}

	vars := map[string]string{
		"symbol":                   symbol,
		"timeframe":                timeframe,
		"indicator_report":         reportText(st, state.KeyIndicatorReport, indicatorUnavailable, indicatorFailed),
		"pattern_report":           reportText(st, state.KeyPatternReport, patternUnavailable, patternFailed),
		"trend_report":             reportText(st, state.KeyTrendReport, trendUnavailable, trendFailed),
		"price_summary":            priceSummary(st, symbol),
		"multi_timeframe_briefing": multiTimeframeBriefing(st),
	}

	var images []provider.ImagePayload
	if vision {
		if uri := st.String(state.KeyChartImage); uri != "" {
			images = append(images, provider.ImagePayload{DataURI: uri, Description: "K线图"})
		}
	}
	return vars, images
}

// reportText 把协作者报告字段转成提示词片段：缺失/失败分别落到不同占位文本。
func reportText(st *state.State, key, unavailable, failed string) string {
	outcome, ok := st.Report(key)
	if !ok {
		return unavailable
	}
	if outcome.IsFailure() {
		return failed
	}
	text := strings.TrimSpace(outcome.ReportText())
	if text == "" {
		return unavailable
	}
	return textutil.Truncate(text, maxReportChars)
}

func priceSummary(st *state.State, symbol string) string {
	if price, ok := st.Float(state.KeyLatestPrice); ok && price > 0 {
		return fmt.Sprintf("当前%s最新价格: %.6g", symbol, price)
	}
	return fmt.Sprintf("警告：无法获取%s的当前价格信息", symbol)
}

// multiTimeframeBriefing 多周期模式下的补充说明：
// 列表最后一个周期判断主趋势，第一个周期把握入场时机。
func multiTimeframeBriefing(st *state.State) string {
	if !st.Bool(state.KeyMultiTimeframe) {
		return ""
	}
	tfs := st.Strings(state.KeyTimeframes)
	if len(tfs) < 2 {
		return ""
	}
	dominant := tfs[len(tfs)-1]
	entry := tfs[0]
	return fmt.Sprintf(
		"\n## 多周期分析说明\n本次分析覆盖周期: %s。请以 %s 周期判断主趋势方向，以 %s 周期把握入场时机，低周期信号与主趋势冲突时服从主趋势。\n",
		strings.Join(tfs, ", "), dominant, entry,
	)
}

// forcedHoldJSON 模型失败时的兜底决策文本，保证下游解析路径不变。
func forcedHoldJSON(err error) string {
	payload := map[string]any{
		"error":    fmt.Sprintf("LLM调用失败: %v", err),
		"decision": forcedHoldDecisionText,
	}
	b, merr := json.Marshal(payload)
	if merr != nil {
		return `{"decision": "观望"}`
	}
	return string(b)
}

func imageURIs(images []provider.ImagePayload) []string {
	if len(images) == 0 {
		return nil
	}
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, textutil.Truncate(img.DataURI, 64))
	}
	return out
}
