package trend

import (
	"context"
	"fmt"
	"strings"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/logger"
	"candlemind/internal/market"
	"candlemind/internal/state"
)

const trendSystemPrompt = `你是一名趋势与支撑阻力分析师。根据多周期收盘价序列，
判断各周期的趋势方向与强度，标出关键支撑/阻力价位，用简洁中文输出结论，
不给出交易指令。`

// Collaborator 多周期趋势分析：汇总各周期收盘序列后交给文本模型判读。
type Collaborator struct {
	Source     market.Source
	Providers  []provider.ModelProvider
	ProviderID string
	Limit      int
}

func New(source market.Source, providers []provider.ModelProvider, providerID string, limit int) *Collaborator {
	if limit <= 0 {
		limit = 60
	}
	return &Collaborator{Source: source, Providers: providers, ProviderID: providerID, Limit: limit}
}

func (c *Collaborator) Name() string      { return "trend" }
func (c *Collaborator) ReportKey() string { return state.KeyTrendReport }

func (c *Collaborator) Analyze(ctx context.Context, st *state.State) (state.Update, error) {
	symbol := st.String(state.KeySymbol)
	intervals := st.Strings(state.KeyTimeframes)
	if len(intervals) == 0 {
		if tf := st.String(state.KeyTimeframe); tf != "" {
			intervals = []string{tf}
		}
	}
	if len(intervals) == 0 {
		return state.Update{}, fmt.Errorf("未指定分析周期")
	}
	p := provider.FindProvider(c.Providers, c.ProviderID)
	if p == nil {
		return state.Update{}, fmt.Errorf("未找到趋势分析模型 %s", c.ProviderID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "交易对: %s\n", strings.ToUpper(symbol))
	fetched := 0
	for _, interval := range intervals {
		candles, err := c.Source.FetchHistory(ctx, symbol, interval, c.Limit)
		if err != nil {
			logger.Warnf("趋势分析获取 %s %s K线失败: %v", symbol, interval, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		fetched++
		fmt.Fprintf(&b, "\n## %s 收盘序列（旧到新，共%d）\n", interval, len(candles))
		closes := market.Closes(candles)
		for i, v := range closes {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%.6g", v)
		}
		b.WriteString("\n")
	}
	if fetched == 0 {
		return state.Update{}, fmt.Errorf("所有周期K线获取失败")
	}

	logger.LogLLMRequest("trend", p.ID(), "趋势/支撑阻力分析", trendSystemPrompt, b.String(), nil, "")
	out, err := p.Call(ctx, provider.ChatPayload{System: trendSystemPrompt, User: b.String()})
	logger.LogLLMResponse("trend", p.ID(), "趋势/支撑阻力分析", out)
	if err != nil {
		return state.Update{}, fmt.Errorf("趋势模型调用失败: %w", err)
	}
	report := strings.TrimSpace(out)
	if report == "" {
		return state.Update{}, fmt.Errorf("趋势模型返回空文本")
	}

	return state.Update{
		Fields: map[string]any{c.ReportKey(): state.OK(report)},
		Messages: []state.Message{
			{Role: "system", Name: c.Name(), Content: fmt.Sprintf("趋势分析完成 %s %s", symbol, strings.Join(intervals, ","))},
		},
	}, nil
}
