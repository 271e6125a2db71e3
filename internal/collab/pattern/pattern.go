package pattern

import (
	"context"
	"fmt"
	"strings"

	"candlemind/internal/gateway/provider"
	"candlemind/internal/logger"
	"candlemind/internal/market"
	"candlemind/internal/state"
)

const patternSystemPrompt = `你是一名K线形态分析师。根据给定的K线图或OHLC数据，
识别主要形态（趋势通道、头肩、双顶底、三角整理、关键支撑阻力等），
用简洁的中文列出观察到的形态与当前位置含义，不给出交易指令。`

// Collaborator 基于图表的形态分析：渲染 K 线图后交给多模态模型解读。
// 图表渲染失败时退化为纯文本 OHLC 摘要。
type Collaborator struct {
	Source     market.Source
	Providers  []provider.ModelProvider
	ProviderID string
	Limit      int
}

func New(source market.Source, providers []provider.ModelProvider, providerID string, limit int) *Collaborator {
	if limit <= 0 {
		limit = 120
	}
	return &Collaborator{Source: source, Providers: providers, ProviderID: providerID, Limit: limit}
}

func (c *Collaborator) Name() string      { return "pattern" }
func (c *Collaborator) ReportKey() string { return state.KeyPatternReport }

func (c *Collaborator) Analyze(ctx context.Context, st *state.State) (state.Update, error) {
	symbol := st.String(state.KeySymbol)
	interval := st.String(state.KeyTimeframe)
	p := provider.FindProvider(c.Providers, c.ProviderID)
	if p == nil {
		return state.Update{}, fmt.Errorf("未找到形态分析模型 %s", c.ProviderID)
	}

	candles, err := c.Source.FetchHistory(ctx, symbol, interval, c.Limit)
	if err != nil {
		return state.Update{}, fmt.Errorf("获取K线失败: %w", err)
	}
	if len(candles) == 0 {
		return state.Update{}, fmt.Errorf("K线为空")
	}

	fields := map[string]any{}
	payload := provider.ChatPayload{System: patternSystemPrompt}
	if p.SupportsVision() {
		uri, rerr := RenderKlinePNG(ctx, symbol, interval, candles)
		if rerr != nil {
			logger.Warnf("形态图表渲染失败，退化为文本分析: %v", rerr)
		} else {
			fields[state.KeyChartImage] = uri
			payload.Images = []provider.ImagePayload{{DataURI: uri, Description: "K线图"}}
		}
	}
	payload.User = buildPatternPrompt(symbol, interval, candles, len(payload.Images) > 0)

	logger.LogLLMRequest("pattern", p.ID(), "形态叙事", payload.System, payload.User, nil, "")
	out, err := p.Call(ctx, payload)
	logger.LogLLMResponse("pattern", p.ID(), "形态叙事", out)
	if err != nil {
		return state.Update{}, fmt.Errorf("形态模型调用失败: %w", err)
	}
	report := strings.TrimSpace(out)
	if report == "" {
		return state.Update{}, fmt.Errorf("形态模型返回空文本")
	}

	fields[c.ReportKey()] = state.OK(report)
	return state.Update{
		Fields: fields,
		Messages: []state.Message{
			{Role: "system", Name: c.Name(), Content: fmt.Sprintf("形态分析完成 %s %s", symbol, interval)},
		},
	}, nil
}

func buildPatternPrompt(symbol, interval string, candles []market.Candle, hasChart bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "交易对: %s，周期: %s，共 %d 根K线。\n", strings.ToUpper(symbol), interval, len(candles))
	if hasChart {
		b.WriteString("请结合附带的K线图进行形态识别。\n")
	}
	// 图表不可用时附上末段 OHLC，保证模型仍有可分析的素材。
	tail := candles
	if len(tail) > 30 {
		tail = tail[len(tail)-30:]
	}
	b.WriteString("最近OHLC（开,高,低,收）:\n")
	for _, c := range tail {
		fmt.Fprintf(&b, "%.6g,%.6g,%.6g,%.6g\n", c.Open, c.High, c.Low, c.Close)
	}
	return b.String()
}
