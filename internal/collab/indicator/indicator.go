package indicator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"candlemind/internal/market"
	"candlemind/internal/state"

	"github.com/markcheno/go-talib"
)

// Collaborator 计算技术指标并产出文本报告。不依赖模型调用。
type Collaborator struct {
	Source market.Source
	Limit  int
}

func New(source market.Source, limit int) *Collaborator {
	if limit <= 0 {
		limit = 200
	}
	return &Collaborator{Source: source, Limit: limit}
}

func (c *Collaborator) Name() string      { return "indicator" }
func (c *Collaborator) ReportKey() string { return state.KeyIndicatorReport }

func (c *Collaborator) Analyze(ctx context.Context, st *state.State) (state.Update, error) {
	symbol := st.String(state.KeySymbol)
	interval := st.String(state.KeyTimeframe)
	candles, err := c.Source.FetchHistory(ctx, symbol, interval, c.Limit)
	if err != nil {
		return state.Update{}, fmt.Errorf("获取K线失败: %w", err)
	}
	if len(candles) < 30 {
		return state.Update{}, fmt.Errorf("K线数量不足: %d", len(candles))
	}

	values := compute(candles)
	lastClose := market.LastClose(candles)
	report := formatReport(symbol, interval, lastClose, values)

	return state.Update{
		Fields: map[string]any{
			state.KeyIndicatorReport: state.OK(report),
			state.KeyLatestPrice:     lastClose,
			state.KeyVolatility:      volatilityLabel(values.ATR, lastClose),
		},
		Messages: []state.Message{
			{Role: "system", Name: c.Name(), Content: fmt.Sprintf("技术指标分析完成 %s %s", symbol, interval)},
		},
	}, nil
}

type values struct {
	EMAFast, EMAMid, EMASlow float64
	RSI                      float64
	MACD, MACDSignal, Hist   float64
	ROC                      float64
	StochK, StochD           float64
	WilliamsR                float64
	ATR                      float64
	OBV                      float64
}

func compute(candles []market.Candle) values {
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	var v values
	v.EMAFast = lastValid(talib.Ema(closes, 21))
	v.EMAMid = lastValid(talib.Ema(closes, 50))
	v.EMASlow = lastValid(talib.Ema(closes, 200))
	v.RSI = lastValid(talib.Rsi(closes, 14))
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	v.MACD = lastValid(macd)
	v.MACDSignal = lastValid(signal)
	v.Hist = lastValid(hist)
	v.ROC = lastValid(talib.Roc(closes, 9))
	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	v.StochK = lastValid(k)
	v.StochD = lastValid(d)
	v.WilliamsR = lastValid(talib.WillR(highs, lows, closes, 14))
	v.ATR = lastValid(talib.Atr(highs, lows, closes, 14))
	v.OBV = lastValid(talib.Obv(closes, volumes))
	return v
}

func formatReport(symbol, interval string, lastClose float64, v values) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s 技术指标:\n", strings.ToUpper(symbol), interval)
	fmt.Fprintf(&b, "- 收盘价 %.6g，EMA21=%.6g(%s) EMA50=%.6g(%s) EMA200=%.6g(%s)\n",
		lastClose,
		v.EMAFast, relativeState(lastClose, v.EMAFast),
		v.EMAMid, relativeState(lastClose, v.EMAMid),
		v.EMASlow, relativeState(lastClose, v.EMASlow))
	fmt.Fprintf(&b, "- RSI(14)=%.2f(%s)，ROC(9)=%.2f%%\n", v.RSI, rsiState(v.RSI), v.ROC)
	fmt.Fprintf(&b, "- MACD=%.4f signal=%.4f hist=%.4f(%s)\n", v.MACD, v.MACDSignal, v.Hist, macdState(v.Hist))
	fmt.Fprintf(&b, "- Stoch K=%.2f D=%.2f(%s)，Williams %%R=%.2f\n", v.StochK, v.StochD, stochasticState(v.StochK), v.WilliamsR)
	fmt.Fprintf(&b, "- ATR(14)=%.6g，OBV=%.4g", v.ATR, v.OBV)
	return b.String()
}

// volatilityLabel 用 ATR/价格 粗分波动档位，供风险下限选择。
func volatilityLabel(atr, price float64) string {
	if atr <= 0 || price <= 0 {
		return ""
	}
	ratio := atr / price
	switch {
	case ratio >= 0.02:
		return "high"
	case ratio >= 0.008:
		return "medium"
	default:
		return "low"
	}
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) && series[i] != 0 {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func rsiState(v float64) string {
	switch {
	case v >= 70:
		return "overbought"
	case v <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}

func macdState(hist float64) string {
	switch {
	case hist > 0:
		return "bullish"
	case hist < 0:
		return "bearish"
	default:
		return "flat"
	}
}

func stochasticState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}
