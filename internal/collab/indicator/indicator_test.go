package indicator

import (
	"context"
	"fmt"
	"math"
	"testing"

	"candlemind/internal/market"
	"candlemind/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles []market.Candle
	err     error
}

func (f *fakeSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func syntheticCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	price := 100.0
	for i := range out {
		drift := math.Sin(float64(i)/7) * 0.8
		open := price
		price = price + drift + 0.05
		high := math.Max(open, price) + 0.4
		low := math.Min(open, price) - 0.4
		out[i] = market.Candle{
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 1000 + float64(i%17)*50,
		}
	}
	return out
}

func analysisState() *state.State {
	return state.FromFields(map[string]any{
		state.KeySymbol:    "BTCUSDT",
		state.KeyTimeframe: "1h",
	})
}

func TestIndicator_Analyze(t *testing.T) {
	src := &fakeSource{candles: syntheticCandles(250)}
	c := New(src, 0)

	update, err := c.Analyze(context.Background(), analysisState())
	require.NoError(t, err)

	outcome, ok := update.Fields[state.KeyIndicatorReport].(state.Outcome)
	require.True(t, ok)
	assert.False(t, outcome.IsFailure())
	report := outcome.ReportText()
	assert.Contains(t, report, "BTCUSDT 1h 技术指标")
	assert.Contains(t, report, "RSI(14)")
	assert.Contains(t, report, "MACD")
	assert.Contains(t, report, "ATR(14)")

	price, pok := update.Fields[state.KeyLatestPrice].(float64)
	require.True(t, pok)
	assert.Equal(t, src.candles[len(src.candles)-1].Close, price)

	vol, vok := update.Fields[state.KeyVolatility].(string)
	require.True(t, vok)
	assert.NotEmpty(t, vol)

	require.Len(t, update.Messages, 1)
	assert.Equal(t, "indicator", update.Messages[0].Name)
}

func TestIndicator_TooFewCandles(t *testing.T) {
	src := &fakeSource{candles: syntheticCandles(10)}
	c := New(src, 0)

	_, err := c.Analyze(context.Background(), analysisState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "K线数量不足")
}

func TestIndicator_FetchFailure(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("network down")}
	c := New(src, 0)

	_, err := c.Analyze(context.Background(), analysisState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "获取K线失败")
}

func TestVolatilityLabel(t *testing.T) {
	assert.Equal(t, "high", volatilityLabel(2.5, 100))
	assert.Equal(t, "medium", volatilityLabel(1.0, 100))
	assert.Equal(t, "low", volatilityLabel(0.2, 100))
	assert.Equal(t, "", volatilityLabel(0, 100))
	assert.Equal(t, "", volatilityLabel(1, 0))
}
