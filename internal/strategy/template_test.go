package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillTemplate(t *testing.T) {
	out, missing := FillTemplate("分析{symbol}的{timeframe}走势", map[string]string{
		"symbol":    "BTCUSDT",
		"timeframe": "1h",
	})
	assert.Equal(t, "分析BTCUSDT的1h走势", out)
	assert.Nil(t, missing)
}

func TestFillTemplate_MissingKeys(t *testing.T) {
	out, missing := FillTemplate("{symbol} {price_summary} {symbol}", map[string]string{
		"symbol": "ETHUSDT",
	})
	assert.Equal(t, "ETHUSDT Prompt Error: 'price_summary' ETHUSDT", out)
	assert.Equal(t, []string{"price_summary"}, missing)
}

func TestFillTemplate_MissingKeysSorted(t *testing.T) {
	_, missing := FillTemplate("{zeta}{alpha}{zeta}", nil)
	assert.Equal(t, []string{"alpha", "zeta"}, missing)
}

func TestFillTemplate_IgnoresNonPlaceholderBraces(t *testing.T) {
	out, missing := FillTemplate(`输出 JSON：{"decision": "..."} 和 {symbol}`, map[string]string{"symbol": "X"})
	assert.Equal(t, `输出 JSON：{"decision": "..."} 和 X`, out)
	assert.Nil(t, missing)
}
