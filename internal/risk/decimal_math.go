package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// relativeTarget 以 entry 为基准，按比例 pct 沿指定方向偏移价格。
// direction 为 ActionShort 时向下（止盈向下、止损向上由调用方翻转 pct 符号表达）。
func relativeTarget(entry, pct float64, direction string) float64 {
	if entry <= 0 {
		return 0
	}
	base := decFromFloat(entry)
	pctDec := decFromFloat(pct)
	var factor decimal.Decimal
	switch direction {
	case ActionShort:
		factor = decOne.Sub(pctDec)
	default:
		factor = decOne.Add(pctDec)
	}
	return decToFloat(base.Mul(factor))
}

// distancePct 返回 |entry-price|/entry；任一输入非正时返回 0。
func distancePct(entry, price float64) float64 {
	if entry <= 0 || price <= 0 {
		return 0
	}
	e := decFromFloat(entry)
	diff := e.Sub(decFromFloat(price)).Abs()
	return decToFloat(diff.Div(e))
}
