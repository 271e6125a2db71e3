package risk

import (
	"fmt"
	"strings"

	"candlemind/internal/pkg/convert"
)

// 中文说明：
// 本文件把模型给出的松散风险字段（方向/止损/止盈/盈亏比）收紧到策略硬约束内。
// 原始值全部保留，生效值单独给出；任一字段异常只降级该字段，不影响其它字段。

const (
	ActionLong  = "LONG"
	ActionShort = "SHORT"
	ActionHold  = "HOLD"
)

// Input 是一次归一化的原始输入。止损/止盈/比例接受任意 JSON 取值。
type Input struct {
	Action     string
	StopLoss   any
	TakeProfit any
	RiskReward any
	EntryPrice float64
	Volatility string
}

// Figures 同时保留原始值与生效值。
type Figures struct {
	Action     string  `json:"action"`
	RRTarget   float64 `json:"rr_target"`
	RRDisplay  string  `json:"risk_reward_display"`
	MinStopPct float64 `json:"min_sl_pct"`

	RawStopLoss   float64 `json:"raw_stop_loss,omitempty"`
	RawTakeProfit float64 `json:"raw_take_profit,omitempty"`
	RawRiskReward float64 `json:"raw_risk_reward,omitempty"`

	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// NormalizeAction 统一动作名称：含 long/做多 视为做多，含 short/做空 视为做空，
// 其余一律观望。做多判定优先，两词同时出现时按做多处理。
func NormalizeAction(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	switch {
	case strings.Contains(a, "long") || strings.Contains(a, "做多"):
		return ActionLong
	case strings.Contains(a, "short") || strings.Contains(a, "做空"):
		return ActionShort
	default:
		return ActionHold
	}
}

// Normalize 按策略硬约束归一化一组风险字段。
func Normalize(in Input, policy Policy) Figures {
	policy = policy.withDefaults()
	fig := Figures{
		Action:     NormalizeAction(in.Action),
		MinStopPct: policy.MinStopPct(in.Volatility),
		RRDisplay:  "N/A",
	}

	rawStop, stopOk := convert.ToFloat64Ok(in.StopLoss)
	if stopOk && rawStop > 0 {
		fig.RawStopLoss = rawStop
	}
	rawTake, takeOk := convert.ToFloat64Ok(in.TakeProfit)
	if takeOk && rawTake > 0 {
		fig.RawTakeProfit = rawTake
	}
	if rr, ok := parseRatio(in.RiskReward); ok && rr > 0 {
		fig.RawRiskReward = rr
		fig.RRTarget = policy.ClampRR(rr)
	} else {
		fig.RRTarget = policy.MidRR()
	}

	entry := in.EntryPrice
	if entry <= 0 {
		// 无入场价：原样透传，不做任何价格合成。
		fig.StopLoss = fig.RawStopLoss
		fig.TakeProfit = fig.RawTakeProfit
		return fig
	}

	if fig.Action == ActionHold {
		// 观望不持仓，不合成价格。
		fig.StopLoss = fig.RawStopLoss
		fig.TakeProfit = fig.RawTakeProfit
		fig.RRDisplay = displayRR(entry, fig.StopLoss, fig.TakeProfit, fig.Action)
		return fig
	}

	fig.StopLoss = normalizeStop(entry, fig.RawStopLoss, fig.MinStopPct, fig.Action)
	fig.TakeProfit = normalizeTake(entry, fig.StopLoss, fig.RawTakeProfit, fig.RRTarget, fig.Action)
	fig.RRDisplay = displayRR(entry, fig.StopLoss, fig.TakeProfit, fig.Action)
	return fig
}

// normalizeStop 保证止损在正确一侧且距离不小于 minStopPct，否则按下限重新合成。
func normalizeStop(entry, rawStop, minStopPct float64, action string) float64 {
	if rawStop > 0 && stopOnCorrectSide(entry, rawStop, action) {
		if distancePct(entry, rawStop) >= minStopPct {
			return rawStop
		}
	}
	// 方向感知合成：做多向下、做空向上偏移 minStopPct。
	pct := minStopPct
	if action == ActionLong {
		pct = -pct
	}
	return relativeTarget(entry, pct, ActionLong)
}

// normalizeTake 保留隐含盈亏比不低于目标的原始止盈；缺失、方向错误
// 或低于目标时按 rrTarget 合成。止盈给得比目标更宽不算异常。
func normalizeTake(entry, effStop, rawTake, rrTarget float64, action string) float64 {
	lossFrac := distancePct(entry, effStop)
	if lossFrac <= 0 {
		// 止损不可用时无法推导止盈，仅保留原始值。
		return rawTake
	}
	if rawTake > 0 && takeOnCorrectSide(entry, rawTake, action) {
		implied := distancePct(entry, rawTake) / lossFrac
		if implied >= rrTarget {
			return rawTake
		}
	}
	pct := rrTarget * lossFrac
	if action == ActionShort {
		pct = -pct
	}
	return relativeTarget(entry, pct, ActionLong)
}

func stopOnCorrectSide(entry, stop float64, action string) bool {
	if action == ActionShort {
		return stop > entry
	}
	return stop < entry
}

func takeOnCorrectSide(entry, take float64, action string) bool {
	if action == ActionShort {
		return take < entry
	}
	return take > entry
}

// displayRR 从生效止损/止盈重新推导展示比例；任何一项缺失时显示 N/A。
func displayRR(entry, stop, take float64, action string) string {
	if entry <= 0 || stop <= 0 || take <= 0 {
		return "N/A"
	}
	if !stopOnCorrectSide(entry, stop, action) || !takeOnCorrectSide(entry, take, action) {
		return "N/A"
	}
	lossFrac := distancePct(entry, stop)
	if lossFrac <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("1:%.2f", distancePct(entry, take)/lossFrac)
}

// parseRatio 解析盈亏比，兼容数字与 "1:1.5"、"1.5:1" 等文本写法。
func parseRatio(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if idx := strings.IndexByte(s, ':'); idx != -1 {
			left, lok := convert.ToFloat64Ok(s[:idx])
			right, rok := convert.ToFloat64Ok(s[idx+1:])
			if !lok || !rok || left <= 0 || right <= 0 {
				return 0, false
			}
			return right / left, true
		}
	}
	return convert.ToFloat64Ok(v)
}
