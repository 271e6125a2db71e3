package consensus

import (
	"encoding/json"
	"strings"

	"candlemind/internal/pkg/convert"
	"candlemind/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// 中文说明：
// 模型输出先用 jsonutil 从自由文本中剥出 JSON，再做结构校验，
// 最后用 gjson 宽松读取字段（兼容字段别名与字符串数字）。

// ParseErrorDecision 解析失败时的决策占位值。
const ParseErrorDecision = "Parse Error"

// payloadSchema 只做最低限度的结构校验：必须是对象且带决策字段。
var payloadSchema = jsonschema.MustCompileString("decision.json", `{
	"type": "object",
	"anyOf": [
		{"required": ["decision"]},
		{"required": ["final_trade_decision"]}
	]
}`)

// Payload 是从模型输出中提取的决策字段。价格/比例保留原始 JSON 取值，
// 由风险归一化阶段决定如何解读。
type Payload struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	StopLoss   any     `json:"stop_loss,omitempty"`
	TakeProfit any     `json:"take_profit,omitempty"`
	RiskReward any     `json:"risk_reward_ratio,omitempty"`
	Horizon    string  `json:"forecast_horizon,omitempty"`
	MarketEnv  string  `json:"market_environment,omitempty"`
	Volatility string  `json:"volatility_assessment,omitempty"`
	ModelError string  `json:"model_error,omitempty"`
	RawJSON    string  `json:"-"`

	parseFailed bool
}

// ParseFailed 报告该 Payload 是否来自解析失败的兜底分支。
func (p Payload) ParseFailed() bool { return p.parseFailed }

// ParsePayload 从模型自由文本中提取决策字段。任何一步失败都不报错，
// 而是返回 decision = "Parse Error" 的兜底 Payload。
func ParsePayload(raw string) Payload {
	extracted, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return parseFailure()
	}
	var doc any
	if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
		return parseFailure()
	}
	if err := payloadSchema.Validate(doc); err != nil {
		return parseFailure()
	}

	p := Payload{RawJSON: extracted}
	p.Decision = firstString(extracted, "decision", "final_trade_decision")
	p.Confidence = ParseConfidence(gjson.Get(extracted, "confidence").Value())
	p.Reasoning = firstString(extracted, "justification", "reasoning")
	p.StopLoss = gjson.Get(extracted, "stop_loss").Value()
	p.TakeProfit = gjson.Get(extracted, "take_profit").Value()
	p.RiskReward = firstValue(extracted, "risk_reward_ratio", "risk_reward")
	p.Horizon = firstString(extracted, "forecast_horizon", "time_horizon")
	p.MarketEnv = gjson.Get(extracted, "market_environment").String()
	p.Volatility = gjson.Get(extracted, "volatility_assessment").String()
	p.ModelError = gjson.Get(extracted, "error").String()
	return p
}

func parseFailure() Payload {
	return Payload{Decision: ParseErrorDecision, parseFailed: true}
}

func firstString(raw string, keys ...string) string {
	for _, key := range keys {
		if res := gjson.Get(raw, key); res.Exists() {
			if s := strings.TrimSpace(res.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstValue(raw string, keys ...string) any {
	for _, key := range keys {
		if res := gjson.Get(raw, key); res.Exists() {
			return res.Value()
		}
	}
	return nil
}

// ParseConfidence 把各种写法的置信度归一到 [0,1]：
// 数字直接使用（1~100 视为百分数），"65%" 除以 100，
// low/medium/high（及中文）映射 0.3/0.6/0.8。
func ParseConfidence(v any) float64 {
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		lower := strings.ToLower(trimmed)
		switch lower {
		case "low", "低":
			return 0.3
		case "medium", "中", "中等":
			return 0.6
		case "high", "高":
			return 0.8
		}
		if strings.HasSuffix(trimmed, "%") {
			if f, ok := convert.ToFloat64Ok(strings.TrimSuffix(trimmed, "%")); ok {
				return clampConfidence(f / 100)
			}
			return 0
		}
	}
	f, ok := convert.ToFloat64Ok(v)
	if !ok {
		return 0
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	return clampConfidence(f)
}

func clampConfidence(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
