package strategy

// 内置四套决策提示词模板。占位符使用 {name} 形式，由 FillTemplate 渲染。
// original 为默认版本；comprehensive 不强制风险比字段，交由归一化阶段兜底。

const (
	VersionConstrained   = "constrained"
	VersionOriginal      = "original"
	VersionRelaxed       = "relaxed"
	VersionComprehensive = "comprehensive"
)

const defaultSystemPrompt = `你是一名专业的加密货币交易分析师。你的任务是综合技术指标、形态与趋势三路分析，
给出谨慎、可执行的交易决策。只输出一个 JSON 对象，不要输出其它文字。`

const commonOutputContract = `
请严格按以下 JSON 格式输出（只输出 JSON）：
{
  "decision": "做多 | 做空 | 观望",
  "confidence": 0.0到1.0之间的数字,
  "justification": "决策理由",
  "stop_loss": 止损价格(数字，观望可省略),
  "take_profit": 止盈价格(数字，观望可省略),
  "risk_reward_ratio": 盈亏比(数字),
  "forecast_horizon": "预期持仓周期",
  "market_environment": "trending | ranging | volatile",
  "volatility_assessment": "low | medium | high"
}`

const promptOriginal = `# 交易决策分析

交易对: {symbol}
分析周期: {timeframe}
{price_summary}
{multi_timeframe_briefing}
## 技术指标分析
{indicator_report}

## 形态分析
{pattern_report}

## 趋势分析
{trend_report}

## 决策要求
1. 综合三路分析给出方向判断，信号不一致时倾向观望。
2. 止损必须给出明确价格，且与当前波动水平匹配。
3. 盈亏比建议控制在 1.3 到 1.8 之间。
` + commonOutputContract

const promptConstrained = `# 交易决策分析（保守模式）

交易对: {symbol}
分析周期: {timeframe}
{price_summary}
{multi_timeframe_briefing}
## 技术指标分析
{indicator_report}

## 形态分析
{pattern_report}

## 趋势分析
{trend_report}

## 决策要求（严格）
1. 仅在三路分析方向一致且信号强烈时开仓，否则观望。
2. 止损距离不得小于 0.3%，盈亏比必须在 1.3 到 1.8 之间。
3. 置信度低于 0.6 时必须观望。
` + commonOutputContract

const promptRelaxed = `# 交易决策分析（积极模式）

交易对: {symbol}
分析周期: {timeframe}
{price_summary}
{multi_timeframe_briefing}
## 技术指标分析
{indicator_report}

## 形态分析
{pattern_report}

## 趋势分析
{trend_report}

## 决策要求（宽松）
1. 两路以上分析方向一致即可考虑开仓。
2. 给出止损与止盈价格建议，盈亏比可适度放宽。
` + commonOutputContract

const promptComprehensive = `# 交易决策分析（综合模式）

交易对: {symbol}
分析周期: {timeframe}
{price_summary}
{multi_timeframe_briefing}
## 技术指标分析
{indicator_report}

## 形态分析
{pattern_report}

## 趋势分析
{trend_report}

## 决策要求
1. 全面评估市场结构、动能与情绪，给出方向判断与理由。
2. 不强制给出盈亏比，风险参数缺失时由系统按策略下限补齐。
` + commonOutputContract

func builtinTemplates() map[string]string {
	return map[string]string{
		VersionConstrained:   promptConstrained,
		VersionOriginal:      promptOriginal,
		VersionRelaxed:       promptRelaxed,
		VersionComprehensive: promptComprehensive,
	}
}
