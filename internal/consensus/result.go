package consensus

import "candlemind/internal/risk"

// 模式与分歧类型常量。
const (
	ModeSingle = "single"
	ModeDual   = "dual"

	ErrorDecision = "ERROR"

	DiffDecision   = "决策分歧"
	DiffConfidence = "置信度差异"

	// ConfidenceDivergence 置信度差异超过该阈值才记为分歧。
	ConfidenceDivergence = 0.2
)

// ModelResult 是单个模型的完整决策结果。
type ModelResult struct {
	ModelID    string       `json:"model_id"`
	Decision   string       `json:"decision"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
	Risk       risk.Figures `json:"risk"`
	Payload    Payload      `json:"payload"`
	RawOutput  string       `json:"raw_output,omitempty"`
	Prompt     string       `json:"prompt,omitempty"`
	Error      string       `json:"error,omitempty"`
	ElapsedMs  int64        `json:"elapsed_ms"`
}

// Failed 报告该模型结果是否来自执行失败分支。
func (m ModelResult) Failed() bool { return m.Error != "" && m.Decision == ErrorDecision }

// Difference 记录双模型之间的一处分歧。
type Difference struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Comparison 汇总多模型对比结论。
type Comparison struct {
	Mode        string       `json:"mode"`
	ModelCount  int          `json:"model_count"`
	Consensus   bool         `json:"consensus"`
	Differences []Difference `json:"differences,omitempty"`
	Summary     string       `json:"summary"`
}

// Result 是共识引擎的完整输出。引擎保证任何失败组合下都返回完整结构。
type Result struct {
	TraceID    string        `json:"trace_id"`
	StrategyID string        `json:"strategy_id"`
	Models     []ModelResult `json:"models"`
	Comparison Comparison    `json:"comparison"`
	TotalMs    int64         `json:"total_ms"`
}

// Final 返回对外展示的首选模型结果：第一个成功的，全部失败时退回第一个。
func (r Result) Final() ModelResult {
	for _, m := range r.Models {
		if !m.Failed() {
			return m
		}
	}
	if len(r.Models) > 0 {
		return r.Models[0]
	}
	return ModelResult{Decision: ErrorDecision, Error: "no models executed"}
}
