package state

import (
	"strings"

	"candlemind/internal/pkg/convert"
)

// 中文说明：
// 本包定义多协作者共享的分析状态。协作者各自产出 Update（字段增量 + 消息），
// 协调器按提交顺序合并：字段后写覆盖，消息顺序追加。

// 常用字段键。
const (
	KeySymbol          = "symbol"
	KeyTimeframe       = "timeframe"
	KeyTimeframes      = "timeframes"
	KeyMultiTimeframe  = "multi_timeframe_mode"
	KeyLatestPrice     = "latest_price"
	KeyIndicatorReport = "indicator_report"
	KeyPatternReport   = "pattern_report"
	KeyTrendReport     = "trend_report"
	KeyChartImage      = "chart_image"
	KeyVolatility      = "volatility_label"
)

// Message 记录一条协作者消息（按提交顺序保留）。
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Outcome 是协作者报告的两态结果：成功文本或失败原因，合并后由决策阶段统一解读。
type Outcome struct {
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
	failed bool
}

func OK(text string) Outcome       { return Outcome{Text: text} }
func Failed(reason string) Outcome { return Outcome{Reason: reason, failed: true} }

func (o Outcome) IsFailure() bool    { return o.failed || o.Reason != "" }
func (o Outcome) ReportText() string { return o.Text }
func (o Outcome) FailReason() string { return o.Reason }

// Update 是一次协作者执行产出的状态增量。
type Update struct {
	Fields   map[string]any
	Messages []Message
}

// State 保存合并后的分析状态。非并发安全，由协调器串行合并。
type State struct {
	fields   map[string]any
	messages []Message
}

func New() *State {
	return &State{fields: make(map[string]any)}
}

// FromFields 以初始字段构造状态（请求入参：symbol/timeframe 等）。
func FromFields(fields map[string]any) *State {
	st := New()
	for k, v := range fields {
		st.fields[k] = v
	}
	return st
}

// Apply 合并一个增量：字段后写覆盖，消息追加。
func (s *State) Apply(u Update) {
	for k, v := range u.Fields {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s.fields[k] = v
	}
	s.messages = append(s.messages, u.Messages...)
}

// Set 直接写入单个字段。
func (s *State) Set(key string, v any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s.fields[key] = v
}

func (s *State) Get(key string) (any, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// String 读取字符串字段；缺失或类型不符返回空串。
func (s *State) String(key string) string {
	v, ok := s.fields[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Float 读取数值字段，兼容字符串数字。
func (s *State) Float(key string) (float64, bool) {
	v, ok := s.fields[key]
	if !ok {
		return 0, false
	}
	return convert.ToFloat64Ok(v)
}

// Bool 读取布尔字段。
func (s *State) Bool(key string) bool {
	v, ok := s.fields[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Strings 读取字符串切片字段，兼容 []any。
func (s *State) Strings(key string) []string {
	v, ok := s.fields[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Report 读取协作者报告字段。纯文本字段视为成功报告。
func (s *State) Report(key string) (Outcome, bool) {
	v, ok := s.fields[key]
	if !ok {
		return Outcome{}, false
	}
	switch t := v.(type) {
	case Outcome:
		return t, true
	case string:
		return OK(t), true
	default:
		return Outcome{}, false
	}
}

// Messages 返回消息日志的副本。
func (s *State) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Fields 返回字段的浅拷贝（用于持久化/导出）。
func (s *State) Fields() map[string]any {
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}
