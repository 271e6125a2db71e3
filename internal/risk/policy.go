package risk

import "strings"

// Policy 描述风险参数的硬约束。所有百分比均为小数（0.003 = 0.3%）。
type Policy struct {
	FloorPct  float64            `json:"floor_pct"`
	RRLo      float64            `json:"rr_lo"`
	RRHi      float64            `json:"rr_hi"`
	VolFloors map[string]float64 `json:"vol_floors"`
}

// DefaultPolicy 返回默认风险参数。
func DefaultPolicy() Policy {
	return Policy{
		FloorPct: 0.003,
		RRLo:     1.3,
		RRHi:     1.8,
		VolFloors: map[string]float64{
			"low":    0.003,
			"medium": 0.005,
			"high":   0.008,
		},
	}
}

// withDefaults 补齐零值字段，保证任何来源的 Policy 都可直接使用。
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.FloorPct <= 0 {
		p.FloorPct = def.FloorPct
	}
	if p.RRLo <= 0 {
		p.RRLo = def.RRLo
	}
	if p.RRHi <= p.RRLo {
		p.RRHi = def.RRHi
	}
	if len(p.VolFloors) == 0 {
		p.VolFloors = def.VolFloors
	}
	return p
}

// MidRR 返回收益风险比区间的中点，用于模型未给出比例时的回退值。
func (p Policy) MidRR() float64 {
	return (p.RRLo + p.RRHi) / 2
}

// ClampRR 将比例收紧到 [RRLo, RRHi]。
func (p Policy) ClampRR(rr float64) float64 {
	if rr < p.RRLo {
		return p.RRLo
	}
	if rr > p.RRHi {
		return p.RRHi
	}
	return rr
}

// MinStopPct 根据波动率标签计算最小止损距离；未知标签退回全局下限。
func (p Policy) MinStopPct(volatilityLabel string) float64 {
	floor := p.FloorPct
	if v, ok := p.VolFloors[normalizeVolLabel(volatilityLabel)]; ok && v > floor {
		return v
	}
	return floor
}

func normalizeVolLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	switch label {
	case "低", "低波动":
		return "low"
	case "中", "中等", "中波动":
		return "medium"
	case "高", "高波动":
		return "high"
	}
	return label
}
