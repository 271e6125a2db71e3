package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AIConfig) validate() error {
	enabled := 0
	ids := make(map[string]struct{}, len(a.Models))
	for _, m := range a.Models {
		if !m.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("ai.models contains entry without model (id=%s)", m.ID)
		}
		if strings.TrimSpace(m.APIURL) == "" {
			return fmt.Errorf("ai.models.%s missing api_url", m.ID)
		}
		if id := strings.TrimSpace(m.ID); id != "" {
			ids[strings.ToLower(id)] = struct{}{}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("ai.models requires at least one enabled model")
	}
	for key, ref := range map[string]string{
		"ai.primary_model":   a.PrimaryModel,
		"ai.secondary_model": a.SecondaryModel,
		"ai.pattern_model":   a.PatternModel,
		"ai.trend_model":     a.TrendModel,
	} {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, ok := ids[strings.ToLower(ref)]; !ok {
			return fmt.Errorf("%s references unconfigured model id: %s", key, ref)
		}
	}
	if a.DualEnabled && strings.TrimSpace(a.SecondaryModel) == "" {
		return fmt.Errorf("ai.dual_enabled requires ai.secondary_model")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.FloorPct <= 0 || r.FloorPct >= 1 {
		return fmt.Errorf("risk.floor_pct must be in (0, 1)")
	}
	if r.RRLo <= 0 || r.RRHi <= r.RRLo {
		return fmt.Errorf("risk.rr_lo/rr_hi must satisfy 0 < rr_lo < rr_hi")
	}
	for label, v := range r.VolFloors {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("risk.vol_floors.%s must be in (0, 1)", label)
		}
	}
	return nil
}

func (o *OrchestratorConfig) validate() error {
	for _, v := range o.StartOffsetsSeconds {
		if v < 0 {
			return fmt.Errorf("orchestrator.start_offsets_seconds must be >= 0")
		}
	}
	if o.DualStaggerSeconds < 0 {
		return fmt.Errorf("orchestrator.dual_stagger_seconds must be >= 0")
	}
	return nil
}
