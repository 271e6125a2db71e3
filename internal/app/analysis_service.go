package app

import (
	"context"
	"fmt"
	"strings"

	"candlemind/internal/config"
	"candlemind/internal/consensus"
	"candlemind/internal/logger"
	"candlemind/internal/orchestrator"
	"candlemind/internal/state"
	"candlemind/internal/store"
	"candlemind/internal/strategy"
	httpapi "candlemind/internal/transport/http"
)

// AnalysisService 执行完整分析流水线并存档。
type AnalysisService struct {
	cfg         *config.Config
	coordinator *orchestrator.Coordinator
	registry    *strategy.Registry
	history     *store.HistoryStore
}

func NewAnalysisService(cfg *config.Config, coordinator *orchestrator.Coordinator, registry *strategy.Registry, history *store.HistoryStore) *AnalysisService {
	return &AnalysisService{cfg: cfg, coordinator: coordinator, registry: registry, history: history}
}

// Analyze 实现 httpapi.AnalysisService。
func (s *AnalysisService) Analyze(ctx context.Context, req httpapi.AnalyzeRequest) (httpapi.AnalyzeResponse, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return httpapi.AnalyzeResponse{}, fmt.Errorf("symbol 不能为空")
	}
	timeframes := normalizeTimeframes(req.Timeframe, req.Timeframes)
	if len(timeframes) == 0 {
		return httpapi.AnalyzeResponse{}, fmt.Errorf("timeframe 不能为空")
	}

	st := state.FromFields(map[string]any{
		state.KeySymbol:    symbol,
		state.KeyTimeframe: timeframes[0],
	})
	if len(timeframes) > 1 {
		st.Set(state.KeyTimeframes, timeframes)
		st.Set(state.KeyMultiTimeframe, true)
	}

	dual := req.Dual || s.cfg.AI.DualEnabled
	spec := consensus.RunSpec{
		StrategyID: s.registry.ResolveID(req.Strategy),
		Primary:    s.cfg.AI.PrimaryModel,
		Secondary:  s.cfg.AI.SecondaryModel,
		Dual:       dual,
	}
	st, result := s.coordinator.Run(ctx, st, spec)

	resp := httpapi.AnalyzeResponse{Result: result}
	if s.history != nil {
		rec, err := s.history.Save(ctx, symbol, timeframes[0], st, result)
		if err != nil {
			// 存档失败不影响返回结果。
			logger.Errorf("分析记录存档失败 trace=%s err=%v", result.TraceID, err)
		} else {
			resp.RecordID = rec.ID
		}
	}
	return resp, nil
}

func normalizeTimeframes(single string, multi []string) []string {
	out := make([]string, 0, len(multi)+1)
	seen := make(map[string]struct{})
	push := func(tf string) {
		tf = strings.ToLower(strings.TrimSpace(tf))
		if tf == "" {
			return
		}
		if _, ok := seen[tf]; ok {
			return
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	for _, tf := range multi {
		push(tf)
	}
	push(single)
	return out
}
