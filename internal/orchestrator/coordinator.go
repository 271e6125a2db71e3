package orchestrator

import (
	"context"
	"fmt"
	"time"

	"candlemind/internal/consensus"
	"candlemind/internal/logger"
	"candlemind/internal/state"

	"golang.org/x/sync/errgroup"
)

// 中文说明：
// 协调器把三路分析协作者放进固定 3 工位的池子里错峰启动（0/5/8 秒），
// 全部完成后按提交顺序合并状态，再进入决策阶段。单路失败只隔离该路，
// 对应报告字段落为失败标记，流程继续。

// 合并后写回状态的决策字段。
const (
	KeyFinalDecision  = "final_trade_decision"
	KeyDecisionPrompt = "decision_prompt"
)

// DefaultStartOffsets 三个协作者的默认启动偏移。
var DefaultStartOffsets = []time.Duration{0, 5 * time.Second, 8 * time.Second}

const poolSize = 3

// Collaborator 是一路独立的分析协作者。
type Collaborator interface {
	Name() string
	// ReportKey 是该协作者报告在共享状态中的字段键。
	ReportKey() string
	Analyze(ctx context.Context, st *state.State) (state.Update, error)
}

// Coordinator 编排协作者与决策阶段。
type Coordinator struct {
	collaborators []Collaborator
	offsets       []time.Duration
	engine        *consensus.Engine
}

func NewCoordinator(collaborators []Collaborator, offsets []time.Duration, engine *consensus.Engine) *Coordinator {
	if len(offsets) == 0 {
		offsets = DefaultStartOffsets
	}
	return &Coordinator{collaborators: collaborators, offsets: offsets, engine: engine}
}

type collabOutcome struct {
	update state.Update
	err    error
}

// Run 执行完整流水线：错峰并行分析 -> 顺序合并 -> 共识决策 -> 决策回写。
// 注意：本阶段不做单路超时与取消，慢协作者会拖慢整轮（已知限制）。
func (c *Coordinator) Run(ctx context.Context, st *state.State, spec consensus.RunSpec) (*state.State, consensus.Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	if st == nil {
		st = state.New()
	}

	outcomes := make([]collabOutcome, len(c.collaborators))
	eg := &errgroup.Group{}
	eg.SetLimit(poolSize)
	for i, collab := range c.collaborators {
		i, collab := i, collab
		offset := c.offsetFor(i)
		eg.Go(func() error {
			if offset > 0 {
				select {
				case <-ctx.Done():
					outcomes[i] = collabOutcome{err: ctx.Err()}
					return nil
				case <-time.After(offset):
				}
			}
			start := time.Now()
			update, err := safeAnalyze(ctx, collab, st)
			if err != nil {
				logger.Warnf("协作者 %s 失败 elapsed=%s err=%v", collab.Name(), time.Since(start).Truncate(time.Millisecond), err)
			} else {
				logger.Debugf("协作者 %s 完成 elapsed=%s", collab.Name(), time.Since(start).Truncate(time.Millisecond))
			}
			outcomes[i] = collabOutcome{update: update, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	// 按提交顺序合并：字段后写覆盖，消息顺序追加；失败路写入失败标记。
	for i, collab := range c.collaborators {
		oc := outcomes[i]
		if oc.err != nil {
			st.Apply(state.Update{
				Fields: map[string]any{collab.ReportKey(): state.Failed(oc.err.Error())},
				Messages: []state.Message{
					{Role: "system", Name: collab.Name(), Content: fmt.Sprintf("%s 分析失败: %v", collab.Name(), oc.err)},
				},
			})
			continue
		}
		st.Apply(oc.update)
	}

	var result consensus.Result
	if c.engine != nil {
		result = c.engine.Run(ctx, st, spec)
		final := result.Final()
		st.Apply(state.Update{
			Fields: map[string]any{
				KeyFinalDecision:  final.Decision,
				KeyDecisionPrompt: final.Prompt,
			},
			Messages: []state.Message{
				{Role: "assistant", Name: result.StrategyID, Content: final.RawOutput},
			},
		})
	}
	return st, result
}

func (c *Coordinator) offsetFor(i int) time.Duration {
	if i < len(c.offsets) {
		return c.offsets[i]
	}
	if len(c.offsets) == 0 {
		return 0
	}
	return c.offsets[len(c.offsets)-1]
}

// safeAnalyze 把协作者 panic 折叠为普通错误，保证单路崩溃不拖垮整轮。
func safeAnalyze(ctx context.Context, collab Collaborator, st *state.State) (update state.Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", collab.Name(), r)
		}
	}()
	return collab.Analyze(ctx, st)
}
