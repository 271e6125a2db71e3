package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"candlemind/internal/consensus"
	"candlemind/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return s
}

func sampleResult(trace string) consensus.Result {
	return consensus.Result{
		TraceID:    trace,
		StrategyID: "original",
		Models: []consensus.ModelResult{
			{ModelID: "alpha", Decision: "LONG", Confidence: 0.7},
		},
		Comparison: consensus.Comparison{
			Mode:       consensus.ModeSingle,
			ModelCount: 1,
			Consensus:  true,
		},
	}
}

func TestHistoryStore_SaveAndGetByRecordID(t *testing.T) {
	s := newTestStore(t)
	st := state.FromFields(map[string]any{
		state.KeyIndicatorReport: "指标正常",
		state.KeyLatestPrice:     100.0,
	})

	rec, err := s.Save(context.Background(), "btcusdt", "1h", st, sampleResult("trace-1"))
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	assert.Equal(t, "BTCUSDT", rec.Symbol)

	// analyze 响应里返回的是数字 record_id，必须能直接回查。
	byID, err := s.Get(context.Background(), fmt.Sprintf("%d", rec.ID))
	require.NoError(t, err)
	assert.Equal(t, "trace-1", byID.TraceID)
	assert.Equal(t, "LONG", byID.Decision)

	byTrace, err := s.Get(context.Background(), "trace-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byTrace.ID)
}

func TestHistoryStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "999")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = s.Get(context.Background(), "no-such-trace")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestHistoryStore_ListFiltersBySymbol(t *testing.T) {
	s := newTestStore(t)
	st := state.FromFields(map[string]any{state.KeyLatestPrice: 100.0})

	_, err := s.Save(context.Background(), "BTCUSDT", "1h", st, sampleResult("trace-a"))
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "ETHUSDT", "1h", st, sampleResult("trace-b"))
	require.NoError(t, err)

	records, err := s.List(context.Background(), HistoryQuery{Symbol: "ethusdt"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "trace-b", records[0].TraceID)
}
