package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ApplyLastWriteWins(t *testing.T) {
	st := New()
	st.Apply(Update{Fields: map[string]any{"a": 1, "b": "x"}})
	st.Apply(Update{Fields: map[string]any{"a": 2}})

	v, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, "x", st.String("b"))
}

func TestState_MessagesAppendInOrder(t *testing.T) {
	st := New()
	st.Apply(Update{Messages: []Message{{Role: "system", Name: "indicator", Content: "一"}}})
	st.Apply(Update{Messages: []Message{
		{Role: "system", Name: "pattern", Content: "二"},
		{Role: "system", Name: "trend", Content: "三"},
	}})

	msgs := st.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "一", msgs[0].Content)
	assert.Equal(t, "二", msgs[1].Content)
	assert.Equal(t, "三", msgs[2].Content)
}

func TestState_FloatCoercesStrings(t *testing.T) {
	st := FromFields(map[string]any{"price": "123.45", "count": 7})

	price, ok := st.Float("price")
	require.True(t, ok)
	assert.Equal(t, 123.45, price)

	count, ok := st.Float("count")
	require.True(t, ok)
	assert.Equal(t, 7.0, count)

	_, ok = st.Float("missing")
	assert.False(t, ok)
}

func TestState_StringsHandlesAnySlice(t *testing.T) {
	st := FromFields(map[string]any{
		"typed": []string{"1h", "4h"},
		"loose": []any{"15m", "1h", 42},
	})

	assert.Equal(t, []string{"1h", "4h"}, st.Strings("typed"))
	assert.Equal(t, []string{"15m", "1h"}, st.Strings("loose"))
	assert.Nil(t, st.Strings("missing"))
}

func TestState_ReportOutcome(t *testing.T) {
	st := New()
	st.Set("good", OK("一切正常"))
	st.Set("bad", Failed("上游超时"))
	st.Set("plain", "纯文本也算成功报告")

	good, ok := st.Report("good")
	require.True(t, ok)
	assert.False(t, good.IsFailure())
	assert.Equal(t, "一切正常", good.ReportText())

	bad, ok := st.Report("bad")
	require.True(t, ok)
	assert.True(t, bad.IsFailure())
	assert.Equal(t, "上游超时", bad.FailReason())

	plain, ok := st.Report("plain")
	require.True(t, ok)
	assert.False(t, plain.IsFailure())

	_, ok = st.Report("missing")
	assert.False(t, ok)
}

func TestOutcome_FailureSurvivesJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Failed("网络错误"))
	require.NoError(t, err)

	var back Outcome
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.IsFailure())
	assert.Equal(t, "网络错误", back.FailReason())
}

func TestState_FieldsIsCopy(t *testing.T) {
	st := FromFields(map[string]any{"a": 1})
	dump := st.Fields()
	dump["a"] = 99

	v, _ := st.Get("a")
	assert.Equal(t, 1, v)
}
