package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveKnownVersions(t *testing.T) {
	r := NewDefaultRegistry("original", nil, nil)

	for _, id := range []string{VersionConstrained, VersionOriginal, VersionRelaxed, VersionComprehensive} {
		s := r.Resolve(id)
		require.NotNil(t, s)
		assert.Equal(t, id, s.ID)
		assert.NotEmpty(t, s.Template)
		assert.NotEmpty(t, s.SystemPrompt)
	}
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	r := NewDefaultRegistry("relaxed", nil, nil)

	s := r.Resolve("does-not-exist")
	require.NotNil(t, s)
	assert.Equal(t, "relaxed", s.ID)
}

func TestRegistry_ResolveID(t *testing.T) {
	r := NewDefaultRegistry("original", nil, nil)

	assert.Equal(t, "comprehensive", r.ResolveID("comprehensive"))
	assert.Equal(t, "original", r.ResolveID(""))
	assert.Equal(t, "original", r.ResolveID("   "))

	t.Setenv(EnvStrategyOverride, "constrained")
	assert.Equal(t, "constrained", r.ResolveID(""))
	// 请求级覆盖优先于环境变量。
	assert.Equal(t, "relaxed", r.ResolveID("relaxed"))
}

func TestRegistry_StatsCollector(t *testing.T) {
	stats := NewUsageStats()
	r := NewDefaultRegistry("original", stats, nil)

	r.Resolve("original")
	r.Resolve("original")
	r.Resolve("relaxed")
	r.Resolve("不存在的版本") // 回退也计入默认版本

	snap := stats.Snapshot()
	assert.Equal(t, 3, snap["original"])
	assert.Equal(t, 1, snap["relaxed"])
}

func TestRegistry_IDsSorted(t *testing.T) {
	r := NewDefaultRegistry("original", nil, nil)
	assert.Equal(t, []string{"comprehensive", "constrained", "original", "relaxed"}, r.IDs())
}

func TestRegistry_ValidateWarnsOnMissingDefault(t *testing.T) {
	r := NewRegistry("original", nil, nil)
	r.Register("only-one", func(cfg Config) *Strategy { return New("only-one", cfg) })

	warnings := r.Validate()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "original")
}

func TestRegistry_EmptyDefaultFallsBackToOriginal(t *testing.T) {
	r := NewDefaultRegistry("", nil, nil)
	assert.Equal(t, VersionOriginal, r.DefaultID())
}
