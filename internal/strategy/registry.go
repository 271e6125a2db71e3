package strategy

import (
	"os"
	"sort"
	"strings"
	"sync"

	"candlemind/internal/logger"
)

// EnvStrategyOverride 环境变量可全局覆盖默认策略版本。
const EnvStrategyOverride = "CANDLEMIND_STRATEGY"

// Constructor 由 Config 构造策略实例，必须是纯函数。
type Constructor func(Config) *Strategy

// StatsCollector 在每次策略解析后收到通知（用于使用统计）。
type StatsCollector interface {
	RecordUse(id string)
}

// Registry 维护策略版本到构造器的映射。
// Resolve 永不失败：未知 ID 记录告警并退回默认版本。
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	defaultID    string
	stats        StatsCollector
	catalog      *Catalog
}

// NewRegistry 构造注册表；stats 与 catalog 均可为 nil。
func NewRegistry(defaultID string, stats StatsCollector, catalog *Catalog) *Registry {
	defaultID = strings.TrimSpace(defaultID)
	if defaultID == "" {
		defaultID = VersionOriginal
	}
	return &Registry{
		constructors: make(map[string]Constructor),
		defaultID:    defaultID,
		stats:        stats,
		catalog:      catalog,
	}
}

// NewDefaultRegistry 注册全部内置策略版本。
func NewDefaultRegistry(defaultID string, stats StatsCollector, catalog *Catalog) *Registry {
	r := NewRegistry(defaultID, stats, catalog)
	for _, id := range []string{VersionConstrained, VersionOriginal, VersionRelaxed, VersionComprehensive} {
		id := id
		r.Register(id, func(cfg Config) *Strategy { return New(id, cfg) })
	}
	return r
}

// Register 注册构造器；重复注册以后者为准并记录告警。
func (r *Registry) Register(id string, ctor Constructor) {
	id = strings.TrimSpace(id)
	if id == "" || ctor == nil {
		return
	}
	r.mu.Lock()
	if _, exists := r.constructors[id]; exists {
		logger.Warnf("策略 %s 重复注册，覆盖旧构造器", id)
	}
	r.constructors[id] = ctor
	r.mu.Unlock()
}

// ResolveID 确定生效的策略版本：请求覆盖 > 环境变量 > 配置默认。
func (r *Registry) ResolveID(override string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	if id := strings.TrimSpace(os.Getenv(EnvStrategyOverride)); id != "" {
		return id
	}
	return r.defaultID
}

// Resolve 按 ID 构造策略。未知 ID 告警后退回默认版本，永不返回错误。
func (r *Registry) Resolve(id string) *Strategy {
	id = strings.TrimSpace(id)
	r.mu.RLock()
	ctor, ok := r.constructors[id]
	if !ok {
		logger.Warnf("未知策略版本 %q，回退到默认版本 %s", id, r.defaultID)
		id = r.defaultID
		ctor = r.constructors[id]
	}
	r.mu.RUnlock()
	if ctor == nil {
		// 默认版本也未注册时退回硬编码的 original。
		logger.Errorf("默认策略 %s 未注册，使用内置 original", r.defaultID)
		id = VersionOriginal
		ctor = func(cfg Config) *Strategy { return New(VersionOriginal, cfg) }
	}
	cfg := Config{}
	if r.catalog != nil {
		if d, found := r.catalog.Descriptor(id); found {
			cfg.SystemPrompt = d.SystemPrompt
			cfg.Template = d.Template
		}
	}
	s := ctor(cfg)
	if r.stats != nil {
		r.stats.RecordUse(s.ID)
	}
	return s
}

// IDs 返回已注册的策略版本（有序）。
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DefaultID 返回配置的默认策略版本。
func (r *Registry) DefaultID() string { return r.defaultID }

// Validate 比对描述符与构造器：两侧不一致只产生告警，不阻断启动。
func (r *Registry) Validate() []string {
	var warnings []string
	registered := make(map[string]struct{})
	for _, id := range r.IDs() {
		registered[id] = struct{}{}
	}
	if _, ok := registered[r.defaultID]; !ok {
		warnings = append(warnings, "默认策略 "+r.defaultID+" 没有对应构造器")
	}
	if r.catalog != nil {
		described := make(map[string]struct{})
		for _, id := range r.catalog.IDs() {
			described[id] = struct{}{}
			if _, ok := registered[id]; !ok {
				warnings = append(warnings, "描述符 "+id+" 没有对应构造器")
			}
		}
		for id := range registered {
			if _, ok := described[id]; !ok {
				warnings = append(warnings, "策略 "+id+" 缺少描述符")
			}
		}
	}
	sort.Strings(warnings)
	for _, w := range warnings {
		logger.Warnf("策略注册表校验: %s", w)
	}
	return warnings
}

// UsageStats 默认的使用计数实现。
type UsageStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewUsageStats() *UsageStats {
	return &UsageStats{counts: make(map[string]int)}
}

func (u *UsageStats) RecordUse(id string) {
	u.mu.Lock()
	u.counts[id]++
	u.mu.Unlock()
}

// Snapshot 返回各策略版本的使用次数。
func (u *UsageStats) Snapshot() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}
