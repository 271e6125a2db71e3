package strategy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"candlemind/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Descriptor 描述一个策略版本的元数据（面向 API 与提示词覆盖）。
type Descriptor struct {
	ID              string   `mapstructure:"id" yaml:"id"`
	Name            string   `mapstructure:"name" yaml:"name"`
	Description     string   `mapstructure:"description" yaml:"description"`
	SystemPrompt    string   `mapstructure:"system_prompt" yaml:"system_prompt"`
	Template        string   `mapstructure:"template" yaml:"template"`
	Characteristics []string `mapstructure:"characteristics" yaml:"characteristics"`
}

// FileConfig 映射 strategies.yaml。
type FileConfig struct {
	Strategies map[string]Descriptor `mapstructure:"strategies" yaml:"strategies"`
}

// Snapshot 公开的描述符快照。
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	Descriptors map[string]Descriptor
}

// Catalog 管理策略描述符文件并监听更新。构造器不热更，
// 文件变更只影响描述符元数据（名称/说明/提示词覆盖）。
type Catalog struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewCatalog 读取描述符文件并监听更新。
func NewCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy catalog requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy catalog failed: %w", err)
	}
	c := &Catalog{path: path, v: v}
	if err := c.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := c.reload(); err != nil {
			logger.Errorf("strategy catalog reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return c, nil
}

func (c *Catalog) reload() error {
	cfg, err := readCatalogFile(c.path)
	if err != nil {
		return err
	}
	descriptors := make(map[string]Descriptor, len(cfg.Strategies))
	for name, d := range cfg.Strategies {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			d.ID = strings.TrimSpace(name)
		}
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			d.Name = d.ID
		}
		descriptors[d.ID] = d
	}
	c.mu.Lock()
	c.snapshot = Snapshot{
		Version:     c.snapshot.Version + 1,
		LoadedAt:    time.Now(),
		Descriptors: descriptors,
	}
	c.mu.Unlock()
	logger.Infof("策略描述符已加载 count=%d file=%s", len(descriptors), filepath.Base(c.path))
	return nil
}

// Snapshot 返回当前描述符集。
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dst := Snapshot{
		Version:     c.snapshot.Version,
		LoadedAt:    c.snapshot.LoadedAt,
		Descriptors: make(map[string]Descriptor, len(c.snapshot.Descriptors)),
	}
	for id, d := range c.snapshot.Descriptors {
		dst.Descriptors[id] = d
	}
	return dst
}

// Descriptor 按 ID 查找描述符。
func (c *Catalog) Descriptor(id string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.snapshot.Descriptors[strings.TrimSpace(id)]
	return d, ok
}

// IDs 返回有序的描述符 ID 列表。
func (c *Catalog) IDs() []string {
	snap := c.Snapshot()
	out := make([]string, 0, len(snap.Descriptors))
	for id := range snap.Descriptors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func readCatalogFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read strategy catalog failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy catalog failed: %w", err)
	}
	return cfg, nil
}
