package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"candlemind/internal/consensus"
	"candlemind/internal/state"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AnalysisRecord 持久化一次完整分析运行。结果与报告以 JSON 列存储。
type AnalysisRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TraceID    string         `gorm:"uniqueIndex;size:64" json:"trace_id"`
	Symbol     string         `gorm:"index;size:32" json:"symbol"`
	Timeframe  string         `gorm:"size:16" json:"timeframe"`
	StrategyID string         `gorm:"size:32" json:"strategy_id"`
	Mode       string         `gorm:"size:16" json:"mode"`
	Consensus  bool           `json:"consensus"`
	Decision   string         `gorm:"size:32" json:"decision"`
	Confidence float64        `json:"confidence"`
	Result     datatypes.JSON `json:"result"`
	Reports    datatypes.JSON `json:"reports"`
	Prompt     string         `gorm:"type:text" json:"prompt,omitempty"`
	ElapsedMs  int64          `json:"elapsed_ms"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (AnalysisRecord) TableName() string { return "analysis_runs" }

// HistoryStore 基于 Gorm + SQLite 保存分析历史。
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history store: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：保留少量并行度给 HTTP 查询，避免写锁竞争。
	sqlDB.SetMaxOpenConns(2)
	return &HistoryStore{db: db}, nil
}

// Save 把一次共识结果连同协作者报告写入历史。
func (s *HistoryStore) Save(ctx context.Context, symbol, timeframe string, st *state.State, res consensus.Result) (AnalysisRecord, error) {
	final := res.Final()
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("marshal result failed: %w", err)
	}
	reportsJSON, err := json.Marshal(exportReports(st))
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("marshal reports failed: %w", err)
	}
	rec := AnalysisRecord{
		TraceID:    res.TraceID,
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Timeframe:  timeframe,
		StrategyID: res.StrategyID,
		Mode:       res.Comparison.Mode,
		Consensus:  res.Comparison.Consensus,
		Decision:   final.Decision,
		Confidence: final.Confidence,
		Result:     resultJSON,
		Reports:    reportsJSON,
		Prompt:     final.Prompt,
		ElapsedMs:  res.TotalMs,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return AnalysisRecord{}, err
	}
	return rec, nil
}

// HistoryQuery 查询条件。
type HistoryQuery struct {
	Symbol string
	Limit  int
	Offset int
}

// List 按时间倒序返回分析记录。
func (s *HistoryStore) List(ctx context.Context, q HistoryQuery) ([]AnalysisRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	tx := s.db.WithContext(ctx).Model(&AnalysisRecord{}).Order("created_at DESC").Limit(limit)
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		tx = tx.Where("symbol = ?", sym)
	}
	var out []AnalysisRecord
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Get 取单条记录。纯数字按记录 ID 查（analyze 响应返回的 record_id），
// 其余按 TraceID 查。
func (s *HistoryStore) Get(ctx context.Context, id string) (AnalysisRecord, error) {
	id = strings.TrimSpace(id)
	var rec AnalysisRecord
	if n, err := strconv.ParseUint(id, 10, 32); err == nil {
		err = s.db.WithContext(ctx).First(&rec, uint(n)).Error
		return rec, err
	}
	err := s.db.WithContext(ctx).Where("trace_id = ?", id).First(&rec).Error
	return rec, err
}

// exportReports 抽取用于存档的状态切片（报告 + 消息），跳过图片等大字段。
func exportReports(st *state.State) map[string]any {
	if st == nil {
		return nil
	}
	out := make(map[string]any)
	for _, key := range []string{state.KeyIndicatorReport, state.KeyPatternReport, state.KeyTrendReport} {
		if outcome, ok := st.Report(key); ok {
			out[key] = outcome
		}
	}
	if price, ok := st.Float(state.KeyLatestPrice); ok {
		out[state.KeyLatestPrice] = price
	}
	out["messages"] = st.Messages()
	return out
}
