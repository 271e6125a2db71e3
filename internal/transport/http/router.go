package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"candlemind/internal/consensus"
	"candlemind/internal/logger"
	"candlemind/internal/store"
	"candlemind/internal/strategy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AnalyzeRequest 一次分析请求。Timeframes 给出多个周期时自动进入多周期模式。
type AnalyzeRequest struct {
	Symbol     string   `json:"symbol" binding:"required"`
	Timeframe  string   `json:"timeframe"`
	Timeframes []string `json:"timeframes"`
	Strategy   string   `json:"strategy"`
	Dual       bool     `json:"dual"`
}

// AnalyzeResponse 分析结果与存档 ID。
type AnalyzeResponse struct {
	Result   consensus.Result `json:"result"`
	RecordID uint             `json:"record_id,omitempty"`
}

// AnalysisService 由应用层实现：执行完整的 协作分析 -> 共识决策 -> 存档 流程。
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
}

// Router 暴露分析与查询接口。
type Router struct {
	Service  AnalysisService
	Registry *strategy.Registry
	Catalog  *strategy.Catalog
	Stats    *strategy.UsageStats
	History  *store.HistoryStore
}

func NewRouter(service AnalysisService, registry *strategy.Registry, catalog *strategy.Catalog, stats *strategy.UsageStats, history *store.HistoryStore) *Router {
	return &Router{Service: service, Registry: registry, Catalog: catalog, Stats: stats, History: history}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/analyze", r.handleAnalyze)
	group.GET("/strategies", r.handleStrategies)
	group.GET("/history", r.handleHistory)
	group.GET("/history/:id", r.handleHistoryDetail)
}

func (r *Router) handleAnalyze(c *gin.Context) {
	if r.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "分析服务未启用"})
		return
	}
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	start := time.Now()
	resp, err := r.Service.Analyze(c.Request.Context(), req)
	if err != nil {
		logger.Errorf("[api] analyze failed symbol=%s ip=%s err=%v", req.Symbol, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] analyze symbol=%s strategy=%s dual=%t decision=%s elapsed=%s",
		req.Symbol, resp.Result.StrategyID, req.Dual, resp.Result.Final().Decision, time.Since(start).Truncate(time.Millisecond))
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleStrategies(c *gin.Context) {
	out := gin.H{}
	if r.Registry != nil {
		out["registered"] = r.Registry.IDs()
		out["default"] = r.Registry.DefaultID()
	}
	if r.Catalog != nil {
		snap := r.Catalog.Snapshot()
		out["descriptors"] = snap.Descriptors
		out["catalog_version"] = snap.Version
	}
	if r.Stats != nil {
		out["usage"] = r.Stats.Snapshot()
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "历史存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := r.History.List(c.Request.Context(), store.HistoryQuery{
		Symbol: c.Query("symbol"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Errorf("[api] history list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (r *Router) handleHistoryDetail(c *gin.Context) {
	if r.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "历史存储未启用"})
		return
	}
	rec, err := r.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
