package httpapi

import (
	"context"
	"net/http"
	"time"

	"candlemind/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 包装 gin 引擎与底层 http.Server。
type Server struct {
	addr   string
	engine *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, router *Router) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := engine.Group("/api")
	router.Register(api)
	return &Server{addr: addr, engine: engine}
}

// Run 启动服务并阻塞到 ctx 结束。
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP 服务启动 addr=%s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
