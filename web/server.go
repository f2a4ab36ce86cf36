package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/logging"
)

// Server 是基于 gin 的 HTTP 托管服务
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger logging.Logger

	mu        sync.Mutex
	address   string
	ready     chan struct{}
	readyOnce sync.Once
}

func newServer(addr string, engine *gin.Engine, logger logging.Logger) *Server {
	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Name 实现 hosting.NamedService
func (s *Server) Name() string {
	return "web"
}

// Engine 返回 gin 引擎
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ServeHTTP 直接交给 gin 引擎处理，便于使用 httptest 测试
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Ready 在开始监听（或监听失败）后关闭
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Address 获取实际监听地址 (e.g., "[::]:50234")，仅在 Ready 之后有效
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Start 监听端口并阻塞提供服务，直到 Stop 被调用
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.markReady()
		return fmt.Errorf("web: 监听 %s 失败: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.address = ln.Addr().String()
	s.mu.Unlock()
	s.markReady()

	s.logger.Info("Web server started", logging.Field{Key: "address", Value: ln.Addr().String()})

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown web server gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	s.logger.Info("Web server stopped")
	return nil
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() {
		close(s.ready)
	})
}
