// Package api is MLM's HTTP surface: model lifecycle control, health, and
// the chat/tool-orchestration endpoint. Adapted from tarsy's pkg/api
// (pkg/api/server.go) onto gin instead of echo v5 — gin is the framework
// actually declared in tarsy's go.mod and instantiated in cmd/tarsy/main.go;
// tarsy's echo-based handlers are a dependency the module never resolves.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/mlm/pkg/events"
	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/tool"
)

// Server is MLM's HTTP API: lifecycle control, health, and chat.
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	engine         *lifecycle.Engine
	events         *events.Manager
	orchestrator   *tool.Orchestrator
	allowedOrigins []string
}

// NewServer builds the router and registers every route. eventsManager and
// orchestrator may be nil — the WebSocket and chat routes are then left
// unregistered and unwired respectively.
func NewServer(engine *lifecycle.Engine, eventsManager *events.Manager, orchestrator *tool.Orchestrator, allowedOrigins []string) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders(), cors(allowedOrigins))

	s := &Server{
		router:         router,
		engine:         engine,
		events:         eventsManager,
		orchestrator:   orchestrator,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	models := s.router.Group("/api/models")
	models.GET("", s.listModels)
	models.GET("/:id", s.getModel)
	models.POST("/:id/start", s.startModel)
	models.POST("/:id/stop", s.stopModel)
	models.GET("/:id/health-history", s.healthHistory)

	s.router.POST("/v1/chat/completions", s.chatCompletions)

	if s.events != nil {
		s.router.GET("/ws", s.streamModelStatus)
	}
}

// Handler returns the underlying http.Handler, for use with httptest or a
// custom http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server on addr until ctx is cancelled, then shuts
// down gracefully within shutdownTimeout.
func (s *Server) Start(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
