// Package server owns the HTTP listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/container"
	"github.com/popforge/popforge-go/internal/presentation/http/routes"
	"github.com/popforge/popforge-go/pkg/config"
)

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	httpServer *http.Server
	deps       *container.Container
}

// New builds the router and the listener.
func New(deps *container.Container) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	routes.Register(router, deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", config.Port),
			Handler:      router,
			ReadTimeout:  config.ServerReadTimeout,
			WriteTimeout: config.ServerWriteTimeout,
			IdleTimeout:  config.ServerIdleTimeout,
		},
		deps: deps,
	}
}

// Start blocks serving traffic until the listener fails or closes.
func (s *Server) Start() error {
	s.deps.Logger.Startup().Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
