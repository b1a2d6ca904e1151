// Package api exposes the HTTP surface: the WebSocket upgrade endpoint the
// bridge sits behind, health, and a minimal loop control API. The broader
// dashboard REST surface is an external collaborator.
package api

import (
	"context"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/cognia-ai/cognia/pkg/bridge"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/database"
	"github.com/cognia-ai/cognia/pkg/loop"
	"github.com/cognia-ai/cognia/pkg/tools"
)

// Server is the HTTP server over the bridge and the loop manager.
type Server struct {
	cfg         *config.BridgeConfig
	connManager *bridge.ConnectionManager
	auth        *bridge.Authenticator
	loops       *loop.Manager
	dbClient    *database.Client
	toolHealth  *tools.HealthMonitor
	logger      *slog.Logger

	echo *echo.Echo
	http *http.Server
}

// NewServer wires routes over the given components. dbClient and toolHealth
// may be nil; the health endpoint then skips those checks.
func NewServer(cfg *config.BridgeConfig, connManager *bridge.ConnectionManager,
	loops *loop.Manager, dbClient *database.Client, toolHealth *tools.HealthMonitor) *Server {

	s := &Server{
		cfg:         cfg,
		connManager: connManager,
		auth:        bridge.NewAuthenticator(cfg),
		loops:       loops,
		dbClient:    dbClient,
		toolHealth:  toolHealth,
		logger:      slog.Default().With("component", "api"),
	}

	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/healthz", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	g := e.Group("/api")
	g.POST("/loops", s.startLoopHandler)
	g.GET("/loops/:id", s.getLoopHandler)
	g.DELETE("/loops/:id", s.stopLoopHandler)
	g.POST("/loops/:id/observations", s.submitObservationHandler)

	s.echo = e
	s.http = &http.Server{Addr: cfg.Addr, Handler: e}
	return s
}

// Start serves until Shutdown. Blocks; returns http.ErrServerClosed on a
// clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
