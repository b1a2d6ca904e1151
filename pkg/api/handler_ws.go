package api

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/cognia-ai/cognia/pkg/bridge"
)

// wsHandler authenticates the handshake and upgrades to WebSocket,
// delegating the connection lifecycle to the bridge.
func (s *Server) wsHandler(c *echo.Context) error {
	identity, err := s.auth.Authenticate(c.Request())
	if err != nil {
		var authErr *bridge.AuthError
		if errors.As(err, &authErr) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"type":   bridge.MsgAuthError,
				"reason": authErr.Reason,
			})
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}

	// Blocks until the socket closes.
	s.connManager.HandleConnection(c.Request().Context(), conn, identity)
	return nil
}
