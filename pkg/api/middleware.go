package api

import (
	echo "github.com/labstack/echo/v5"
)

// securityHeaders hardens the HTTP surface. This server fronts agent
// sockets and a JSON control API rather than a browser app, so the set is
// small: no framing, no MIME sniffing, no referrer leakage, and loop state
// responses are never cached.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
