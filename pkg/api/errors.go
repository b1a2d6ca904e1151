package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/cognia-ai/cognia/pkg/loop"
)

// mapLoopError maps loop manager errors to HTTP error responses.
func mapLoopError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, loop.ErrLoopNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "loop not found")
	case errors.Is(err, loop.ErrAgentHasLoop):
		return echo.NewHTTPError(http.StatusConflict, "agent already owns an active loop")
	case errors.Is(err, loop.ErrTooManyLoops):
		return echo.NewHTTPError(http.StatusTooManyRequests, "concurrent loop limit reached")
	case errors.Is(err, loop.ErrMailboxFull):
		return echo.NewHTTPError(http.StatusTooManyRequests, "loop mailbox is full, retry later")
	case errors.Is(err, loop.ErrLoopStopped):
		return echo.NewHTTPError(http.StatusConflict, "loop is stopped")
	}

	slog.Error("Unexpected loop manager error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
