package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/cognia-ai/cognia/pkg/models"
)

// StartLoopRequest is the body of POST /api/loops.
type StartLoopRequest struct {
	AgentID   string `json:"agent_id"`
	ChannelID string `json:"channel_id"`
	Goal      string `json:"goal,omitempty"`
}

// StartLoopResponse is the reply to a successful loop start.
type StartLoopResponse struct {
	LoopID string `json:"loop_id"`
}

// StopLoopRequest is the optional body of DELETE /api/loops/:id.
type StopLoopRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SubmitObservationRequest is the body of POST /api/loops/:id/observations.
type SubmitObservationRequest struct {
	AgentID string         `json:"agent_id"`
	Source  string         `json:"source"`
	Content string         `json:"content,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (s *Server) startLoopHandler(c *echo.Context) error {
	var req StartLoopRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AgentID == "" || req.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id and channel_id are required")
	}

	loopID, err := s.loops.StartLoop(c.Request().Context(), req.AgentID, req.ChannelID, req.Goal)
	if err != nil {
		return mapLoopError(err)
	}
	return c.JSON(http.StatusCreated, StartLoopResponse{LoopID: loopID})
}

func (s *Server) getLoopHandler(c *echo.Context) error {
	snap, err := s.loops.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapLoopError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) stopLoopHandler(c *echo.Context) error {
	var req StopLoopRequest
	// Body is optional for DELETE.
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "stopped via API"
	}

	if err := s.loops.StopLoop(c.Request().Context(), c.Param("id"), req.Reason); err != nil {
		return mapLoopError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) submitObservationHandler(c *echo.Context) error {
	var req SubmitObservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AgentID == "" || req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id and source are required")
	}

	// The observation routes by owner agent; the :id path segment is the
	// loop being observed and must belong to that agent.
	loopID, owns := s.loops.LoopForAgent(req.AgentID)
	if !owns || loopID != c.Param("id") {
		return echo.NewHTTPError(http.StatusNotFound, "loop not found for agent")
	}

	err := s.loops.SubmitObservation(req.AgentID, models.Observation{
		AgentID: req.AgentID,
		Source:  req.Source,
		Content: req.Content,
		Data:    req.Data,
	})
	if err != nil {
		return mapLoopError(err)
	}
	return c.NoContent(http.StatusAccepted)
}
