package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/bridge"
	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/loop"
	"github.com/cognia-ai/cognia/pkg/models"
)

type stubLLM struct{}

func (stubLLM) Reason(_ context.Context, _ string, observations []models.Observation, _ []string) (models.Reasoning, error) {
	return models.Reasoning{ReasoningID: "r1", Analysis: "ok", Confidence: 0.9, Enhanced: true}, nil
}

func (stubLLM) BuildPlan(_ context.Context, _ string, reasoning models.Reasoning, _ []models.ToolDescriptor) (models.Plan, error) {
	return models.Plan{PlanID: "p1", ReasoningID: reasoning.ReasoningID}, nil
}

func (stubLLM) Reflect(_ context.Context, _ models.Plan, _ models.ReflectionMetrics) ([]string, []string, error) {
	return nil, nil, nil
}

type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, _ string, _ models.Phase, _ string, _ map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

type stubLister struct{}

func (stubLister) ListAvailable(_ string, _ models.Phase) []models.ToolDescriptor { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eventBus := bus.New()
	t.Cleanup(eventBus.Close)

	loops := loop.NewManager(config.DefaultLoopConfig(), eventBus,
		stubLLM{}, stubExecutor{}, stubLister{}, nil)
	t.Cleanup(func() { _ = loops.Shutdown(context.Background()) })

	cfg := config.DefaultBridgeConfig()
	connManager := bridge.NewConnectionManager(cfg, eventBus, 16, nil)
	t.Cleanup(connManager.Close)

	return NewServer(cfg, connManager, loops, nil, nil)
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestStartLoopHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/loops",
		`{"agent_id":"agent-1","channel_id":"ops","goal":"keep tidy"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp StartLoopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.LoopID)

	// Second start for the same agent conflicts.
	rec = doRequest(t, s, http.MethodPost, "/api/loops",
		`{"agent_id":"agent-1","channel_id":"ops"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartLoopHandler_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/loops", `{"agent_id":"agent-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/loops", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLoopHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/loops",
		`{"agent_id":"agent-1","channel_id":"ops"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created StartLoopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodGet, "/api/loops/"+created.LoopID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.Loop
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, created.LoopID, snap.LoopID)
	assert.Equal(t, "agent-1", snap.OwnerAgentID)

	rec = doRequest(t, s, http.MethodGet, "/api/loops/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopLoopHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/loops",
		`{"agent_id":"agent-1","channel_id":"ops"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created StartLoopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodDelete, "/api/loops/"+created.LoopID,
		`{"reason":"operator request"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/loops/"+created.LoopID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitObservationHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/loops",
		`{"agent_id":"agent-1","channel_id":"ops"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created StartLoopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodPost, "/api/loops/"+created.LoopID+"/observations",
		`{"agent_id":"agent-1","source":"agent","content":"disk full"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Wrong owner: the loop id does not belong to agent-2.
	rec = doRequest(t, s, http.MethodPost, "/api/loops/"+created.LoopID+"/observations",
		`{"agent_id":"agent-2","source":"agent","content":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzWithoutDatabase(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusHealthy, resp.Status)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestWSHandlerRejectsUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	// Dev-mode auth still requires an agent id.
	rec := doRequest(t, s, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, bridge.ReasonMissingAgentID, resp["reason"])
}
