package validation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

const writeFileSchema = `{
	"type": "object",
	"required": ["path", "content"],
	"properties": {
		"path": {"type": "string"},
		"content": {"type": "string"}
	}
}`

func writeFileTool(risk models.RiskLevel) models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "write_file",
		Source:      models.ToolInternal,
		InputSchema: json.RawMessage(writeFileSchema),
		RiskLevel:   risk,
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return NewPipeline(config.DefaultValidationConfig(), nil)
}

func TestValidatePassesValidPayload(t *testing.T) {
	p := newTestPipeline(t)

	params := map[string]any{"path": "/tmp/x", "content": "hello"}
	out, err := p.Validate(context.Background(), writeFileTool(models.RiskMedium), "ops", params)
	require.NoError(t, err)
	assert.Equal(t, params, out)
}

func TestValidateCoercesNumberToString(t *testing.T) {
	p := newTestPipeline(t)

	// content arrives as a number where the schema wants a string
	out, err := p.Validate(context.Background(), writeFileTool(models.RiskMedium), "ops",
		map[string]any{"path": "/tmp/x", "content": float64(12345)})
	require.NoError(t, err)
	assert.Equal(t, "12345", out["content"])
}

func TestValidateFiltersUnknownProperties(t *testing.T) {
	p := newTestPipeline(t)

	schema := `{
		"type": "object",
		"required": ["path"],
		"additionalProperties": false,
		"properties": {"path": {"type": "string"}}
	}`
	desc := writeFileTool(models.RiskMedium)
	desc.InputSchema = json.RawMessage(schema)

	out, err := p.Validate(context.Background(), desc, "ops",
		map[string]any{"path": "/tmp/x", "debug": true})
	require.NoError(t, err)
	assert.NotContains(t, out, "debug")
}

func TestValidateInfersMissingRequiredFromPatterns(t *testing.T) {
	p := newTestPipeline(t)
	desc := writeFileTool(models.RiskMedium)

	// Teach the store a consistent successful shape
	for i := 0; i < 10; i++ {
		p.RecordOutcome(desc, "ops", map[string]any{"path": "/srv/out.log", "content": "x"}, true)
	}

	out, err := p.Validate(context.Background(), desc, "ops", map[string]any{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/out.log", out["path"])
}

func TestValidateExhaustsCorrections(t *testing.T) {
	p := newTestPipeline(t)

	// Nothing to coerce, no patterns, nothing to filter: uncorrectable
	_, err := p.Validate(context.Background(), writeFileTool(models.RiskMedium), "ops",
		map[string]any{"path": 42})
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrCorrectionExhausted)
	assert.ErrorIs(t, err, cogerr.ErrSchemaViolation)
}

func TestValidateAsyncNeverBlocks(t *testing.T) {
	p := newTestPipeline(t)

	// Invalid payload on a low-risk tool is admitted unchanged
	params := map[string]any{"nonsense": true}
	out, err := p.Validate(context.Background(), writeFileTool(models.RiskLow), "ops", params)
	require.NoError(t, err)
	assert.Equal(t, params, out)
}

func TestValidateStrictRunsSemanticRules(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Validate(context.Background(), writeFileTool(models.RiskHigh), "ops",
		map[string]any{"path": "/srv/../etc/passwd", "content": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrSchemaViolation)
	assert.Contains(t, err.Error(), "traversal")
}

func TestValidateBlockingSkipsSemanticRules(t *testing.T) {
	p := newTestPipeline(t)

	// Same traversal payload passes at blocking level: semantic rules are
	// strict-only
	out, err := p.Validate(context.Background(), writeFileTool(models.RiskMedium), "ops",
		map[string]any{"path": "/srv/../etc/passwd", "content": "x"})
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestLevelForRisk(t *testing.T) {
	assert.Equal(t, LevelAsync, LevelForRisk(models.RiskLow))
	assert.Equal(t, LevelBlocking, LevelForRisk(models.RiskMedium))
	assert.Equal(t, LevelStrict, LevelForRisk(models.RiskHigh))
	assert.Equal(t, LevelStrict, LevelForRisk(models.RiskCritical))
}
