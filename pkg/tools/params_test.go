package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParamsEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, ParseParams(""))
	assert.Equal(t, map[string]any{}, ParseParams("   \n  "))
}

func TestParseParamsJSONObject(t *testing.T) {
	got := ParseParams(`{"path": "/tmp/x", "recursive": true}`)
	assert.Equal(t, map[string]any{"path": "/tmp/x", "recursive": true}, got)
}

func TestParseParamsJSONNonObjectWraps(t *testing.T) {
	assert.Equal(t, map[string]any{"input": []any{"a", "b"}}, ParseParams(`["a","b"]`))
	assert.Equal(t, map[string]any{"input": float64(42)}, ParseParams(`42`))
}

func TestParseParamsYAMLWithStructure(t *testing.T) {
	got := ParseParams("targets:\n  - web\n  - db\nmode: full")
	assert.Equal(t, []any{"web", "db"}, got["targets"])
	assert.Equal(t, "full", got["mode"])
}

func TestParseParamsKeyValuePairs(t *testing.T) {
	got := ParseParams("path: /tmp/x, retries=3, dry_run: true")
	assert.Equal(t, map[string]any{
		"path":    "/tmp/x",
		"retries": int64(3),
		"dry_run": true,
	}, got)
}

func TestParseParamsRawStringFallback(t *testing.T) {
	got := ParseParams("restart the ingestion service")
	assert.Equal(t, map[string]any{"input": "restart the ingestion service"}, got)
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, true, coerceValue("TRUE"))
	assert.Equal(t, nil, coerceValue("null"))
	assert.Equal(t, int64(7), coerceValue("7"))
	assert.Equal(t, 2.5, coerceValue("2.5"))
	assert.Equal(t, "plain", coerceValue("plain"))
}
