package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cognia-ai/cognia/pkg/cogerr"
)

// schemaCache compiles each tool's input schema once and reuses it across
// executions. Keyed by the schema's raw bytes so a re-registered tool with a
// changed schema compiles fresh.
type schemaCache struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{compiled: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) get(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)

	c.mu.RLock()
	sch, ok := c.compiled[key]
	c.mu.RUnlock()
	if ok {
		return sch, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable tool schema: %v", cogerr.ErrSchemaViolation, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.schema.json", doc); err != nil {
		return nil, fmt.Errorf("%w: %v", cogerr.ErrSchemaViolation, err)
	}
	sch, err = compiler.Compile("tool.schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: uncompilable tool schema: %v", cogerr.ErrSchemaViolation, err)
	}

	c.mu.Lock()
	c.compiled[key] = sch
	c.mu.Unlock()
	return sch, nil
}

// validateSchema checks params against the tool's input schema. A tool with
// no schema accepts anything.
func (c *schemaCache) validate(raw json.RawMessage, params map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	sch, err := c.get(raw)
	if err != nil {
		return err
	}

	// Round-trip so typed values (json.Number vs float64) normalize the way
	// the schema library expects.
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: unmarshalable params: %v", cogerr.ErrSchemaViolation, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(encoded)))
	if err != nil {
		return fmt.Errorf("%w: %v", cogerr.ErrSchemaViolation, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", cogerr.ErrSchemaViolation, err)
	}
	return nil
}

// schemaInfo extracts the property types and required fields a correction
// strategy needs. Best-effort: a schema the extractor cannot read yields
// empty maps and the strategies simply find nothing to do.
type schemaInfo struct {
	// propertyTypes maps field name → JSON type ("string", "number", ...).
	propertyTypes map[string]string
	required      []string
}

func extractSchemaInfo(raw json.RawMessage) schemaInfo {
	info := schemaInfo{propertyTypes: make(map[string]string)}
	if len(raw) == 0 {
		return info
	}

	var doc struct {
		Properties map[string]struct {
			Type any `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return info
	}

	for name, prop := range doc.Properties {
		switch t := prop.Type.(type) {
		case string:
			info.propertyTypes[name] = t
		case []any:
			// Union types: take the first concrete type.
			for _, alt := range t {
				if s, ok := alt.(string); ok && s != "null" {
					info.propertyTypes[name] = s
					break
				}
			}
		}
	}
	info.required = doc.Required
	return info
}
