package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cognia-ai/cognia/pkg/cogerr"
)

// schemaSources maps each event name to the JSON Schema its data block must
// satisfy. Schemas are table-driven and compiled once at package init;
// emitting an event whose payload does not validate fails fast with
// ErrSchemaViolation.
var schemaSources = map[Name]string{
	EventObservation: `{
		"type": "object",
		"required": ["loop_id", "observation"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"observation": {
				"type": "object",
				"required": ["id", "source"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"agent_id": {"type": "string"},
					"source": {"type": "string", "minLength": 1},
					"timestamp": {"type": "string"}
				}
			}
		}
	}`,

	EventReasoning: `{
		"type": "object",
		"required": ["loop_id", "reasoning"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"reasoning": {
				"type": "object",
				"required": ["reasoning_id", "analysis"],
				"properties": {
					"reasoning_id": {"type": "string", "minLength": 1},
					"analysis": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"enhanced": {"type": "boolean"}
				}
			}
		}
	}`,

	EventPlan: `{
		"type": "object",
		"required": ["loop_id", "plan"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"plan": {
				"type": "object",
				"required": ["plan_id", "actions"],
				"properties": {
					"plan_id": {"type": "string", "minLength": 1},
					"reasoning_id": {"type": "string"},
					"goal": {"type": "string"},
					"actions": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["id", "status"],
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"description": {"type": "string"},
								"tool": {"type": "string"},
								"priority": {"type": "integer"},
								"status": {"enum": ["pending", "in_progress", "completed", "failed", "skipped"]}
							}
						}
					}
				}
			}
		}
	}`,

	EventAction: `{
		"type": "object",
		"required": ["loop_id", "action", "status"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"action": {
				"type": "object",
				"required": ["id"],
				"properties": {"id": {"type": "string", "minLength": 1}}
			},
			"status": {"enum": ["pending", "in_progress", "completed", "failed", "skipped"]}
		}
	}`,

	EventExecution: `{
		"type": "object",
		"required": ["loop_id", "action"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"action": {
				"type": "object",
				"required": ["id"],
				"properties": {"id": {"type": "string", "minLength": 1}}
			}
		}
	}`,

	EventReflection: `{
		"type": "object",
		"required": ["loop_id", "context"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"context": {
				"type": "object",
				"required": ["reflection"],
				"properties": {
					"reflection": {
						"type": "object",
						"required": ["reflection_id", "plan_id", "success", "learning_signals"],
						"properties": {
							"reflection_id": {"type": "string", "minLength": 1},
							"plan_id": {"type": "string", "minLength": 1},
							"success": {"type": "boolean"},
							"learning_signals": {
								"type": "object",
								"required": ["reward"],
								"properties": {
									"reward": {"type": "number", "minimum": -1, "maximum": 1},
									"confidence": {"type": "number", "minimum": 0, "maximum": 1}
								}
							}
						}
					}
				}
			}
		}
	}`,

	EventInitialize: `{
		"type": "object",
		"required": ["loop_id", "config", "status"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"config": {"type": "object"},
			"status": {"const": "initializing"}
		}
	}`,

	EventStarted: `{
		"type": "object",
		"required": ["loop_id", "status"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"status": {"const": "starting"}
		}
	}`,

	EventStopped: `{
		"type": "object",
		"required": ["loop_id", "status", "context"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"status": {"const": "stopping"},
			"context": {
				"type": "object",
				"required": ["reason"],
				"properties": {"reason": {"type": "string"}}
			}
		}
	}`,

	EventHint: `{
		"type": "object",
		"required": ["loop_id", "metadata"],
		"properties": {
			"loop_id": {"type": "string", "minLength": 1},
			"metadata": {"type": "object"}
		}
	}`,

	EventViolation: `{
		"type": "object",
		"required": ["loop_id", "tool_name", "kind"],
		"properties": {
			"loop_id": {"type": "string"},
			"tool_name": {"type": "string", "minLength": 1},
			"phase": {"type": "string"},
			"kind": {"enum": ["phase_violation", "circuit_open"]},
			"message": {"type": "string"}
		}
	}`,

	EventAgentStatus: `{
		"type": "object",
		"required": ["agent_id", "status"],
		"properties": {
			"agent_id": {"type": "string", "minLength": 1},
			"status": {"enum": ["registered", "connected", "active", "paused", "disconnected"]}
		}
	}`,
}

// schemas holds the compiled schema per event name, built at package init.
var schemas = compileSchemas()

func compileSchemas() map[Name]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	compiled := make(map[Name]*jsonschema.Schema, len(schemaSources))
	for name, src := range schemaSources {
		url := string(name) + ".schema.json"
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			panic(fmt.Sprintf("events: invalid schema source for %s: %v", name, err))
		}
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("events: add schema resource for %s: %v", name, err))
		}
	}
	for name := range schemaSources {
		url := string(name) + ".schema.json"
		sch, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("events: compile schema for %s: %v", name, err))
		}
		compiled[name] = sch
	}
	return compiled
}

// ValidateData validates an event data block against the schema registered
// for the event name. Data may be a typed payload struct or a decoded wire
// map; both pass through a JSON round trip before validation.
func ValidateData(name Name, data any) error {
	sch, ok := schemas[name]
	if !ok {
		return fmt.Errorf("%w: no schema registered for event %q", cogerr.ErrSchemaViolation, name)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %s: unmarshalable data: %v", cogerr.ErrSchemaViolation, name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", cogerr.ErrSchemaViolation, name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", cogerr.ErrSchemaViolation, name, err)
	}
	return nil
}
