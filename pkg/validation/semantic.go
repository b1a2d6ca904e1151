package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cognia-ai/cognia/pkg/cogerr"
)

// SemanticRule checks one domain constraint the JSON schema cannot express:
// path safety, size bounds, cross-field consistency. Rules run only at the
// strict level.
type SemanticRule func(params map[string]any) error

// RuleSet holds per-tool semantic rules plus global rules applied to every
// strict-level execution.
type RuleSet struct {
	mu      sync.RWMutex
	global  []SemanticRule
	perTool map[string][]SemanticRule
}

// NewRuleSet creates a rule set preloaded with the built-in global rules.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		global:  []SemanticRule{PathTraversalRule, OversizePayloadRule},
		perTool: make(map[string][]SemanticRule),
	}
}

// AddRule registers a rule for one tool.
func (r *RuleSet) AddRule(toolName string, rule SemanticRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perTool[toolName] = append(r.perTool[toolName], rule)
}

// Check runs the global rules and the tool's rules, failing on the first
// violation.
func (r *RuleSet) Check(toolName string, params map[string]any) error {
	r.mu.RLock()
	rules := make([]SemanticRule, 0, len(r.global)+len(r.perTool[toolName]))
	rules = append(rules, r.global...)
	rules = append(rules, r.perTool[toolName]...)
	r.mu.RUnlock()

	for _, rule := range rules {
		if err := rule(params); err != nil {
			return fmt.Errorf("%w: semantic rule: %w", cogerr.ErrSchemaViolation, err)
		}
	}
	return nil
}

// PathTraversalRule rejects path-like fields that escape upward.
func PathTraversalRule(params map[string]any) error {
	for field, v := range params {
		if !isPathField(field) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if strings.Contains(s, "..") {
			return fmt.Errorf("field %q contains path traversal: %q", field, s)
		}
	}
	return nil
}

// maxStringParam bounds any single string parameter.
const maxStringParam = 1 << 20 // 1 MiB

// OversizePayloadRule rejects absurdly large string parameters before they
// reach a tool server.
func OversizePayloadRule(params map[string]any) error {
	for field, v := range params {
		if s, ok := v.(string); ok && len(s) > maxStringParam {
			return fmt.Errorf("field %q exceeds %d bytes", field, maxStringParam)
		}
	}
	return nil
}

// EnumRule builds a rule restricting a field to a closed value set.
func EnumRule(field string, allowed ...string) SemanticRule {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(params map[string]any) error {
		v, ok := params[field]
		if !ok {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", field)
		}
		if _, ok := set[s]; !ok {
			return fmt.Errorf("field %q value %q not in %v", field, s, allowed)
		}
		return nil
	}
}

// RequireTogetherRule builds a cross-field rule: if any of the fields is
// present, all must be.
func RequireTogetherRule(fields ...string) SemanticRule {
	return func(params map[string]any) error {
		present := 0
		for _, f := range fields {
			if _, ok := params[f]; ok {
				present++
			}
		}
		if present > 0 && present < len(fields) {
			return fmt.Errorf("fields %v must be provided together", fields)
		}
		return nil
	}
}
