package validation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Correction is one strategy's proposed payload rewrite.
type Correction struct {
	Strategy   string
	Confidence float64
	Params     map[string]any
	Note       string
}

// strategy proposes a correction for a failing payload, or reports that it
// has nothing to offer. Strategies never mutate the input map.
type strategy interface {
	name() string
	apply(info schemaInfo, store *PatternStore, channelID, toolName string, params map[string]any) (Correction, bool)
}

// strategies in confidence order: the pipeline tries each in turn and takes
// the first whose corrected payload re-validates.
func defaultStrategies() []strategy {
	return []strategy{
		typeCoercion{},
		missingRequiredInference{},
		unknownPropertyFilter{},
		constraintNormalization{},
	}
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// typeCoercion converts values whose Go type disagrees with the schema's
// declared type: numeric strings to numbers, numbers to strings, "true" to
// bool.
type typeCoercion struct{}

func (typeCoercion) name() string { return "type_coercion" }

func (typeCoercion) apply(info schemaInfo, _ *PatternStore, _, _ string, params map[string]any) (Correction, bool) {
	out := cloneParams(params)
	changed := 0

	for field, want := range info.propertyTypes {
		v, ok := out[field]
		if !ok {
			continue
		}
		if coerced, ok := coerceValue(v, want); ok {
			out[field] = coerced
			changed++
		}
	}
	if changed == 0 {
		return Correction{}, false
	}
	return Correction{
		Strategy:   "type_coercion",
		Confidence: 0.9,
		Params:     out,
		Note:       fmt.Sprintf("coerced %d field(s)", changed),
	}, true
}

// coerceValue converts v to the declared JSON type when the conversion is
// lossless. Returns false when v already matches or cannot convert safely.
func coerceValue(v any, want string) (any, bool) {
	switch want {
	case "string":
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		case int:
			return strconv.Itoa(x), true
		case int64:
			return strconv.FormatInt(x, 10), true
		case bool:
			return strconv.FormatBool(x), true
		}
	case "number":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	case "integer":
		switch x := v.(type) {
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return i, true
			}
		case float64:
			if x == float64(int64(x)) {
				return int64(x), true
			}
		}
	case "boolean":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

// missingRequiredInference fills absent required fields from the learned
// pattern store for the same (channel, tool). Confidence comes from the
// pattern itself.
type missingRequiredInference struct{}

func (missingRequiredInference) name() string { return "missing_required_inference" }

func (missingRequiredInference) apply(info schemaInfo, store *PatternStore, channelID, toolName string, params map[string]any) (Correction, bool) {
	if store == nil {
		return Correction{}, false
	}

	out := cloneParams(params)
	minConfidence := 1.0
	filled := 0

	for _, field := range info.required {
		if _, present := out[field]; present {
			continue
		}
		pattern, ok := store.Infer(channelID, toolName, field)
		if !ok || pattern.CommonValue == nil {
			continue
		}
		out[field] = pattern.CommonValue
		if pattern.Confidence < minConfidence {
			minConfidence = pattern.Confidence
		}
		filled++
	}
	if filled == 0 {
		return Correction{}, false
	}
	return Correction{
		Strategy:   "missing_required_inference",
		Confidence: minConfidence,
		Params:     out,
		Note:       fmt.Sprintf("inferred %d required field(s) from learned patterns", filled),
	}, true
}

// unknownPropertyFilter drops fields the schema does not declare. Only
// applies when the schema declares properties at all.
type unknownPropertyFilter struct{}

func (unknownPropertyFilter) name() string { return "unknown_property_filter" }

func (unknownPropertyFilter) apply(info schemaInfo, _ *PatternStore, _, _ string, params map[string]any) (Correction, bool) {
	if len(info.propertyTypes) == 0 {
		return Correction{}, false
	}

	out := make(map[string]any, len(params))
	dropped := 0
	for k, v := range params {
		if _, declared := info.propertyTypes[k]; declared {
			out[k] = v
		} else {
			dropped++
		}
	}
	if dropped == 0 {
		return Correction{}, false
	}
	return Correction{
		Strategy:   "unknown_property_filter",
		Confidence: 0.8,
		Params:     out,
		Note:       fmt.Sprintf("dropped %d undeclared field(s)", dropped),
	}, true
}

// constraintNormalization fixes common constraint violations: relative paths
// get cleaned, string fields get whitespace trimmed.
type constraintNormalization struct{}

func (constraintNormalization) name() string { return "constraint_normalization" }

func (constraintNormalization) apply(info schemaInfo, _ *PatternStore, _, _ string, params map[string]any) (Correction, bool) {
	out := cloneParams(params)
	changed := 0

	for field, want := range info.propertyTypes {
		if want != "string" {
			continue
		}
		s, ok := out[field].(string)
		if !ok {
			continue
		}
		normalized := s
		if trimmed := strings.TrimSpace(s); trimmed != s {
			normalized = trimmed
		}
		// Never clean traversal out of a path: that would silently rewrite a
		// payload the semantic rules are meant to reject.
		if isPathField(field) && !strings.Contains(normalized, "..") {
			if cleaned := filepath.Clean(normalized); cleaned != normalized {
				normalized = cleaned
			}
		}
		if normalized != s {
			out[field] = normalized
			changed++
		}
	}
	if changed == 0 {
		return Correction{}, false
	}
	return Correction{
		Strategy:   "constraint_normalization",
		Confidence: 0.75,
		Params:     out,
		Note:       fmt.Sprintf("normalized %d field(s)", changed),
	}, true
}

func isPathField(field string) bool {
	f := strings.ToLower(field)
	return f == "path" || f == "file" || f == "filename" || f == "dir" ||
		strings.HasSuffix(f, "_path") || strings.HasSuffix(f, "_file") || strings.HasSuffix(f, "_dir")
}
