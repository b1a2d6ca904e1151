package config

import "fmt"

// ConfigValidator validates configuration comprehensively with clear error
// messages.
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at first
// error). Providers validate before the sections that reference them.
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateToolServers(); err != nil {
		return fmt.Errorf("tool server validation failed: %w", err)
	}

	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}

	if err := v.cfg.Memory.validate(); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}

	if err := v.validateValidation(); err != nil {
		return fmt.Errorf("validation config validation failed: %w", err)
	}

	if err := v.validateLoop(); err != nil {
		return fmt.Errorf("loop validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if provider.Type == "" {
			return NewValidationError("llm_provider", name, "type", ErrMissingRequiredField)
		}
		if !provider.Type.Valid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("%w: %s", ErrInvalidValue, provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		// Missing API keys are checked at client build time so configs can
		// validate on machines without credentials.
	}
	return nil
}

func (v *ConfigValidator) validateToolServers() error {
	for id, server := range v.cfg.ToolServerRegistry.GetAll() {
		t := server.Transport
		if t.Type == "" {
			return NewValidationError("tool_server", id, "transport.type", ErrMissingRequiredField)
		}
		if !t.Type.Valid() {
			return NewValidationError("tool_server", id, "transport.type", fmt.Errorf("%w: %s", ErrInvalidValue, t.Type))
		}
		switch t.Type {
		case TransportStdio:
			if t.Command == "" {
				return NewValidationError("tool_server", id, "transport.command", ErrMissingRequiredField)
			}
		case TransportHTTP, TransportSSE:
			if t.URL == "" {
				return NewValidationError("tool_server", id, "transport.url", ErrMissingRequiredField)
			}
		}
		if !server.DefaultRiskLevel.Valid() {
			return NewValidationError("tool_server", id, "default_risk_level", fmt.Errorf("%w: %s", ErrInvalidValue, server.DefaultRiskLevel))
		}
		for _, p := range server.DefaultPhases {
			if !p.Valid() || p.IsNull() {
				return NewValidationError("tool_server", id, "default_phases", fmt.Errorf("%w: %s", ErrInvalidValue, p))
			}
		}
	}
	return nil
}

func (v *ConfigValidator) validateLLM() error {
	llm := v.cfg.LLM

	if llm.DefaultProvider != "" && !v.cfg.LLMProviderRegistry.Has(llm.DefaultProvider) {
		return NewValidationError("llm", "default_provider", "", fmt.Errorf("%w: LLM provider '%s' not found", ErrInvalidReference, llm.DefaultProvider))
	}
	for phase, name := range llm.PhaseProviders {
		if !phase.Valid() || phase.IsNull() {
			return NewValidationError("llm", "phase_providers", string(phase), fmt.Errorf("%w: unknown phase", ErrInvalidValue))
		}
		if !v.cfg.LLMProviderRegistry.Has(name) {
			return NewValidationError("llm", "phase_providers", string(phase), fmt.Errorf("%w: LLM provider '%s' not found", ErrInvalidReference, name))
		}
	}
	if llm.MaxRetries < 0 {
		return NewValidationError("llm", "max_retries", "", fmt.Errorf("must not be negative"))
	}
	return nil
}

func (v *ConfigValidator) validateValidation() error {
	val := v.cfg.Validation

	if val.CorrectionConfidence < 0 || val.CorrectionConfidence > 1 {
		return NewValidationError("validation", "correction_confidence", "", fmt.Errorf("must be in [0,1], got %v", val.CorrectionConfidence))
	}
	if val.MaxCorrectionRetries < 1 {
		return NewValidationError("validation", "max_correction_retries", "", fmt.Errorf("must be at least 1"))
	}
	if val.CircuitFailThreshold < 1 {
		return NewValidationError("validation", "circuit_fail_threshold", "", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *ConfigValidator) validateLoop() error {
	loop := v.cfg.Loop

	if loop.MaxObservations < 1 {
		return NewValidationError("loop", "max_observations", "", fmt.Errorf("must be at least 1"))
	}
	if loop.MaxConcurrentLoops < 1 {
		return NewValidationError("loop", "max_concurrent_loops", "", fmt.Errorf("must be at least 1"))
	}
	if loop.MailboxDepth < 1 {
		return NewValidationError("loop", "mailbox_depth", "", fmt.Errorf("must be at least 1"))
	}
	return nil
}
