package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
)

// CompletionRequest is one completion call. Zero MaxTokens and nil
// Temperature fall back to the provider's configured defaults.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Provider is the thin completion contract the phase client calls through.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// messagesAPI is the subset of the Anthropic SDK the provider uses,
// satisfied by *sdk.MessageService and by mocks in tests.
type messagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicProvider implements Provider over the Claude Messages API.
type AnthropicProvider struct {
	name string
	msg  messagesAPI
	cfg  *config.LLMProviderConfig
}

const defaultAPIKeyEnv = "ANTHROPIC_API_KEY"

// NewAnthropicProvider builds a provider from its configuration. The API key
// is read from the configured environment variable at construction time.
func NewAnthropicProvider(name string, cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q: environment variable %s is not set", name, keyEnv)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdk.NewClient(opts...)

	return &AnthropicProvider{name: name, msg: &client.Messages, cfg: cfg}, nil
}

// Name returns the provider's registry name.
func (p *AnthropicProvider) Name() string { return p.name }

// Complete issues one non-streaming Messages call and returns the
// concatenated text blocks.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	temp := req.Temperature
	if temp == nil {
		temp = p.cfg.Temperature
	}
	if temp != nil {
		params.Temperature = sdk.Float(*temp)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: provider %q: %w", cogerr.ErrLLMFailure, p.name, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: provider %q returned no text content", cogerr.ErrLLMFailure, p.name)
	}
	return sb.String(), nil
}

// BuildProviders constructs all configured providers from the registry.
func BuildProviders(registry *config.LLMProviderRegistry) (map[string]Provider, error) {
	out := make(map[string]Provider)
	for name, cfg := range registry.GetAll() {
		switch cfg.Type {
		case config.ProviderAnthropic:
			p, err := NewAnthropicProvider(name, cfg)
			if err != nil {
				return nil, err
			}
			out[name] = p
		default:
			return nil, fmt.Errorf("provider %q: unsupported type %q", name, cfg.Type)
		}
	}
	return out, nil
}
