package notify

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cognia-ai/cognia/pkg/config"
)

const postTimeout = 5 * time.Second

// Service delivers loop lifecycle notifications.
// Nil-safe: all methods are no-ops when the service is nil, so callers
// never need to branch on whether notifications are configured.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService builds the service from config. Returns nil when notifications
// are disabled or the token is absent.
func NewService(cfg *config.SlackConfig) *Service {
	if cfg == nil || !cfg.Enabled || cfg.Channel == "" {
		return nil
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		slog.Warn("Slack notifications enabled but token env var is empty",
			"token_env", cfg.TokenEnv)
		return nil
	}
	return &Service{
		client: NewClient(token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient wraps a pre-built client, for tests.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// LoopStarted posts a start notification. Implements loop.LifecycleNotifier.
func (s *Service) LoopStarted(loopID, agentID, channelID, goal string) {
	if s == nil {
		return
	}
	blocks := BuildLoopStartedMessage(loopID, agentID, channelID, goal)
	if err := s.client.PostMessage(context.Background(), blocks, postTimeout); err != nil {
		s.logger.Error("Failed to send loop start notification",
			"loop_id", loopID, "error", err)
	}
}

// LoopStopped posts a stop notification. Implements loop.LifecycleNotifier.
func (s *Service) LoopStopped(loopID, agentID, channelID string) {
	if s == nil {
		return
	}
	blocks := BuildLoopStoppedMessage(loopID, agentID, channelID)
	if err := s.client.PostMessage(context.Background(), blocks, postTimeout); err != nil {
		s.logger.Error("Failed to send loop stop notification",
			"loop_id", loopID, "error", err)
	}
}
