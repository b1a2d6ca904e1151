// Package notify delivers loop lifecycle notifications to Slack. Delivery
// is fail-open: a notification that cannot be sent is logged and dropped,
// never surfaced to the loop path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api     *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewClient creates a Slack API client posting to one channel.
func NewClient(token, channel string) *Client {
	return &Client{
		api:     goslack.New(token),
		channel: channel,
		logger:  slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL targets a custom API URL, for tests with a mock server.
func NewClientWithAPIURL(token, channel, apiURL string) *Client {
	return &Client{
		api:     goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channel: channel,
		logger:  slog.Default().With("component", "slack-client"),
	}
}

// PostMessage sends Block Kit blocks to the configured channel.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, c.channel,
		goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
