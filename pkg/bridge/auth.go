package bridge

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cognia-ai/cognia/pkg/config"
)

// Auth rejection reason codes returned to clients.
const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonMissingAgentID     = "missing_agent_id"
)

// Identity is an authenticated connection's principal. Agents authenticate
// with key credentials; user sessions with bearer tokens.
type Identity struct {
	AgentID   string
	ChannelID string
	User      bool
}

// AuthError carries the rejection reason code sent to the client.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// Authenticator validates connection handshakes. An empty token (env var
// unset) disables auth for development.
type Authenticator struct {
	token string
}

// NewAuthenticator reads the shared token from the configured environment
// variable.
func NewAuthenticator(cfg *config.BridgeConfig) *Authenticator {
	token := ""
	if cfg.AuthTokenEnv != "" {
		token = os.Getenv(cfg.AuthTokenEnv)
	}
	return &Authenticator{token: token}
}

// Authenticate accepts either method: agent key credentials (X-Agent-Key
// header or agent_key query parameter) or a user bearer token
// (Authorization header). Agent identity comes from query parameters.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	agentID := r.URL.Query().Get("agent_id")
	channelID := r.URL.Query().Get("channel_id")

	if a.token == "" {
		if agentID == "" {
			return Identity{}, &AuthError{Reason: ReasonMissingAgentID}
		}
		return Identity{AgentID: agentID, ChannelID: channelID}, nil
	}

	key := r.Header.Get("X-Agent-Key")
	if key == "" {
		key = r.URL.Query().Get("agent_key")
	}
	if key != "" {
		if key != a.token {
			return Identity{}, &AuthError{Reason: ReasonInvalidCredentials}
		}
		if agentID == "" {
			return Identity{}, &AuthError{Reason: ReasonMissingAgentID}
		}
		return Identity{AgentID: agentID, ChannelID: channelID}, nil
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		bearer, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || bearer != a.token {
			return Identity{}, &AuthError{Reason: ReasonInvalidCredentials}
		}
		return Identity{AgentID: agentID, ChannelID: channelID, User: true}, nil
	}

	return Identity{}, &AuthError{Reason: ReasonMissingCredentials}
}
