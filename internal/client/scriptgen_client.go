package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/config"
)

// ScriptGenClient talks to the script generation service.
type ScriptGenClient struct {
	requester
}

func NewScriptGenClient(cfg *config.ServicesConfig, log zerolog.Logger) *ScriptGenClient {
	return &ScriptGenClient{
		requester: newRequester(cfg.ScriptGenURL, cfg.TimeoutSec, cfg.MaxRetries,
			log.With().Str("component", "scriptgen_client").Logger()),
	}
}

// CreateScript forwards a script generation request.
func (c *ScriptGenClient) CreateScript(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/scripts", payload)
}

// GetScript fetches a generated script by id.
func (c *ScriptGenClient) GetScript(ctx context.Context, scriptID string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/v1/scripts/"+scriptID, nil)
}

// GetScriptStatus fetches generation progress for a script.
func (c *ScriptGenClient) GetScriptStatus(ctx context.Context, scriptID string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/v1/scripts/"+scriptID+"/status", nil)
}
