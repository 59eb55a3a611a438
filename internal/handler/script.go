package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/scriptflow/gateway/internal/client"
	"github.com/scriptflow/gateway/pkg/response"
)

type ScriptHandler struct {
	scripts *client.ScriptGenClient
}

func NewScriptHandler(scripts *client.ScriptGenClient) *ScriptHandler {
	return &ScriptHandler{scripts: scripts}
}

// Create handles POST /api/scripts
func (h *ScriptHandler) Create(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	for _, field := range []string{"content", "script_type", "language", "voice_id", "style_description"} {
		if _, ok := body[field]; !ok {
			return response.ValidationError(c, fmt.Sprintf("Missing required field: %s", field), nil)
		}
	}

	// Shape the request the way the script generator expects it.
	payload := map[string]any{
		"content":           body["content"],
		"script_type":       body["script_type"],
		"target_audience":   valueOr(body, "target_audience", "general"),
		"duration_seconds":  valueOr(body, "duration_seconds", 300),
		"tone":              valueOr(body, "tone", "informative"),
		"style_description": body["style_description"],
		"language":          body["language"],
		"voice_id":          body["voice_id"],
	}
	if collectionID, ok := body["collection_id"]; ok {
		payload["collection_id"] = collectionID
	}

	result, err := h.scripts.CreateScript(c.Context(), payload)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// Get handles GET /api/scripts/:scriptId
func (h *ScriptHandler) Get(c *fiber.Ctx) error {
	scriptID := c.Params("scriptId")
	if scriptID == "" {
		return response.ValidationError(c, "Script ID is required", nil)
	}

	result, err := h.scripts.GetScript(c.Context(), scriptID)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// Status handles GET /api/scripts/:scriptId/status
func (h *ScriptHandler) Status(c *fiber.Ctx) error {
	scriptID := c.Params("scriptId")
	if scriptID == "" {
		return response.ValidationError(c, "Script ID is required", nil)
	}

	result, err := h.scripts.GetScriptStatus(c.Context(), scriptID)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

func valueOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return fallback
}
