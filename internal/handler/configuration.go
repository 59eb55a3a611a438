package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scriptflow/gateway/internal/store"
	"github.com/scriptflow/gateway/pkg/response"
)

// routeConfigTypes maps URL path segments to configuration types.
var routeConfigTypes = map[string]string{
	"styles":           "styles",
	"languages":        "languages",
	"voices":           "voices",
	"visual-styles":    "visual_styles",
	"target-audiences": "target_audience",
	"durations":        "durations",
}

type configItemRequest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description"`
	Extra       map[string]any `json:"extra"`
}

type ConfigurationHandler struct {
	configs   *store.ConfigStore
	validator *validator.Validate
}

func NewConfigurationHandler(configs *store.ConfigStore, v *validator.Validate) *ConfigurationHandler {
	return &ConfigurationHandler{
		configs:   configs,
		validator: v,
	}
}

// List handles GET /api/configurations/:type
func (h *ConfigurationHandler) List(c *fiber.Ctx) error {
	configType, ok := routeConfigTypes[c.Params("type")]
	if !ok {
		return response.NotFound(c, "Unknown configuration type")
	}

	items, err := h.configs.List(c.Context(), configType)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, items)
}

// Add handles POST /api/configurations/:type
func (h *ConfigurationHandler) Add(c *fiber.Ctx) error {
	configType, ok := routeConfigTypes[c.Params("type")]
	if !ok {
		return response.NotFound(c, "Unknown configuration type")
	}

	var req configItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	id, err := h.configs.Add(c.Context(), configType, store.ConfigItem{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Extra:       req.Extra,
	})
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, fiber.Map{"id": id})
}

// Update handles PUT /api/configurations/:type/:id
func (h *ConfigurationHandler) Update(c *fiber.Ctx) error {
	configType, ok := routeConfigTypes[c.Params("type")]
	if !ok {
		return response.NotFound(c, "Unknown configuration type")
	}

	var req configItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	updated, err := h.configs.Update(c.Context(), configType, c.Params("id"), store.ConfigItem{
		Name:        req.Name,
		Description: req.Description,
		Extra:       req.Extra,
	})
	if err != nil {
		if errors.Is(err, store.ErrUnknownConfigType) {
			return response.NotFound(c, "Unknown configuration type")
		}
		return response.ServiceError(c, err.Error())
	}
	if !updated {
		return response.NotFound(c, "Configuration not found")
	}
	return response.OK(c, fiber.Map{"id": c.Params("id")})
}

// Delete handles DELETE /api/configurations/:type/:id
func (h *ConfigurationHandler) Delete(c *fiber.Ctx) error {
	configType, ok := routeConfigTypes[c.Params("type")]
	if !ok {
		return response.NotFound(c, "Unknown configuration type")
	}

	deleted, err := h.configs.Delete(c.Context(), configType, c.Params("id"))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if !deleted {
		return response.NotFound(c, "Configuration not found")
	}
	return response.NoContent(c)
}
