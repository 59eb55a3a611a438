package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/scriptflow/gateway/internal/client"
	"github.com/scriptflow/gateway/pkg/response"
)

// uploadFields are the form fields relayed alongside an uploaded file.
var uploadFields = []string{
	"script_type", "target_audience", "duration", "language", "visual_style", "voice", "style_description",
}

type CollectionHandler struct {
	collector *client.CollectorClient
}

func NewCollectionHandler(collector *client.CollectorClient) *CollectionHandler {
	return &CollectionHandler{collector: collector}
}

// SubmitScript handles POST /api/collections
func (h *CollectionHandler) SubmitScript(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if _, ok := body["content"]; !ok {
		return response.ValidationError(c, "Content is required", nil)
	}

	payload := map[string]any{
		"title":   "User Script",
		"content": body["content"],
	}
	if title, ok := body["title"]; ok {
		payload["title"] = title
	}
	if meta, ok := body["metadata"].(map[string]any); ok {
		for _, field := range uploadFields {
			if v, ok := meta[field]; ok && v != nil {
				payload[field] = v
			}
		}
	}

	result, err := h.collector.SubmitScript(c.Context(), payload)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// SubmitWikipedia handles POST /api/collections/wikipedia
func (h *CollectionHandler) SubmitWikipedia(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if url, _ := body["url"].(string); url == "" {
		return response.ValidationError(c, "URL is required", nil)
	}

	result, err := h.collector.SubmitWikipedia(c.Context(), body)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// Upload handles POST /api/collections/upload-file
func (h *CollectionHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	fields := make(map[string]string)
	for _, field := range uploadFields {
		if v := c.FormValue(field); v != "" {
			fields[field] = v
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read upload")
	}
	defer file.Close()

	result, err := h.collector.UploadFile(c.Context(), fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), file, fields)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// Get handles GET /api/collections/:collectionId
func (h *CollectionHandler) Get(c *fiber.Ctx) error {
	collectionID := c.Params("collectionId")
	if collectionID == "" {
		return response.ValidationError(c, "Collection ID is required", nil)
	}

	result, err := h.collector.GetCollection(c.Context(), collectionID)
	if err != nil {
		return upstreamError(c, err)
	}
	return response.RawJSON(c, fiber.StatusOK, result)
}

// upstreamError maps collaborator failures to client-facing categories:
// timeouts become 504, upstream statuses are echoed, everything else is 500.
func upstreamError(c *fiber.Ctx, err error) error {
	if errors.Is(err, client.ErrUpstreamTimeout) {
		return response.UpstreamTimeout(c)
	}
	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		return response.RawJSON(c, ue.StatusCode, ue.Body)
	}
	return response.ServiceError(c, err.Error())
}
