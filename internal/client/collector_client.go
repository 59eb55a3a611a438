package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/config"
)

// CollectorClient talks to the content collection service.
type CollectorClient struct {
	requester
}

func NewCollectorClient(cfg *config.ServicesConfig, log zerolog.Logger) *CollectorClient {
	return &CollectorClient{
		requester: newRequester(cfg.CollectorURL, cfg.TimeoutSec, cfg.MaxRetries,
			log.With().Str("component", "collector_client").Logger()),
	}
}

// SubmitScript forwards a raw script submission and returns the created
// collection document.
func (c *CollectorClient) SubmitScript(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/collections/script", payload)
}

// SubmitWikipedia forwards a Wikipedia URL submission.
func (c *CollectorClient) SubmitWikipedia(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/collections/wikipedia", payload)
}

// GetCollection fetches a collection by id.
func (c *CollectorClient) GetCollection(ctx context.Context, collectionID string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/collections/"+collectionID, nil)
}

// UploadFile relays a multipart file upload with its form fields. Uploads
// are not retried: the interesting failures are 4xx validation errors and a
// replayed body buys nothing on a large file.
func (c *CollectorClient) UploadFile(ctx context.Context, filename, contentType string, file io.Reader, fields map[string]string) (json.RawMessage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/collections/upload-file", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.attempt(req)
}
