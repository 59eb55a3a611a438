// Package client holds the HTTP clients for the upstream microservices the
// gateway fronts. All of them are plain request/response proxies with a
// bounded retry; the gateway adds no logic on top.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrUpstreamTimeout is returned when every retry attempt timed out; the
// handler layer maps it to a 504.
var ErrUpstreamTimeout = errors.New("upstream service timeout")

// UpstreamError carries a non-2xx upstream response so handlers can echo the
// status category to the client.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Body)
}

// requester is the shared retrying transport for the service clients.
type requester struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	log        zerolog.Logger
}

func newRequester(baseURL string, timeoutSec, maxRetries int, log zerolog.Logger) requester {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return requester{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		log:        log,
	}
}

// doJSON sends a request with an optional JSON body and returns the raw
// response body. Failed attempts are retried up to the configured limit;
// non-2xx responses and timeouts surface as UpstreamError and
// ErrUpstreamTimeout after the last attempt.
func (r *requester) doJSON(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		respBody, err := r.attempt(req)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		r.log.Warn().Err(err).Str("endpoint", endpoint).
			Int("attempt", attempt).Int("max", r.maxRetries).Msg("upstream request failed")
	}
	return nil, lastErr
}

func (r *requester) attempt(req *http.Request) (json.RawMessage, error) {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
