// Package analysis provides implementations of the analysis collaborator
// consumed at session completion: an HTTP client for a remote
// recommendation service and a no-op for deployments without one.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Client implements ports.Analyzer against an HTTP service: the payload
// is POSTed as JSON and the response body is the enrichment document.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds each analysis request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cl *Client) {
		if timeout > 0 {
			cl.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates an analysis client for the given endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	cl := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Analyze sends the payload for enrichment. Any transport or decode
// failure is returned as-is; the lifecycle manager treats it as
// best-effort and completes without enrichment.
func (c *Client) Analyze(ctx context.Context, payload domain.Payload) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	return result, nil
}

// Noop is an Analyzer that returns no enrichment. It keeps completion
// paths uniform when no analysis service is configured.
type Noop struct{}

// Analyze returns an empty result.
func (Noop) Analyze(ctx context.Context, payload domain.Payload) (map[string]any, error) {
	return nil, nil
}
