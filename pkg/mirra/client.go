// Package mirra is the Go client for the Mirra SDK API. All requests carry
// the X-API-Key header and responses use the standard {success, data, error}
// envelope.
package mirra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production Mirra SDK API endpoint.
	DefaultBaseURL = "https://api.fxn.world/api/sdk/v1"

	// defaultHTTPTimeout is the per-request timeout used by the client.
	defaultHTTPTimeout = 15 * time.Second
)

// Error is an API-level error returned by the Mirra backend.
type Error struct {
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	StatusCode int             `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mirra: %s (%s)", e.Message, e.Code)
	}
	return "mirra: " + e.Message
}

// IsNotFound reports whether err is an API error for a missing object.
// Cleanup paths rely on this to stay idempotent.
func IsNotFound(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound || apiErr.Code == "not_found"
}

// response is the standard Mirra API envelope.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Client talks to the Mirra SDK API. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Service namespaces.
	Memory    *MemoryService
	AI        *AIService
	Agents    *AgentService
	Scripts   *ScriptService
	Resources *ResourceService
	Templates *TemplateService
	Flows     *FlowService
	Messages  *MessageService
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Mirra API client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Memory = &MemoryService{client: c}
	c.AI = &AIService{client: c}
	c.Agents = &AgentService{client: c}
	c.Scripts = &ScriptService{client: c}
	c.Resources = &ResourceService{client: c}
	c.Templates = &TemplateService{client: c}
	c.Flows = &FlowService{client: c}
	c.Messages = &MessageService{client: c}
	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// request performs an API call and decodes the envelope's data field into
// out (when out is non-nil).
func (c *Client) request(ctx context.Context, method, path string, body any, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &Error{
			Message:    "invalid JSON response from API",
			StatusCode: resp.StatusCode,
		}
	}

	if !envelope.Success || resp.StatusCode >= 400 {
		apiErr := envelope.Error
		if apiErr == nil {
			apiErr = &Error{Message: "unknown error"}
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
