package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIToken = "VOCAB_API_TOKEN"
	envAPIURL   = "VOCAB_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient from the --api-token and
// --api-url flags, falling back to the environment and the global config.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagToken, flagURL string
	if cmd != nil {
		flagToken, _ = cmd.Flags().GetString("api-token")
		flagURL, _ = cmd.Flags().GetString("api-url")
	}

	conn, err := ResolveConnection(flagToken, flagURL)
	if err != nil {
		return nil, err
	}
	return NewAPIClientWithConfig(conn.Token, conn.URL), nil
}

// NewAPIClientWithConfig creates an APIClient with explicit settings.
func NewAPIClientWithConfig(token, baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// Resolutions call the oracle several times.
			Timeout: 5 * time.Minute,
		},
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// Get fetches path and decodes the data envelope.
func (c *APIClient) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.envelope(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON and decodes the data envelope.
func (c *APIClient) Post(ctx context.Context, path string, body interface{}) (*APIResponse, error) {
	return c.envelope(ctx, http.MethodPost, path, body)
}

// GetBare decodes an unwrapped response body into v. Used for /lookup-code.
func (c *APIClient) GetBare(ctx context.Context, path string, v interface{}) error {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeBody(raw, v)
}

func (c *APIClient) envelope(ctx context.Context, method, path string, body interface{}) (*APIResponse, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	out := &APIResponse{}
	if err := decodeBody(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeBody(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}
	return nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return raw, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var envelope APIResponse
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		apiErr.Code, apiErr.Message = envelope.Code, envelope.Error
	}
	return nil, apiErr
}
