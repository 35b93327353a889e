// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an LLM provider implementation for Anthropic's
// Claude models. In Genesis the router sends reasoning and analysis actions
// here; the client supports both streaming and non-streaming completions.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version header value.
	DefaultAPIVersion = "2023-06-01"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.7
)

// Model constants for supported Claude models.
const (
	ModelClaude4Opus   = "claude-opus-4-20250514"
	ModelClaude4Sonnet = "claude-sonnet-4-20250514"

	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"

	ModelClaude3Opus  = "claude-3-opus-20240229"
	ModelClaude3Haiku = "claude-3-haiku-20240307"

	// DefaultModel is used when no model is configured or requested.
	DefaultModel = ModelClaude4Sonnet
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a low-level HTTP client for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	client     HTTPClient
	healthy    bool
	mu         sync.RWMutex
}

// Config contains configuration for the Anthropic client.
type Config struct {
	APIKey     string        // Required: Anthropic API key
	BaseURL    string        // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion string        // Optional: API version (default: 2023-06-01)
	Model      string        // Optional: default model
	Timeout    time.Duration // Optional: HTTP timeout (default: 120s)
}

// Request is a completion request to the Messages API.
type Request struct {
	Prompt        string
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64 // 0.0 is valid; negative means use default
	TopP          float64
	TopK          int
	Model         string
	StopSequences []string
}

// Response is a completion response from the Messages API.
type Response struct {
	Content    string
	Model      string
	StopReason string
	Usage      Usage
	Latency    time.Duration
}

// Usage contains token usage statistics.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// StreamChunk is a single chunk of a streaming response.
type StreamChunk struct {
	Type    string
	Content string
	Done    bool
}

// StreamHandler handles stream chunks. Returning an error aborts the stream.
type StreamHandler func(chunk StreamChunk) error

// NewClient creates a new Anthropic API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
		healthy:    true,
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client. Used in tests.
func (c *Client) SetHTTPClient(client HTTPClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}

// Model returns the configured default model.
func (c *Client) Model() string {
	return c.model
}

// IsHealthy reports the last known health state. The flag flips to false
// when a request fails with a transport error or a 5xx status.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy && c.apiKey != ""
}

func (c *Client) setHealthy(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
}

// buildBody assembles the Messages API request body. Temperature 0.0 is
// sent as-is (deterministic output); only negative values fall back to the
// default.
func (c *Client) buildBody(req Request, stream bool) apiRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := req.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	body := apiRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Stream:    stream,
		Messages: []apiMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: &temperature,
	}

	if req.SystemPrompt != "" {
		body.System = req.SystemPrompt
	}
	if req.TopP > 0 {
		body.TopP = &req.TopP
	}
	if req.TopK > 0 {
		body.TopK = &req.TopK
	}
	if len(req.StopSequences) > 0 {
		body.StopSequences = req.StopSequences
	}

	return body
}

// send posts the request body and returns the HTTP response. The caller
// owns the body. Non-200 responses are converted to *APIError.
func (c *Client) send(ctx context.Context, body apiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.apiVersion)

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	resp, err := client.Do(httpReq)
	if err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			c.setHealthy(false)
		}
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	c.setHealthy(true)
	return resp, nil
}

// Complete generates a completion for the given request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	body := c.buildBody(req, false)
	resp, err := c.send(ctx, body)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var content strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Response{
		Content:    content.String(),
		Model:      apiResp.Model,
		StopReason: apiResp.StopReason,
		Usage: Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// CompleteStream generates a streaming completion. The handler is invoked
// for each content delta; the aggregated response is returned at the end.
func (c *Client) CompleteStream(ctx context.Context, req Request, handler StreamHandler) (*Response, error) {
	start := time.Now()

	body := c.buildBody(req, true)
	resp, err := c.send(ctx, body)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return c.processStream(resp.Body, handler, start, body.Model)
}

// processStream consumes the SSE stream from the Messages API.
func (c *Client) processStream(body io.Reader, handler StreamHandler, start time.Time, model string) (*Response, error) {
	scanner := bufio.NewScanner(body)
	var content strings.Builder
	var usage Usage
	var stopReason string
	var responseModel string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue // skip malformed events
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				responseModel = event.Message.Model
				if event.Message.Usage != nil {
					usage.InputTokens = event.Message.Usage.InputTokens
				}
			}

		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				content.WriteString(event.Delta.Text)
				if handler != nil {
					if err := handler(StreamChunk{
						Type:    "content_block_delta",
						Content: event.Delta.Text,
					}); err != nil {
						return nil, fmt.Errorf("handler error: %w", err)
					}
				}
			}

		case "message_delta":
			if event.Delta != nil {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			if handler != nil {
				if err := handler(StreamChunk{Type: "message_stop", Done: true}); err != nil {
					return nil, fmt.Errorf("handler error: %w", err)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}

	if responseModel == "" {
		responseModel = model
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &Response{
		Content:    content.String(),
		Model:      responseModel,
		StopReason: stopReason,
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}

// parseAPIError parses an error response body into an *APIError.
func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("anthropic API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
	}
}

// APIError represents an Anthropic API error.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Type == "rate_limit_error"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Type == "authentication_error"
}

// IsOverloadedError returns true if the API is overloaded.
func (e *APIError) IsOverloadedError() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.Type == "overloaded_error"
}

// Internal API types.

type apiRequest struct {
	Model         string       `json:"model"`
	Messages      []apiMessage `json:"messages"`
	MaxTokens     int          `json:"max_tokens"`
	System        string       `json:"system,omitempty"`
	Temperature   *float64     `json:"temperature,omitempty"`
	TopP          *float64     `json:"top_p,omitempty"`
	TopK          *int         `json:"top_k,omitempty"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
	Stream        bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index,omitempty"`
	Message *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage,omitempty"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type,omitempty"`
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// SupportedModels returns the list of known Claude models.
func SupportedModels() []string {
	return []string{
		ModelClaude4Opus,
		ModelClaude4Sonnet,
		ModelClaude35Sonnet,
		ModelClaude35Haiku,
		ModelClaude3Opus,
		ModelClaude3Haiku,
	}
}

// IsValidModel checks if the given model is a valid Claude model.
// Unknown models with the "claude-" prefix are accepted so new releases
// work without a code change.
func IsValidModel(model string) bool {
	for _, m := range SupportedModels() {
		if m == model {
			return true
		}
	}
	return strings.HasPrefix(model, "claude-")
}
