// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an LLM provider implementation for OpenAI's GPT
// models via the Chat Completions API. The Genesis router sends
// generate_text and code_generation actions here.
package openai

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
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.7
)

// Model constants for supported GPT models.
const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT41     = "gpt-4.1"
	ModelGPT41Mini = "gpt-4.1-mini"
	ModelGPT4Turbo = "gpt-4-turbo"

	// DefaultModel is used when no model is configured or requested.
	DefaultModel = ModelGPT4o
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a low-level HTTP client for the OpenAI Chat Completions API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  HTTPClient
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the OpenAI client.
type Config struct {
	APIKey  string        // Required: OpenAI API key
	BaseURL string        // Optional: API base URL (default: https://api.openai.com)
	Model   string        // Optional: default model
	Timeout time.Duration // Optional: HTTP timeout (default: 120s)
}

// Request is a completion request to the Chat Completions API.
type Request struct {
	Prompt        string
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64 // 0.0 is valid; negative means use default
	TopP          float64
	Model         string
	StopSequences []string
}

// Response is a completion response from the Chat Completions API.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
	Latency      time.Duration
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is a single chunk of a streaming response.
type StreamChunk struct {
	Type    string
	Content string
	Done    bool
}

// StreamHandler handles stream chunks. Returning an error aborts the stream.
type StreamHandler func(chunk StreamChunk) error

// NewClient creates a new OpenAI API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		healthy: true,
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

// IsHealthy reports the last known health state.
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

// buildBody assembles the Chat Completions request body. A system prompt
// becomes the leading system message; the prompt itself is the user
// message.
func (c *Client) buildBody(req Request, stream bool) chatRequest {
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

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}

	if req.TopP > 0 {
		body.TopP = &req.TopP
	}
	if len(req.StopSequences) > 0 {
		body.Stop = req.StopSequences
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	return body
}

// send posts the request body and returns the HTTP response. Non-200
// responses are converted to *APIError.
func (c *Client) send(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	resp, err := client.Do(httpReq)
	if err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("openai API error: %w", err)
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

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	content := ""
	finishReason := "unknown"
	if len(apiResp.Choices) > 0 {
		content = apiResp.Choices[0].Message.Content
		finishReason = mapFinishReason(apiResp.Choices[0].FinishReason)
	}

	return &Response{
		Content:      content,
		Model:        apiResp.Model,
		FinishReason: finishReason,
		Usage: Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
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

// processStream consumes the SSE stream from the Chat Completions API.
// The stream ends with a "data: [DONE]" sentinel.
func (c *Client) processStream(body io.Reader, handler StreamHandler, start time.Time, model string) (*Response, error) {
	scanner := bufio.NewScanner(body)
	var content strings.Builder
	var finishReason string
	var usage Usage
	var responseModel string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed events
		}

		if chunk.Model != "" {
			responseModel = chunk.Model
		}

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if handler != nil {
					if err := handler(StreamChunk{
						Type:    "content",
						Content: choice.Delta.Content,
					}); err != nil {
						return nil, fmt.Errorf("handler error: %w", err)
					}
				}
			}

			if choice.FinishReason != "" {
				finishReason = mapFinishReason(choice.FinishReason)
			}
		}

		// Usage arrives in the final chunk when stream_options requests it
		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}

	if handler != nil {
		if err := handler(StreamChunk{Type: "done", Done: true}); err != nil {
			return nil, fmt.Errorf("handler error: %w", err)
		}
	}

	if responseModel == "" {
		responseModel = model
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &Response{
		Content:      content.String(),
		Model:        responseModel,
		FinishReason: finishReason,
		Usage:        usage,
		Latency:      time.Since(start),
	}, nil
}

// parseAPIError parses an error response body into an *APIError.
func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("openai API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       errResp.Error.Code,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
	}
}

// mapFinishReason maps Chat Completions finish reasons to unified reasons.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length":
		return "max_tokens"
	case "content_filter":
		return "content_filter"
	default:
		return reason
	}
}

// APIError represents an OpenAI API error.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error (status %d, code %s, type %s): %s",
		e.StatusCode, e.Code, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden ||
		e.Code == "invalid_api_key"
}

// IsQuotaExceededError returns true if this is a quota exceeded error.
func (e *APIError) IsQuotaExceededError() bool {
	return e.Code == "quota_exceeded" || e.Code == "insufficient_quota"
}

// Internal API types (Chat Completions wire format).

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens"`
	Temperature   float64        `json:"temperature"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatStreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// SupportedModels returns the list of known GPT models.
func SupportedModels() []string {
	return []string{
		ModelGPT4o,
		ModelGPT4oMini,
		ModelGPT41,
		ModelGPT41Mini,
		ModelGPT4Turbo,
	}
}
