// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package deepseek provides an LLM provider implementation for DeepSeek's
// models. DeepSeek exposes an OpenAI-compatible Chat Completions API; the
// Genesis router sends fast_coding actions here.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"genesis/backend/llm"
)

const (
	// DefaultBaseURL is the default DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the default sampling temperature. DeepSeek
	// recommends 0.0 for coding tasks.
	DefaultTemperature = 0.0
)

// Model constants for supported DeepSeek models.
const (
	ModelChat     = "deepseek-chat"
	ModelReasoner = "deepseek-reasoner"

	// DefaultModel is used when no model is configured or requested.
	DefaultModel = ModelChat
)

func init() {
	llm.RegisterFactory(llm.ProviderTypeDeepSeek, NewFromProviderConfig)
}

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements llm.Provider against the DeepSeek API.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	client  HTTPClient
	healthy bool
	mu      sync.RWMutex
}

// Interface guard.
var _ llm.Provider = (*Provider)(nil)

// Config contains configuration for the DeepSeek provider.
type Config struct {
	APIKey  string        // Required: DeepSeek API key
	BaseURL string        // Optional: API base URL (default: https://api.deepseek.com)
	Model   string        // Optional: default model (default: deepseek-chat)
	Timeout time.Duration // Optional: HTTP timeout (default: 120s)
}

// New creates a DeepSeek provider with the given instance name.
func New(name string, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
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
	if name == "" {
		name = "deepseek"
	}

	return &Provider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		healthy: true,
	}, nil
}

// NewFromProviderConfig creates a provider from unified registry
// configuration. Registered as the factory for llm.ProviderTypeDeepSeek.
func NewFromProviderConfig(config llm.ProviderConfig) (llm.Provider, error) {
	cfg := Config{
		APIKey:  config.APIKey,
		BaseURL: config.Endpoint,
		Model:   config.Model,
	}
	if config.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}
	return New(config.Name, cfg)
}

// SetHTTPClient replaces the underlying HTTP client. Used in tests.
func (p *Provider) SetHTTPClient(client HTTPClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeDeepSeek
}

// SupportsStreaming is false: fast coding completions are short enough
// that a single response is fine.
func (p *Provider) SupportsStreaming() bool {
	return false
}

func (p *Provider) Capabilities() []llm.Capability {
	return []llm.Capability{
		llm.CapabilityChat,
		llm.CapabilityCompletion,
		llm.CapabilityCodeGeneration,
	}
}

func (p *Provider) isHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	// 0.0 is valid and the recommended setting for code
	temperature := req.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	apiReq := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.TopP > 0 {
		apiReq.TopP = &req.TopP
	}
	if len(req.StopSequences) > 0 {
		apiReq.Stop = req.StopSequences
	}

	payload, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	resp, err := client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		perr := llm.NewProviderError(p.name, llm.ErrCodeUnavailable, err.Error())
		perr.Cause = err
		return nil, perr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, p.parseAPIError(resp.StatusCode, body)
	}

	p.setHealthy(true)

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

	return &llm.CompletionResponse{
		Content:  content,
		Model:    apiResp.Model,
		Provider: p.name,
		Usage: llm.UsageStats{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
		Latency:      time.Since(start),
		FinishReason: finishReason,
	}, nil
}

// HealthCheck reports the last known health state.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthCheckResult, error) {
	result := &llm.HealthCheckResult{
		Status:      llm.HealthStatusHealthy,
		LastChecked: time.Now(),
	}
	if !p.isHealthy() {
		result.Status = llm.HealthStatusUnhealthy
		result.Message = "last request to the DeepSeek API failed"
	}
	return result, nil
}

// EstimateCost estimates request cost using deepseek-chat pricing
// ($0.27/1M input, $1.10/1M output tokens).
func (p *Provider) EstimateCost(req llm.CompletionRequest) *llm.CostEstimate {
	inputTokens := (len(req.SystemPrompt) + len(req.Prompt)) / 4
	outputTokens := req.MaxTokens
	if outputTokens <= 0 {
		outputTokens = DefaultMaxTokens
	}

	const inputPer1K = 0.00027
	const outputPer1K = 0.0011

	return &llm.CostEstimate{
		InputCostPer1K:        inputPer1K,
		OutputCostPer1K:       outputPer1K,
		EstimatedInputTokens:  inputTokens,
		EstimatedOutputTokens: outputTokens,
		TotalEstimate:         float64(inputTokens)/1000*inputPer1K + float64(outputTokens)/1000*outputPer1K,
		Currency:              "USD",
	}
}

// parseAPIError converts an error response body into *llm.ProviderError.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	code := llm.ErrCodeServerError
	switch {
	case statusCode == http.StatusTooManyRequests:
		code = llm.ErrCodeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		code = llm.ErrCodeAuth
	case statusCode == http.StatusNotFound:
		code = llm.ErrCodeModelNotFound
	case statusCode == http.StatusBadRequest:
		code = llm.ErrCodeInvalidRequest
	case statusCode == http.StatusServiceUnavailable:
		code = llm.ErrCodeUnavailable
	}

	perr := llm.NewProviderError(p.name, code, message)
	perr.StatusCode = statusCode
	return perr
}

func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

// Internal API types (OpenAI-compatible wire format).

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
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

// SupportedModels returns the list of known DeepSeek models.
func SupportedModels() []string {
	return []string{ModelChat, ModelReasoner}
}
