// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"genesis/backend/llm"
)

func init() {
	llm.RegisterFactory(llm.ProviderTypeAnthropic, NewFromProviderConfig)
}

// Provider adapts the Anthropic client to the unified llm.Provider
// interface used by the router.
type Provider struct {
	name   string
	client *Client
}

// Interface guards.
var (
	_ llm.Provider          = (*Provider)(nil)
	_ llm.StreamingProvider = (*Provider)(nil)
)

// New creates an Anthropic provider with the given instance name.
func New(name string, cfg Config) (*Provider, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "anthropic"
	}
	return &Provider{name: name, client: client}, nil
}

// NewFromProviderConfig creates a provider from unified registry
// configuration. Registered as the factory for llm.ProviderTypeAnthropic.
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

// Client returns the underlying API client. Used in tests to swap the
// HTTP client.
func (p *Provider) Client() *Client {
	return p.client
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeAnthropic
}

func (p *Provider) SupportsStreaming() bool {
	return true
}

func (p *Provider) Capabilities() []llm.Capability {
	return []llm.Capability{
		llm.CapabilityChat,
		llm.CapabilityCompletion,
		llm.CapabilityStreaming,
		llm.CapabilityReasoning,
		llm.CapabilityCodeGeneration,
		llm.CapabilityLongContext,
	}
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.Model != "" && !IsValidModel(req.Model) {
		return nil, &llm.ProviderError{
			Provider: p.name,
			Code:     llm.ErrCodeModelNotFound,
			Message:  "not a Claude model: " + req.Model,
		}
	}

	resp, err := p.client.Complete(ctx, toClientRequest(req))
	if err != nil {
		return nil, p.wrapError(err)
	}
	return p.toUnifiedResponse(resp), nil
}

// CompleteStream generates a streaming completion.
func (p *Provider) CompleteStream(ctx context.Context, req llm.CompletionRequest, handler llm.StreamHandler) (*llm.CompletionResponse, error) {
	resp, err := p.client.CompleteStream(ctx, toClientRequest(req), func(chunk StreamChunk) error {
		if handler == nil {
			return nil
		}
		if chunk.Done {
			return handler(llm.StreamChunk{Type: "done", Done: true})
		}
		return handler(llm.StreamChunk{Type: "content", Content: chunk.Content})
	})
	if err != nil {
		return nil, p.wrapError(err)
	}
	return p.toUnifiedResponse(resp), nil
}

// HealthCheck reports the last known health state. The Messages API has
// no cheap probe endpoint, so health flips on observed request failures
// rather than an active ping.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthCheckResult, error) {
	result := &llm.HealthCheckResult{
		Status:      llm.HealthStatusHealthy,
		LastChecked: time.Now(),
	}
	if !p.client.IsHealthy() {
		result.Status = llm.HealthStatusUnhealthy
		result.Message = "last request to the Anthropic API failed"
	}
	return result, nil
}

// EstimateCost estimates request cost using Claude Sonnet pricing
// ($3/1M input, $15/1M output tokens).
func (p *Provider) EstimateCost(req llm.CompletionRequest) *llm.CostEstimate {
	inputTokens := estimateTokens(req.SystemPrompt) + estimateTokens(req.Prompt)
	outputTokens := req.MaxTokens
	if outputTokens <= 0 {
		outputTokens = DefaultMaxTokens
	}

	const inputPer1K = 0.003
	const outputPer1K = 0.015

	return &llm.CostEstimate{
		InputCostPer1K:        inputPer1K,
		OutputCostPer1K:       outputPer1K,
		EstimatedInputTokens:  inputTokens,
		EstimatedOutputTokens: outputTokens,
		TotalEstimate:         float64(inputTokens)/1000*inputPer1K + float64(outputTokens)/1000*outputPer1K,
		Currency:              "USD",
	}
}

// estimateTokens approximates token count at 4 characters per token.
func estimateTokens(text string) int {
	return len(text) / 4
}

func toClientRequest(req llm.CompletionRequest) Request {
	return Request{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Model:         req.Model,
		StopSequences: req.StopSequences,
	}
}

func (p *Provider) toUnifiedResponse(resp *Response) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Content:  resp.Content,
		Model:    resp.Model,
		Provider: p.name,
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: mapStopReason(resp.StopReason),
	}
}

// mapStopReason converts Anthropic stop reasons to unified finish reasons.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "max_tokens"
	default:
		return reason
	}
}

// wrapError converts client errors into *llm.ProviderError with a
// machine-readable code.
func (p *Provider) wrapError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		perr := llm.NewProviderError(p.name, llm.ErrCodeUnavailable, err.Error())
		perr.Cause = err
		return perr
	}

	code := llm.ErrCodeServerError
	switch {
	case apiErr.IsRateLimitError():
		code = llm.ErrCodeRateLimit
	case apiErr.IsAuthError():
		code = llm.ErrCodeAuth
	case apiErr.IsOverloadedError():
		code = llm.ErrCodeUnavailable
	case apiErr.StatusCode == http.StatusBadRequest:
		code = llm.ErrCodeInvalidRequest
	case apiErr.StatusCode == http.StatusNotFound:
		code = llm.ErrCodeModelNotFound
	}

	perr := llm.NewProviderError(p.name, code, apiErr.Message)
	perr.StatusCode = apiErr.StatusCode
	perr.Cause = apiErr
	return perr
}
