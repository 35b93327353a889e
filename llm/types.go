// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a unified interface and types for the LLM providers
// Genesis relays generation work to. Agents never talk to a provider API
// directly; they describe the intent of a request with an Action and the
// router picks the provider wired to that action.
package llm

import (
	"fmt"
	"time"
)

// ProviderType identifies the type of LLM provider.
// Standard types are defined as constants, but custom types can be used
// for self-hosted or third-party providers.
type ProviderType string

// Standard provider types supported out of the box.
const (
	// ProviderTypeAnthropic represents Anthropic's Claude models.
	ProviderTypeAnthropic ProviderType = "anthropic"

	// ProviderTypeOpenAI represents OpenAI's GPT models.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeDeepSeek represents DeepSeek's models (OpenAI-compatible API).
	ProviderTypeDeepSeek ProviderType = "deepseek"

	// ProviderTypeBedrock represents AWS Bedrock managed models.
	ProviderTypeBedrock ProviderType = "bedrock"

	// ProviderTypeCustom represents a custom/third-party provider.
	ProviderTypeCustom ProviderType = "custom"
)

// Action describes the intent of a completion request. The router maps
// each action to the provider best suited for it.
type Action string

const (
	// ActionReasoning is deep architectural and requirements reasoning.
	ActionReasoning Action = "reasoning"

	// ActionAnalysis is structured analysis of an existing design.
	ActionAnalysis Action = "analysis"

	// ActionGenerateText is general text generation (docs, descriptions).
	ActionGenerateText Action = "generate_text"

	// ActionCodeGeneration is full source file generation.
	ActionCodeGeneration Action = "code_generation"

	// ActionFastCoding is quick, low-latency code completion.
	ActionFastCoding Action = "fast_coding"
)

// DefaultProviderForAction returns the provider type each action is wired
// to when no explicit routing rule overrides it.
func DefaultProviderForAction(action Action) ProviderType {
	switch action {
	case ActionReasoning, ActionAnalysis:
		return ProviderTypeAnthropic
	case ActionGenerateText, ActionCodeGeneration:
		return ProviderTypeOpenAI
	case ActionFastCoding:
		return ProviderTypeDeepSeek
	default:
		return ProviderTypeAnthropic
	}
}

// CompletionRequest encapsulates all parameters for an LLM completion
// request. This is the unified request type used across all providers.
type CompletionRequest struct {
	// Prompt is the user's input text.
	Prompt string `json:"prompt"`

	// SystemPrompt is an optional system message that sets context/behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Action declares the intent of the request for routing purposes.
	Action Action `json:"action,omitempty"`

	// MaxTokens limits the maximum number of tokens in the response.
	// If 0, provider defaults are used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero is valid (deterministic);
	// only negative values fall back to provider defaults.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP is the nucleus sampling parameter (0.0 to 1.0).
	TopP float64 `json:"top_p,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// StopSequences are strings that cause generation to stop.
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Stream enables streaming response mode.
	Stream bool `json:"stream,omitempty"`

	// Metadata contains provider-specific options.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse contains the result of an LLM completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string `json:"content"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// Provider is the name of the provider instance that served the request.
	Provider string `json:"provider,omitempty"`

	// Usage contains token usage statistics.
	Usage UsageStats `json:"usage"`

	// Latency is the time taken to generate the response.
	Latency time.Duration `json:"latency"`

	// FinishReason indicates why generation stopped.
	// Common values: "stop", "max_tokens", "content_filter".
	FinishReason string `json:"finish_reason,omitempty"`

	// Metadata contains provider-specific response data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UsageStats tracks token usage for billing and monitoring.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// Type identifies the chunk type: "content", "done", or "error".
	Type string `json:"type"`

	// Content is the text content of this chunk.
	Content string `json:"content,omitempty"`

	// Done indicates this is the final chunk.
	Done bool `json:"done"`

	// Error contains error information if Type is "error".
	Error string `json:"error,omitempty"`
}

// StreamHandler is a callback function for processing streaming chunks.
// Return an error to abort the stream.
type StreamHandler func(chunk StreamChunk) error

// HealthStatus represents the health state of a provider.
type HealthStatus string

const (
	// HealthStatusHealthy indicates the provider is operational.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded indicates the provider is working but with issues.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy indicates the provider is not operational.
	HealthStatusUnhealthy HealthStatus = "unhealthy"

	// HealthStatusUnknown indicates health status hasn't been checked.
	HealthStatusUnknown HealthStatus = "unknown"
)

// HealthCheckResult contains detailed health check information.
type HealthCheckResult struct {
	Status      HealthStatus  `json:"status"`
	Latency     time.Duration `json:"latency"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`

	// ConsecutiveFailures tracks recent failures for failover decisions.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`
}

// Capability represents a specific feature supported by a provider.
type Capability string

// Standard capabilities that providers may support.
const (
	CapabilityChat           Capability = "chat"
	CapabilityCompletion     Capability = "completion"
	CapabilityStreaming      Capability = "streaming"
	CapabilityReasoning      Capability = "reasoning"
	CapabilityCodeGeneration Capability = "code_generation"
	CapabilityLongContext    Capability = "long_context"
)

// ProviderInfo contains metadata about a registered provider.
type ProviderInfo struct {
	Name            string            `json:"name"`
	Type            ProviderType      `json:"type"`
	Capabilities    []Capability      `json:"capabilities"`
	DefaultModel    string            `json:"default_model"`
	SupportedModels []string          `json:"supported_models,omitempty"`
	Health          HealthCheckResult `json:"health"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// CostEstimate provides estimated costs for a request.
type CostEstimate struct {
	InputCostPer1K        float64 `json:"input_cost_per_1k"`
	OutputCostPer1K       float64 `json:"output_cost_per_1k"`
	EstimatedInputTokens  int     `json:"estimated_input_tokens"`
	EstimatedOutputTokens int     `json:"estimated_output_tokens"`
	TotalEstimate         float64 `json:"total_estimate"`
	Currency              string  `json:"currency"`
}

// ProviderError represents an error from an LLM provider.
type ProviderError struct {
	// Provider is the name of the provider that returned the error.
	Provider string `json:"provider"`

	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// StatusCode is the HTTP status code (if applicable).
	StatusCode int `json:"status_code,omitempty"`

	// Retryable indicates if the request can be retried.
	Retryable bool `json:"retryable"`

	// Cause is the underlying error (if any).
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Common error codes.
const (
	// ErrCodeRateLimit indicates rate limiting.
	ErrCodeRateLimit = "rate_limit"

	// ErrCodeAuth indicates authentication failure.
	ErrCodeAuth = "authentication_error"

	// ErrCodeInvalidRequest indicates a malformed request.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeModelNotFound indicates the requested model doesn't exist.
	ErrCodeModelNotFound = "model_not_found"

	// ErrCodeContextLength indicates input exceeds the context window.
	ErrCodeContextLength = "context_length_exceeded"

	// ErrCodeContentFilter indicates content was filtered.
	ErrCodeContentFilter = "content_filter"

	// ErrCodeServerError indicates a provider server error.
	ErrCodeServerError = "server_error"

	// ErrCodeTimeout indicates a request timeout.
	ErrCodeTimeout = "timeout"

	// ErrCodeUnavailable indicates the provider is unavailable.
	ErrCodeUnavailable = "unavailable"
)

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: isRetryableCode(code),
	}
}

// isRetryableCode determines if an error code is retryable.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimit, ErrCodeServerError, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}
