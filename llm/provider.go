// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
)

// Provider is the unified interface for all LLM providers.
// Implementations must be safe for concurrent use.
//
// Minimal implementation requires Name(), Type(), Complete(), and
// HealthCheck(). Optional behavior is exposed through the extension
// interfaces below and discovered by type assertion.
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// This is used for routing, logging, and metrics.
	// Example: "anthropic-primary", "openai-backup"
	Name() string

	// Type returns the provider type (e.g., "anthropic", "openai").
	Type() ProviderType

	// Complete generates a completion for the given request.
	// The context should be used for cancellation and timeout.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// HealthCheck verifies the provider is operational.
	// Implementations should check API connectivity and authentication
	// and complete within a reasonable timeout.
	HealthCheck(ctx context.Context) (*HealthCheckResult, error)

	// Capabilities returns the list of features this provider supports.
	// Used by the router to decide if a provider can handle a request.
	Capabilities() []Capability

	// SupportsStreaming indicates if the provider supports streaming
	// responses. If true, the provider should also implement
	// StreamingProvider.
	SupportsStreaming() bool

	// EstimateCost provides a cost estimate for a given request.
	// Returns nil if cost estimation is not supported.
	EstimateCost(req CompletionRequest) *CostEstimate
}

// StreamingProvider extends Provider with streaming support.
// Providers that return SupportsStreaming() == true should implement this.
type StreamingProvider interface {
	Provider

	// CompleteStream generates a streaming completion. The handler is
	// called for each chunk received. Returns the final aggregated
	// response.
	CompleteStream(ctx context.Context, req CompletionRequest, handler StreamHandler) (*CompletionResponse, error)
}

// ConfigurableProvider extends Provider with runtime configuration.
// Implement this interface to allow providers to be reconfigured without
// restart.
type ConfigurableProvider interface {
	Provider

	// Configure updates the provider configuration.
	// This should be safe to call while the provider is in use.
	Configure(config ProviderConfig) error

	// GetConfig returns the current provider configuration.
	GetConfig() ProviderConfig
}

// ProviderConfig contains configuration for creating or updating a
// provider. This is the unified configuration format stored in the
// llm_providers table.
type ProviderConfig struct {
	// Name is the unique identifier for this provider instance.
	Name string `json:"name"`

	// Type identifies the provider implementation to use.
	Type ProviderType `json:"type"`

	// APIKey is the authentication key for the provider API.
	// For AWS Bedrock this may be empty (uses IAM).
	APIKey string `json:"api_key,omitempty"`

	// Endpoint is the API endpoint URL.
	// If empty, provider defaults are used.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the default model to use.
	Model string `json:"model,omitempty"`

	// Region is the cloud region (for AWS Bedrock).
	Region string `json:"region,omitempty"`

	// Enabled indicates if this provider is available for routing.
	Enabled bool `json:"enabled"`

	// Priority determines routing preference (higher = more preferred).
	Priority int `json:"priority,omitempty"`

	// Weight is used for weighted routing strategies.
	Weight int `json:"weight,omitempty"`

	// TimeoutSeconds is the request timeout (0 = default).
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Settings contains provider-specific configuration.
	Settings map[string]any `json:"settings,omitempty"`
}

// ProviderWithInfo extends Provider with info retrieval.
type ProviderWithInfo interface {
	Provider

	// Info returns detailed information about the provider.
	Info() ProviderInfo
}
