// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// MockProvider is a mock implementation of the Provider interface for testing.
type MockProvider struct {
	name            string
	providerType    ProviderType
	capabilities    []Capability
	streaming       bool
	healthStatus    HealthStatus
	completeResp    *CompletionResponse
	completeErr     error
	healthCheckResp *HealthCheckResult
	healthCheckErr  error
	costEstimate    *CostEstimate
	completeCalls   int
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	return m.name
}

// Type implements Provider.
func (m *MockProvider) Type() ProviderType {
	return m.providerType
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.completeCalls++
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	if m.completeResp != nil {
		return m.completeResp, nil
	}
	return &CompletionResponse{
		Content: "Mock response to: " + req.Prompt,
		Model:   "mock-model",
		Usage: UsageStats{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
		Latency: 100 * time.Millisecond,
	}, nil
}

// HealthCheck implements Provider.
func (m *MockProvider) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	if m.healthCheckErr != nil {
		return nil, m.healthCheckErr
	}
	if m.healthCheckResp != nil {
		return m.healthCheckResp, nil
	}
	return &HealthCheckResult{
		Status:      m.healthStatus,
		Latency:     50 * time.Millisecond,
		LastChecked: time.Now(),
	}, nil
}

// Capabilities implements Provider.
func (m *MockProvider) Capabilities() []Capability {
	if m.capabilities != nil {
		return m.capabilities
	}
	return []Capability{CapabilityChat, CapabilityCompletion}
}

// SupportsStreaming implements Provider.
func (m *MockProvider) SupportsStreaming() bool {
	return m.streaming
}

// EstimateCost implements Provider.
func (m *MockProvider) EstimateCost(req CompletionRequest) *CostEstimate {
	return m.costEstimate
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider(name string, providerType ProviderType) *MockProvider {
	return &MockProvider{
		name:         name,
		providerType: providerType,
		healthStatus: HealthStatusHealthy,
	}
}

// TestProviderInterface verifies that MockProvider correctly implements Provider.
func TestProviderInterface(t *testing.T) {
	var _ Provider = (*MockProvider)(nil)
}

func TestMockProvider_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("successful completion", func(t *testing.T) {
		provider := NewMockProvider("test", ProviderTypeOpenAI)
		req := CompletionRequest{Prompt: "Hello, world!"}

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.Content == "" {
			t.Error("Complete() returned empty content")
		}
		if resp.Usage.TotalTokens != 15 {
			t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
		}
	})

	t.Run("error response carries provider error", func(t *testing.T) {
		provider := NewMockProvider("test", ProviderTypeOpenAI)
		provider.completeErr = NewProviderError("openai", ErrCodeRateLimit, "rate limit exceeded")

		_, err := provider.Complete(ctx, CompletionRequest{Prompt: "Test"})
		if err == nil {
			t.Fatal("Complete() expected error, got nil")
		}

		var provErr *ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("expected ProviderError, got %T", err)
		}
		if provErr.Code != ErrCodeRateLimit {
			t.Errorf("error code = %q, want %q", provErr.Code, ErrCodeRateLimit)
		}
		if !provErr.Retryable {
			t.Error("rate limit errors should be retryable")
		}
	})
}

func TestProviderError(t *testing.T) {
	t.Run("error string without status", func(t *testing.T) {
		err := NewProviderError("anthropic", ErrCodeAuth, "invalid key")
		want := "anthropic error: invalid key"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("error string with status", func(t *testing.T) {
		err := &ProviderError{Provider: "openai", Code: ErrCodeServerError, Message: "boom", StatusCode: 500}
		want := "openai error (status 500): boom"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		cause := errors.New("network down")
		err := &ProviderError{Provider: "openai", Code: ErrCodeUnavailable, Message: "unavailable", Cause: cause}
		if !errors.Is(err, cause) {
			t.Error("Unwrap should expose the cause")
		}
	})

	t.Run("retryable codes", func(t *testing.T) {
		retryable := []string{ErrCodeRateLimit, ErrCodeServerError, ErrCodeTimeout, ErrCodeUnavailable}
		for _, code := range retryable {
			if !isRetryableCode(code) {
				t.Errorf("code %q should be retryable", code)
			}
		}
		notRetryable := []string{ErrCodeAuth, ErrCodeInvalidRequest, ErrCodeModelNotFound, ErrCodeContentFilter}
		for _, code := range notRetryable {
			if isRetryableCode(code) {
				t.Errorf("code %q should not be retryable", code)
			}
		}
	})
}

func TestDefaultProviderForAction(t *testing.T) {
	tests := []struct {
		action   Action
		expected ProviderType
	}{
		{ActionReasoning, ProviderTypeAnthropic},
		{ActionAnalysis, ProviderTypeAnthropic},
		{ActionGenerateText, ProviderTypeOpenAI},
		{ActionCodeGeneration, ProviderTypeOpenAI},
		{ActionFastCoding, ProviderTypeDeepSeek},
		{Action("unknown"), ProviderTypeAnthropic},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := DefaultProviderForAction(tt.action); got != tt.expected {
				t.Errorf("DefaultProviderForAction(%s) = %v, want %v", tt.action, got, tt.expected)
			}
		})
	}
}
