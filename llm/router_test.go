// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setupRouterRegistry(t *testing.T, providers map[string]*MockProvider) *Registry {
	t.Helper()
	r := setupTestRegistry(t)
	for name, p := range providers {
		config := &ProviderConfig{Name: name, Type: p.Type(), APIKey: "sk", Enabled: true}
		if err := r.RegisterProvider(name, p, config); err != nil {
			t.Fatalf("RegisterProvider(%s) error = %v", name, err)
		}
	}
	return r
}

func TestRouter_ActionRouting(t *testing.T) {
	ctx := context.Background()

	anthropicMock := NewMockProvider("anthropic-primary", ProviderTypeAnthropic)
	openaiMock := NewMockProvider("openai-primary", ProviderTypeOpenAI)
	deepseekMock := NewMockProvider("deepseek-primary", ProviderTypeDeepSeek)

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": anthropicMock,
		"openai-primary":    openaiMock,
		"deepseek-primary":  deepseekMock,
	})
	router := NewRouter(registry)

	tests := []struct {
		action   Action
		expected string
	}{
		{ActionReasoning, "anthropic-primary"},
		{ActionAnalysis, "anthropic-primary"},
		{ActionGenerateText, "openai-primary"},
		{ActionCodeGeneration, "openai-primary"},
		{ActionFastCoding, "deepseek-primary"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			resp, err := router.Route(ctx, CompletionRequest{Prompt: "hello", Action: tt.action})
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if resp.Provider != tt.expected {
				t.Errorf("Provider = %q, want %q", resp.Provider, tt.expected)
			}
		})
	}
}

func TestRouter_ExplicitProviderOverride(t *testing.T) {
	ctx := context.Background()

	anthropicMock := NewMockProvider("anthropic-primary", ProviderTypeAnthropic)
	openaiMock := NewMockProvider("openai-primary", ProviderTypeOpenAI)

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": anthropicMock,
		"openai-primary":    openaiMock,
	})
	router := NewRouter(registry)

	// Reasoning would normally go to anthropic; metadata overrides it
	resp, err := router.Route(ctx, CompletionRequest{
		Prompt:   "hello",
		Action:   ActionReasoning,
		Metadata: map[string]any{"provider": "openai-primary"},
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Provider != "openai-primary" {
		t.Errorf("Provider = %q, want openai-primary", resp.Provider)
	}
}

func TestRouter_Failover(t *testing.T) {
	ctx := context.Background()

	failing := NewMockProvider("anthropic-primary", ProviderTypeAnthropic)
	failing.completeErr = NewProviderError("anthropic-primary", ErrCodeServerError, "upstream 500")
	backup := NewMockProvider("openai-primary", ProviderTypeOpenAI)

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": failing,
		"openai-primary":    backup,
	})
	router := NewRouter(registry)

	resp, err := router.Route(ctx, CompletionRequest{Prompt: "hello", Action: ActionReasoning})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Provider != "openai-primary" {
		t.Errorf("Provider = %q, want failover to openai-primary", resp.Provider)
	}

	metrics := router.Metrics()
	if metrics["anthropic-primary"].ErrorCount != 1 {
		t.Errorf("failed provider ErrorCount = %d, want 1", metrics["anthropic-primary"].ErrorCount)
	}
	if metrics["openai-primary"].RequestCount != 1 {
		t.Errorf("fallback provider RequestCount = %d, want 1", metrics["openai-primary"].RequestCount)
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	ctx := context.Background()

	p1 := NewMockProvider("anthropic-primary", ProviderTypeAnthropic)
	p1.completeErr = errors.New("down")
	p2 := NewMockProvider("openai-primary", ProviderTypeOpenAI)
	p2.completeErr = errors.New("also down")

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": p1,
		"openai-primary":    p2,
	})
	router := NewRouter(registry)

	_, err := router.Route(ctx, CompletionRequest{Prompt: "hello", Action: ActionReasoning})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
}

func TestRouter_SkipsUnhealthyProvider(t *testing.T) {
	ctx := context.Background()

	sick := NewMockProvider("anthropic-primary", ProviderTypeAnthropic)
	sick.healthStatus = HealthStatusUnhealthy
	healthy := NewMockProvider("openai-primary", ProviderTypeOpenAI)

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": sick,
		"openai-primary":    healthy,
	})
	// Populate the health cache so the router sees the unhealthy state
	registry.HealthCheck(ctx)

	router := NewRouter(registry)

	resp, err := router.Route(ctx, CompletionRequest{Prompt: "hello", Action: ActionReasoning})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Provider != "openai-primary" {
		t.Errorf("Provider = %q, want openai-primary (unhealthy skipped)", resp.Provider)
	}
	if sick.completeCalls != 0 {
		t.Errorf("unhealthy provider was called %d times", sick.completeCalls)
	}
}

func TestRouter_UpdateWeights(t *testing.T) {
	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": NewMockProvider("anthropic-primary", ProviderTypeAnthropic),
		"openai-primary":    NewMockProvider("openai-primary", ProviderTypeOpenAI),
	})
	router := NewRouter(registry)

	t.Run("valid weights", func(t *testing.T) {
		err := router.UpdateWeights(map[string]float64{
			"anthropic-primary": 0.7,
			"openai-primary":    0.3,
		})
		if err != nil {
			t.Fatalf("UpdateWeights() error = %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		err := router.UpdateWeights(map[string]float64{"ghost": 1.0})
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})

	t.Run("weight out of range", func(t *testing.T) {
		err := router.UpdateWeights(map[string]float64{
			"anthropic-primary": 1.5,
			"openai-primary":    -0.5,
		})
		if err == nil {
			t.Fatal("expected error for out of range weight")
		}
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		err := router.UpdateWeights(map[string]float64{
			"anthropic-primary": 0.5,
			"openai-primary":    0.2,
		})
		if err == nil {
			t.Fatal("expected error for weights not summing to 1.0")
		}
	})

	t.Run("small floating point error tolerated", func(t *testing.T) {
		err := router.UpdateWeights(map[string]float64{
			"anthropic-primary": 0.333,
			"openai-primary":    0.667,
		})
		if err != nil {
			t.Fatalf("UpdateWeights() error = %v", err)
		}
	})
}

func TestRouter_GetProviderStatus(t *testing.T) {
	ctx := context.Background()

	registry := setupRouterRegistry(t, map[string]*MockProvider{
		"anthropic-primary": NewMockProvider("anthropic-primary", ProviderTypeAnthropic),
	})
	registry.HealthCheck(ctx)
	router := NewRouter(registry)

	if _, err := router.Route(ctx, CompletionRequest{Prompt: "hi", Action: ActionReasoning}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	status := router.GetProviderStatus()
	s, ok := status["anthropic-primary"]
	if !ok {
		t.Fatal("status missing anthropic-primary")
	}
	if !s.Healthy {
		t.Error("provider should be healthy")
	}
	if s.Type != ProviderTypeAnthropic {
		t.Errorf("Type = %v, want anthropic", s.Type)
	}
	if s.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", s.RequestCount)
	}
	if s.LastChecked.IsZero() {
		t.Error("LastChecked should be set after a health check")
	}
}

func TestRouter_IsHealthy(t *testing.T) {
	ctx := context.Background()

	sick := NewMockProvider("only", ProviderTypeAnthropic)
	sick.healthStatus = HealthStatusUnhealthy

	registry := setupRouterRegistry(t, map[string]*MockProvider{"only": sick})
	router := NewRouter(registry)

	// Without a health check the provider is assumed usable
	if !router.IsHealthy() {
		t.Error("router should assume unchecked providers are usable")
	}

	registry.HealthCheck(ctx)
	if router.IsHealthy() {
		t.Error("router should be unhealthy after the check records failure")
	}
}

func TestLoadBalancer_Select(t *testing.T) {
	lb := newLoadBalancer()
	providers := []string{"a", "b", "c"}

	t.Run("zero weights fall back to uniform", func(t *testing.T) {
		weights := map[string]float64{}
		for i := 0; i < 50; i++ {
			selected := lb.Select(providers, weights)
			found := false
			for _, p := range providers {
				if p == selected {
					found = true
				}
			}
			if !found {
				t.Fatalf("Select returned unknown provider %q", selected)
			}
		}
	})

	t.Run("full weight always wins", func(t *testing.T) {
		weights := map[string]float64{"a": 0, "b": 1.0, "c": 0}
		for i := 0; i < 50; i++ {
			if selected := lb.Select(providers, weights); selected != "b" {
				t.Fatalf("Select = %q, want b", selected)
			}
		}
	})
}

func TestMetricsTracker(t *testing.T) {
	tracker := NewMetricsTracker()

	tracker.RecordSuccess("p", 100*time.Millisecond)
	tracker.RecordSuccess("p", 300*time.Millisecond)
	tracker.RecordError("p")

	m := tracker.GetMetrics("p")
	if m.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", m.RequestCount)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m.AvgLatencyMS != 200 {
		t.Errorf("AvgLatencyMS = %f, want 200", m.AvgLatencyMS)
	}

	if got := tracker.GetMetrics("unknown"); got.RequestCount != 0 {
		t.Error("unknown provider should return zero metrics")
	}
}
