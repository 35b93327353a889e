// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"
)

// Router dispatches completion requests to providers based on the request
// action. Each action has a preferred provider type; when that provider is
// missing or unhealthy the router falls back to weighted random selection
// across the remaining healthy providers, with failover on error.
type Router struct {
	registry       *Registry
	weights        map[string]float64
	loadBalancer   *loadBalancer
	metricsTracker *MetricsTracker
	logger         *log.Logger
	mu             sync.RWMutex
}

// ProviderStatus describes a provider as seen by the router.
type ProviderStatus struct {
	Name         string        `json:"name"`
	Type         ProviderType  `json:"type"`
	Healthy      bool          `json:"healthy"`
	Weight       float64       `json:"weight"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	AvgLatencyMS float64       `json:"avg_latency_ms"`
	LastChecked  time.Time     `json:"last_checked,omitempty"`
	CheckLatency time.Duration `json:"check_latency,omitempty"`
}

// NewRouter creates a router over the given registry. Initial weights are
// spread evenly across the registered providers.
func NewRouter(registry *Registry) *Router {
	r := &Router{
		registry:       registry,
		weights:        make(map[string]float64),
		loadBalancer:   newLoadBalancer(),
		metricsTracker: NewMetricsTracker(),
		logger:         log.New(os.Stdout, "[LLM_ROUTER] ", log.LstdFlags),
	}

	names := registry.List()
	if len(names) > 0 {
		even := 1.0 / float64(len(names))
		for _, name := range names {
			r.weights[name] = even
		}
	}

	return r
}

// Route selects a provider for the request and executes the completion.
// Selection order: explicit provider in request metadata, then the action's
// preferred provider type, then weighted random across healthy providers.
func (r *Router) Route(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	provider, err := r.selectProvider(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider selection failed: %w", err)
	}

	start := time.Now()
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		r.metricsTracker.RecordError(provider.Name())

		fallback := r.getFallbackProvider(ctx, provider.Name())
		if fallback == nil {
			return nil, fmt.Errorf("provider %s failed and no fallback available: %w", provider.Name(), err)
		}

		r.logger.Printf("Failing over from %s to %s", provider.Name(), fallback.Name())
		resp, err = fallback.Complete(ctx, req)
		if err != nil {
			r.metricsTracker.RecordError(fallback.Name())
			return nil, fmt.Errorf("all providers failed: %w", err)
		}
		provider = fallback
	}

	r.metricsTracker.RecordSuccess(provider.Name(), time.Since(start))
	resp.Provider = provider.Name()
	return resp, nil
}

// selectProvider picks the provider for a request.
func (r *Router) selectProvider(ctx context.Context, req CompletionRequest) (Provider, error) {
	// Explicit provider override from the caller
	if req.Metadata != nil {
		if name, ok := req.Metadata["provider"].(string); ok && name != "" {
			if provider, err := r.registry.Get(ctx, name); err == nil && r.isUsable(name) {
				return provider, nil
			}
			r.logger.Printf("Warning: requested provider %q not available, falling back to action routing", name)
		}
	}

	// Preferred provider type for the action
	if req.Action != "" {
		preferredType := DefaultProviderForAction(req.Action)
		for _, name := range r.registry.ListByType(preferredType) {
			if !r.isUsable(name) {
				continue
			}
			if provider, err := r.registry.Get(ctx, name); err == nil {
				return provider, nil
			}
		}
	}

	// Weighted random across the remaining usable providers
	usable := r.usableProviders()
	if len(usable) == 0 {
		return nil, fmt.Errorf("no healthy providers available")
	}

	r.mu.RLock()
	selected := r.loadBalancer.Select(usable, r.weights)
	r.mu.RUnlock()

	return r.registry.Get(ctx, selected)
}

// isUsable reports whether a provider is enabled and not known-unhealthy.
// A provider without a cached health result is assumed usable.
func (r *Router) isUsable(name string) bool {
	if config, err := r.registry.GetConfig(name); err == nil && !config.Enabled {
		return false
	}
	result := r.registry.GetHealthResult(name)
	return result == nil || result.Status != HealthStatusUnhealthy
}

// usableProviders returns the sorted names of providers eligible for
// weighted selection.
func (r *Router) usableProviders() []string {
	var names []string
	for _, name := range r.registry.List() {
		if r.isUsable(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// getFallbackProvider returns any usable provider other than the failed one.
func (r *Router) getFallbackProvider(ctx context.Context, failedProvider string) Provider {
	for _, name := range r.usableProviders() {
		if name == failedProvider {
			continue
		}
		if provider, err := r.registry.Get(ctx, name); err == nil {
			return provider
		}
	}
	return nil
}

// GetProviderStatus returns the status of all registered providers.
func (r *Router) GetProviderStatus() map[string]ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]ProviderStatus)
	for _, name := range r.registry.List() {
		metrics := r.metricsTracker.GetMetrics(name)

		s := ProviderStatus{
			Name:         name,
			Healthy:      r.isUsable(name),
			Weight:       r.weights[name],
			RequestCount: metrics.RequestCount,
			ErrorCount:   metrics.ErrorCount,
			AvgLatencyMS: metrics.AvgLatencyMS,
		}
		if config, err := r.registry.GetConfig(name); err == nil {
			s.Type = config.Type
		}
		if result := r.registry.GetHealthResult(name); result != nil {
			s.LastChecked = result.LastChecked
			s.CheckLatency = result.Latency
		}
		status[name] = s
	}
	return status
}

// UpdateWeights updates the routing weights. Weights must be in [0, 1]
// per provider and sum to 1.0 (small floating point error allowed).
func (r *Router) UpdateWeights(weights map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0.0
	for provider, weight := range weights {
		if !r.registry.Has(provider) {
			return fmt.Errorf("unknown provider: %s", provider)
		}
		if weight < 0 || weight > 1 {
			return fmt.Errorf("invalid weight for %s: %f", provider, weight)
		}
		total += weight
	}

	if total > 1.01 || total < 0.99 {
		return fmt.Errorf("weights must sum to 1.0, got %f", total)
	}

	for provider, weight := range weights {
		r.weights[provider] = weight
	}
	return nil
}

// IsHealthy reports whether the router has at least one usable provider.
func (r *Router) IsHealthy() bool {
	return len(r.usableProviders()) > 0
}

// Metrics returns per-provider request metrics.
func (r *Router) Metrics() map[string]ProviderMetrics {
	return r.metricsTracker.All()
}

// loadBalancer performs weighted random provider selection.
type loadBalancer struct {
	random *rand.Rand
	mu     sync.Mutex
}

func newLoadBalancer() *loadBalancer {
	return &loadBalancer{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select picks a provider by weighted random choice. Providers with no
// weight still get an equal share when all weights are zero.
func (l *loadBalancer) Select(providers []string, weights map[string]float64) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	totalWeight := 0.0
	for _, p := range providers {
		totalWeight += weights[p]
	}

	if totalWeight <= 0 {
		return providers[l.random.Intn(len(providers))]
	}

	roll := l.random.Float64() * totalWeight
	for _, p := range providers {
		roll -= weights[p]
		if roll <= 0 {
			return p
		}
	}

	return providers[0]
}

// ProviderMetrics holds request counters for a single provider.
type ProviderMetrics struct {
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// MetricsTracker tracks per-provider request metrics.
type MetricsTracker struct {
	metrics map[string]*ProviderMetrics
	mu      sync.RWMutex
}

// NewMetricsTracker creates an empty metrics tracker.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		metrics: make(map[string]*ProviderMetrics),
	}
}

// RecordSuccess records a successful request and folds the latency into
// the running average.
func (t *MetricsTracker) RecordSuccess(provider string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, exists := t.metrics[provider]
	if !exists {
		m = &ProviderMetrics{}
		t.metrics[provider] = m
	}

	m.RequestCount++
	totalMS := m.AvgLatencyMS*float64(m.RequestCount-1) + float64(latency.Milliseconds())
	m.AvgLatencyMS = totalMS / float64(m.RequestCount)
}

// RecordError records a failed request.
func (t *MetricsTracker) RecordError(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, exists := t.metrics[provider]
	if !exists {
		m = &ProviderMetrics{}
		t.metrics[provider] = m
	}
	m.ErrorCount++
}

// GetMetrics returns a copy of the metrics for a provider.
func (t *MetricsTracker) GetMetrics(provider string) ProviderMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if m, exists := t.metrics[provider]; exists {
		return *m
	}
	return ProviderMetrics{}
}

// All returns a copy of the metrics for every tracked provider.
func (t *MetricsTracker) All() map[string]ProviderMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ProviderMetrics, len(t.metrics))
	for name, m := range t.metrics {
		out[name] = *m
	}
	return out
}
