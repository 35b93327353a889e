// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genesis_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"route"},
	)
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_llm_calls_total",
			Help: "Total number of LLM provider calls",
		},
		[]string{"provider", "status"},
	)
	promLLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_llm_tokens_total",
			Help: "Total tokens consumed per provider",
		},
		[]string{"provider"},
	)
	promLLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_llm_cost_dollars_total",
			Help: "Estimated provider spend in dollars",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promLLMTokens)
	prometheus.MustRegister(promLLMCost)
}

// maxSamples bounds the per-route latency window used for percentiles.
const maxSamples = 1000

// MetricsCollector aggregates request and provider metrics. Prometheus
// counters are updated on every record; the JSON snapshot backs the
// legacy /metrics endpoint.
type MetricsCollector struct {
	mu        sync.RWMutex
	started   time.Time
	routes    map[string]*routeMetrics
	providers map[string]*providerMetrics
}

type routeMetrics struct {
	Total     int64
	Success   int64
	Errors    int64
	latencies []float64
}

type providerMetrics struct {
	Calls  int64
	Errors int64
	Tokens int64
	Cost   float64
}

// RouteSnapshot is the exported view of one route's metrics.
type RouteSnapshot struct {
	Total   int64   `json:"total_requests"`
	Success int64   `json:"success_count"`
	Errors  int64   `json:"error_count"`
	AvgMS   float64 `json:"avg_response_time_ms"`
	P50MS   float64 `json:"p50_response_time_ms"`
	P95MS   float64 `json:"p95_response_time_ms"`
	P99MS   float64 `json:"p99_response_time_ms"`
}

// ProviderSnapshot is the exported view of one provider's usage.
type ProviderSnapshot struct {
	Calls  int64   `json:"call_count"`
	Errors int64   `json:"error_count"`
	Tokens int64   `json:"total_tokens"`
	Cost   float64 `json:"total_cost"`
}

// MetricsSnapshot is the JSON payload of the /metrics endpoint.
type MetricsSnapshot struct {
	UptimeSeconds int64                       `json:"uptime_seconds"`
	TotalRequests int64                       `json:"total_requests"`
	Routes        map[string]RouteSnapshot    `json:"routes"`
	Providers     map[string]ProviderSnapshot `json:"providers"`
	CollectedAt   time.Time                   `json:"collected_at"`
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		started:   time.Now(),
		routes:    make(map[string]*routeMetrics),
		providers: make(map[string]*providerMetrics),
	}
}

// RecordRequest records one handled HTTP request.
func (c *MetricsCollector) RecordRequest(route string, status int, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	promRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	promRequestDuration.WithLabelValues(route).Observe(ms)

	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.routes[route]
	if !ok {
		rm = &routeMetrics{latencies: make([]float64, 0, maxSamples)}
		c.routes[route] = rm
	}

	rm.Total++
	if status < 400 {
		rm.Success++
	} else {
		rm.Errors++
	}

	rm.latencies = append(rm.latencies, ms)
	if len(rm.latencies) > maxSamples {
		rm.latencies = rm.latencies[len(rm.latencies)-maxSamples:]
	}
}

// RecordLLMCall records one provider call with its token and cost tally.
func (c *MetricsCollector) RecordLLMCall(provider string, tokens int, cost float64, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	promLLMCalls.WithLabelValues(provider, status).Inc()
	promLLMTokens.WithLabelValues(provider).Add(float64(tokens))
	promLLMCost.WithLabelValues(provider).Add(cost)

	c.mu.Lock()
	defer c.mu.Unlock()

	pm, ok := c.providers[provider]
	if !ok {
		pm = &providerMetrics{}
		c.providers[provider] = pm
	}

	pm.Calls++
	if failed {
		pm.Errors++
	}
	pm.Tokens += int64(tokens)
	pm.Cost += cost
}

// Snapshot returns a copy of the collected metrics with derived
// percentiles.
func (c *MetricsCollector) Snapshot() *MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &MetricsSnapshot{
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
		Routes:        make(map[string]RouteSnapshot, len(c.routes)),
		Providers:     make(map[string]ProviderSnapshot, len(c.providers)),
		CollectedAt:   time.Now().UTC(),
	}

	for route, rm := range c.routes {
		sorted := make([]float64, len(rm.latencies))
		copy(sorted, rm.latencies)
		sort.Float64s(sorted)

		snapshot.Routes[route] = RouteSnapshot{
			Total:   rm.Total,
			Success: rm.Success,
			Errors:  rm.Errors,
			AvgMS:   mean(sorted),
			P50MS:   percentile(sorted, 50),
			P95MS:   percentile(sorted, 95),
			P99MS:   percentile(sorted, 99),
		}
		snapshot.TotalRequests += rm.Total
	}

	for provider, pm := range c.providers {
		snapshot.Providers[provider] = ProviderSnapshot(*pm)
	}

	return snapshot
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// percentile expects a sorted slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) * p) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
