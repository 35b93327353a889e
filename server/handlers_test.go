// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesis/backend/llm"
)

// codeRouter answers every completion with a path-tagged code block so
// the generators produce files.
type codeRouter struct {
	calls atomic.Int64
}

func (r *codeRouter) Route(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	n := r.calls.Add(1)
	content := fmt.Sprintf("```python path=generated/file_%d.py\nprint(%d)\n```", n, n)
	return &llm.CompletionResponse{
		Content:  content,
		Model:    "stub-model",
		Provider: "stub-provider",
		Usage:    llm.UsageStats{TotalTokens: 42},
	}, nil
}

type fakeProviderAdmin struct {
	weights map[string]float64
	healthy bool
}

func (f *fakeProviderAdmin) GetProviderStatus() map[string]llm.ProviderStatus {
	return map[string]llm.ProviderStatus{
		"stub-provider": {Name: "stub-provider", Healthy: f.healthy},
	}
}

func (f *fakeProviderAdmin) UpdateWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("no weights given")
	}
	f.weights = weights
	return nil
}

func (f *fakeProviderAdmin) IsHealthy() bool { return f.healthy }

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Router == nil {
		opts.Router = &codeRouter{}
	}
	if opts.Providers == nil {
		opts.Providers = &fakeProviderAdmin{healthy: true}
	}
	return New(opts)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := doJSON(t, s.Handler(), "GET", "/health", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "genesis-backend", payload["service"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_AgentCatalog(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := doJSON(t, s.Handler(), "GET", "/api/v1/agents", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	catalog := payload["agents"].([]any)
	require.Len(t, catalog, 6)

	first := catalog[0].(map[string]any)
	assert.Equal(t, "architect", first["id"])
	assert.NotEmpty(t, first["capabilities"])
}

func TestServer_ExecuteTask(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent": "architect",
		"task":  "analyze_backend_requirements",
		"params": map[string]any{
			"description": "an online store",
		},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["success"])

	// Unknown agent
	rec = doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent": "frontend", "task": "anything",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown task
	rec = doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent": "architect", "task": "paint_a_picture",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Generate(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/generate", map[string]any{
		"config": map[string]any{
			"project_name": "shop",
			"framework":    "fastapi",
			"database":     map[string]any{"type": "postgresql"},
		},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	files := payload["files"].(map[string]any)
	assert.NotEmpty(t, files)
	assert.Contains(t, files, "requirements.txt")
}

func TestServer_Generate_InvalidConfig(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/generate", map[string]any{
		"config": map[string]any{"framework": "fastapi"},
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_ProviderStatusAndWeights(t *testing.T) {
	admin := &fakeProviderAdmin{healthy: true}
	s := newTestServer(t, Options{Providers: admin})
	h := s.Handler()

	rec := doJSON(t, h, "GET", "/api/v1/providers/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Contains(t, payload, "stub-provider")

	rec = doJSON(t, h, "PUT", "/api/v1/providers/weights", map[string]float64{
		"stub-provider": 1.0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, admin.weights["stub-provider"])

	rec = doJSON(t, h, "PUT", "/api/v1/providers/weights", map[string]float64{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AuditSearch(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	// Generate audit entries through the task endpoint
	doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent":  "architect",
		"task":   "analyze_backend_requirements",
		"params": map[string]any{"description": "a blog"},
	}, nil)

	rec := doJSON(t, h, "POST", "/api/v1/audit/search", map[string]any{
		"action": "execute_task",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, float64(1), payload["count"])
}

func TestServer_Bootstrap(t *testing.T) {
	s := newTestServer(t, Options{})
	s.RegisterBootstrapper("postgres", bootstrapperFunc(func(ctx context.Context) error { return nil }))
	s.RegisterBootstrapper("redis", bootstrapperFunc(func(ctx context.Context) error { return nil }))
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/v1/bootstrap", map[string]any{
		"targets": []string{"postgres"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["success"])

	// Unknown target
	rec = doJSON(t, h, "POST", "/api/v1/bootstrap", map[string]any{
		"targets": []string{"cassandra"},
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Bootstrap_EmptyChunkedBody(t *testing.T) {
	s := newTestServer(t, Options{})
	var ran []string
	s.RegisterBootstrapper("postgres", bootstrapperFunc(func(ctx context.Context) error {
		ran = append(ran, "postgres")
		return nil
	}))
	s.RegisterBootstrapper("redis", bootstrapperFunc(func(ctx context.Context) error {
		ran = append(ran, "redis")
		return nil
	}))

	// A chunked upload has no Content-Length; an empty body still means
	// "bootstrap everything".
	req := httptest.NewRequest("POST", "/api/v1/bootstrap", io.MultiReader())
	require.Equal(t, int64(-1), req.ContentLength)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["success"])
	assert.ElementsMatch(t, []string{"postgres", "redis"}, ran)
}

func TestStatusRecorder_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	var w http.ResponseWriter = &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	f, ok := w.(http.Flusher)
	require.True(t, ok)
	f.Flush()
	assert.True(t, rec.Flushed)
}

func TestServer_AuthProtection(t *testing.T) {
	s := newTestServer(t, Options{JWTSecret: "test-secret"})
	h := s.Handler()

	// Health stays open
	rec := doJSON(t, h, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Mutating endpoints require a token
	rec = doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent": "architect", "task": "analyze_backend_requirements",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := s.jwt.Mint("ci@example.com", nil)
	require.NoError(t, err)

	rec = doJSON(t, h, "POST", "/api/v1/tasks", map[string]any{
		"agent":  "architect",
		"task":   "analyze_backend_requirements",
		"params": map[string]any{"description": "a wiki"},
	}, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsSnapshot(t *testing.T) {
	s := newTestServer(t, Options{})
	h := s.Handler()

	doJSON(t, h, "GET", "/health", nil, nil)
	rec := doJSON(t, h, "GET", "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	routes := payload["routes"].(map[string]any)
	assert.Contains(t, routes, "/health")
}

type bootstrapperFunc func(ctx context.Context) error

func (f bootstrapperFunc) Bootstrap(ctx context.Context) error { return f(ctx) }
