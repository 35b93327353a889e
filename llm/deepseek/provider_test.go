// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"genesis/backend/llm"
)

// MockHTTPClient is a mock implementation of HTTPClient.
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func newTestProvider(t *testing.T, mockClient HTTPClient) *Provider {
	t.Helper()
	provider, err := New("deepseek-test", Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)
	return provider
}

func completionBody(model, content, finishReason string) []byte {
	apiResp := chatResponse{
		ID:     "ds-1",
		Object: "chat.completion",
		Model:  model,
	}
	apiResp.Choices = make([]struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}, 1)
	apiResp.Choices[0].Message.Role = "assistant"
	apiResp.Choices[0].Message.Content = content
	apiResp.Choices[0].FinishReason = finishReason
	apiResp.Usage.PromptTokens = 6
	apiResp.Usage.CompletionTokens = 3
	apiResp.Usage.TotalTokens = 9
	body, _ := json.Marshal(apiResp)
	return body
}

func TestNew(t *testing.T) {
	provider, err := New("", Config{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", provider.Name())
	assert.Equal(t, llm.ProviderTypeDeepSeek, provider.Type())
	assert.False(t, provider.SupportsStreaming())
}

func TestNew_MissingAPIKey(t *testing.T) {
	provider, err := New("x", Config{})
	assert.Error(t, err)
	assert.Nil(t, provider)
}

func TestFactoryRegistration(t *testing.T) {
	assert.True(t, llm.HasFactory(llm.ProviderTypeDeepSeek))
}

func TestProvider_Complete(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider(t, mockClient)

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		return req.URL.String() == DefaultBaseURL+"/chat/completions" &&
			req.Header.Get("Authorization") == "Bearer test-api-key" &&
			strings.Contains(string(body), ModelChat)
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(completionBody(ModelChat, "fmt.Println(42)", "stop"))),
	}, nil)

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "Print 42 in Go",
		Action: llm.ActionFastCoding,
	})

	require.NoError(t, err)
	assert.Equal(t, "fmt.Println(42)", resp.Content)
	assert.Equal(t, ModelChat, resp.Model)
	assert.Equal(t, "deepseek-test", resp.Provider)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.TotalTokens)

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_ZeroTemperatureSent(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider(t, mockClient)

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		var parsed map[string]any
		if err := json.Unmarshal(body, &parsed); err != nil {
			return false
		}
		temp, ok := parsed["temperature"].(float64)
		return ok && temp == 0
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(completionBody(ModelChat, "ok", "stop"))),
	}, nil)

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt:      "deterministic",
		Temperature: 0,
	})

	require.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_APIErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantCode   string
	}{
		{"rate limit", http.StatusTooManyRequests, llm.ErrCodeRateLimit},
		{"auth", http.StatusUnauthorized, llm.ErrCodeAuth},
		{"model not found", http.StatusNotFound, llm.ErrCodeModelNotFound},
		{"bad request", http.StatusBadRequest, llm.ErrCodeInvalidRequest},
		{"unavailable", http.StatusServiceUnavailable, llm.ErrCodeUnavailable},
		{"server error", http.StatusInternalServerError, llm.ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockHTTPClient)
			provider := newTestProvider(t, mockClient)

			mockClient.On("Do", mock.Anything).Return(&http.Response{
				StatusCode: tt.statusCode,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"boom"}}`)),
			}, nil)

			_, err := provider.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})

			var perr *llm.ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, "boom", perr.Message)
		})
	}
}

func TestProvider_Complete_TransportError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider(t, mockClient)

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})

	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.ErrCodeUnavailable, perr.Code)
	assert.True(t, perr.Retryable)

	result, herr := provider.HealthCheck(context.Background())
	require.NoError(t, herr)
	assert.Equal(t, llm.HealthStatusUnhealthy, result.Status)
}

func TestProvider_EstimateCost(t *testing.T) {
	provider := newTestProvider(t, new(MockHTTPClient))

	estimate := provider.EstimateCost(llm.CompletionRequest{
		Prompt:    strings.Repeat("c", 400), // ~100 tokens
		MaxTokens: 100,
	})

	require.NotNil(t, estimate)
	assert.Equal(t, 100, estimate.EstimatedInputTokens)
	assert.InDelta(t, 0.000137, estimate.TotalEstimate, 0.000001)
}
