// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesis/backend/llm"
)

// mockInvoker records the last invocation and returns canned output.
type mockInvoker struct {
	lastInput *bedrockruntime.InvokeModelInput
	output    *bedrockruntime.InvokeModelOutput
	err       error
}

func (m *mockInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func newTestProvider(invoker InvokeAPI) *Provider {
	return &Provider{
		name:    "bedrock-test",
		client:  invoker,
		region:  "eu-central-1",
		model:   DefaultModel,
		healthy: true,
	}
}

func TestFactoryRegistration(t *testing.T) {
	assert.True(t, llm.HasFactory(llm.ProviderTypeBedrock))
}

func TestDetectModelFamily(t *testing.T) {
	tests := []struct {
		modelID string
		want    string
	}{
		{"anthropic.claude-3-5-sonnet-20240620-v1:0", "anthropic"},
		{"amazon.titan-text-express-v1", "amazon"},
		{"meta.llama3-70b-instruct-v1:0", "meta"},
		{"mistral.mistral-large-2402-v1:0", "mistral"},
		{"us.anthropic.claude-sonnet-4-20250514-v1:0", "anthropic"},
		{"eu.anthropic.claude-sonnet-4-20250514-v1:0", "anthropic"},
		{"apac.meta.llama3-70b-instruct-v1:0", "meta"},
		{"global.anthropic.claude-sonnet-4-20250514-v1:0", "anthropic"},
		{"cohere.command-r-v1:0", ""},
		{"no-dots", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectModelFamily(tt.modelID))
		})
	}
}

func TestProvider_Complete_Anthropic(t *testing.T) {
	respBody, _ := json.Marshal(map[string]any{
		"content":     []map[string]string{{"type": "text", "text": "SELECT 1;"}},
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 11, "output_tokens": 4},
	})
	invoker := &mockInvoker{output: &bedrockruntime.InvokeModelOutput{Body: respBody}}
	provider := newTestProvider(invoker)

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt:       "Write a SQL health probe",
		SystemPrompt: "You are a database engineer",
		MaxTokens:    64,
	})

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", resp.Content)
	assert.Equal(t, DefaultModel, resp.Model)
	assert.Equal(t, "bedrock-test", resp.Provider)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "eu-central-1", resp.Metadata["region"])

	// The anthropic family carries the system prompt as a top-level field
	var sent map[string]any
	require.NoError(t, json.Unmarshal(invoker.lastInput.Body, &sent))
	assert.Equal(t, "You are a database engineer", sent["system"])
	assert.Equal(t, anthropicVersion, sent["anthropic_version"])
	assert.Equal(t, DefaultModel, *invoker.lastInput.ModelId)
}

func TestProvider_Complete_Titan(t *testing.T) {
	respBody, _ := json.Marshal(map[string]any{
		"inputTextTokenCount": 8,
		"results": []map[string]any{
			{"outputText": "generated", "tokenCount": 5, "completionReason": "FINISH"},
		},
	})
	invoker := &mockInvoker{output: &bedrockruntime.InvokeModelOutput{Body: respBody}}
	provider := newTestProvider(invoker)

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "hello",
		Model:  "amazon.titan-text-express-v1",
	})

	require.NoError(t, err)
	assert.Equal(t, "generated", resp.Content)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(invoker.lastInput.Body, &sent))
	assert.Equal(t, "hello", sent["inputText"])
}

func TestProvider_Complete_Llama(t *testing.T) {
	respBody, _ := json.Marshal(map[string]any{
		"generation":             "response text",
		"prompt_token_count":     10,
		"generation_token_count": 20,
		"stop_reason":            "length",
	})
	invoker := &mockInvoker{output: &bedrockruntime.InvokeModelOutput{Body: respBody}}
	provider := newTestProvider(invoker)

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt:       "hi",
		SystemPrompt: "be brief",
		Model:        "meta.llama3-70b-instruct-v1:0",
	})

	require.NoError(t, err)
	assert.Equal(t, "response text", resp.Content)
	assert.Equal(t, "max_tokens", resp.FinishReason)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	// Non-anthropic families get the system prompt folded into the prompt
	var sent map[string]any
	require.NoError(t, json.Unmarshal(invoker.lastInput.Body, &sent))
	assert.Equal(t, "be brief\n\nhi", sent["prompt"])
}

func TestProvider_Complete_Mistral(t *testing.T) {
	respBody, _ := json.Marshal(map[string]any{
		"outputs": []map[string]string{{"text": "mistral says", "stop_reason": "stop"}},
	})
	invoker := &mockInvoker{output: &bedrockruntime.InvokeModelOutput{Body: respBody}}
	provider := newTestProvider(invoker)

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "hi",
		Model:  "mistral.mistral-large-2402-v1:0",
	})

	require.NoError(t, err)
	assert.Equal(t, "mistral says", resp.Content)
	assert.Equal(t, 0, resp.Usage.TotalTokens)
}

func TestProvider_Complete_UnsupportedFamily(t *testing.T) {
	provider := newTestProvider(&mockInvoker{})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "hi",
		Model:  "cohere.command-r-v1:0",
	})

	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.ErrCodeInvalidRequest, perr.Code)
}

func TestProvider_Complete_InvokeError(t *testing.T) {
	invoker := &mockInvoker{err: errors.New("AccessDeniedException")}
	provider := newTestProvider(invoker)

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})

	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.ErrCodeUnavailable, perr.Code)

	result, herr := provider.HealthCheck(context.Background())
	require.NoError(t, herr)
	assert.Equal(t, llm.HealthStatusUnhealthy, result.Status)
}

func TestProvider_HealthRecovers(t *testing.T) {
	respBody, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": "ok"}},
		"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
	})
	invoker := &mockInvoker{err: errors.New("throttled")}
	provider := newTestProvider(invoker)

	_, _ = provider.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.False(t, provider.isHealthy())

	invoker.err = nil
	invoker.output = &bedrockruntime.InvokeModelOutput{Body: respBody}
	_, err := provider.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.True(t, provider.isHealthy())
}
