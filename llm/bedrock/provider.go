// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package bedrock provides an LLM provider implementation for AWS Bedrock
// using the AWS SDK v2. Requests are signed with AWS Signature V4 via IAM,
// so no API key is required. Model families (anthropic, amazon, meta,
// mistral) each use their own request and response wire format.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"genesis/backend/llm"
)

const (
	// DefaultRegion is used when no AWS region is configured.
	DefaultRegion = "us-east-1"

	// DefaultModel is the default Bedrock model ID.
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.7

	// anthropicVersion is the Bedrock-specific Anthropic API version.
	anthropicVersion = "bedrock-2023-05-31"
)

func init() {
	llm.RegisterFactory(llm.ProviderTypeBedrock, NewFromProviderConfig)
}

// InvokeAPI is the subset of the Bedrock runtime client used by the
// provider (enables testing).
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements llm.Provider against AWS Bedrock.
type Provider struct {
	name    string
	client  InvokeAPI
	region  string
	model   string
	healthy bool
	mu      sync.RWMutex
}

// Interface guard.
var _ llm.Provider = (*Provider)(nil)

// Config contains configuration for the Bedrock provider.
type Config struct {
	Region string // Optional: AWS region (default: us-east-1)
	Model  string // Optional: default model ID
}

// New creates a Bedrock provider. AWS credentials are resolved through
// the default chain (environment, shared config, IAM role).
func New(name string, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if name == "" {
		name = "bedrock"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", cfg.Region, err)
	}

	return &Provider{
		name:    name,
		client:  bedrockruntime.NewFromConfig(awsCfg),
		region:  cfg.Region,
		model:   cfg.Model,
		healthy: true,
	}, nil
}

// NewFromProviderConfig creates a provider from unified registry
// configuration. Registered as the factory for llm.ProviderTypeBedrock.
func NewFromProviderConfig(config llm.ProviderConfig) (llm.Provider, error) {
	return New(config.Name, Config{
		Region: config.Region,
		Model:  config.Model,
	})
}

// SetClient replaces the Bedrock runtime client. Used in tests.
func (p *Provider) SetClient(client InvokeAPI) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeBedrock
}

func (p *Provider) SupportsStreaming() bool {
	return false
}

func (p *Provider) Capabilities() []llm.Capability {
	return []llm.Capability{
		llm.CapabilityChat,
		llm.CapabilityCompletion,
		llm.CapabilityReasoning,
		llm.CapabilityLongContext,
	}
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

func (p *Provider) isHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.region != ""
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := buildRequestBody(req, model)
	if err != nil {
		perr := llm.NewProviderError(p.name, llm.ErrCodeInvalidRequest, err.Error())
		perr.Cause = err
		return nil, perr
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	output, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		p.setHealthy(false)
		perr := llm.NewProviderError(p.name, llm.ErrCodeUnavailable, err.Error())
		perr.Cause = err
		return nil, perr
	}

	p.setHealthy(true)

	resp, err := parseResponseBody(output.Body, model)
	if err != nil {
		perr := llm.NewProviderError(p.name, llm.ErrCodeServerError, err.Error())
		perr.Cause = err
		return nil, perr
	}

	resp.Model = model
	resp.Provider = p.name
	resp.Latency = time.Since(start)
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["region"] = p.region

	return resp, nil
}

// HealthCheck reports the last known health state.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthCheckResult, error) {
	result := &llm.HealthCheckResult{
		Status:      llm.HealthStatusHealthy,
		LastChecked: time.Now(),
	}
	if !p.isHealthy() {
		result.Status = llm.HealthStatusUnhealthy
		result.Message = "last Bedrock invocation failed"
	}
	return result, nil
}

// EstimateCost uses Bedrock Claude pricing as the reference point
// ($3/1M input, $15/1M output tokens).
func (p *Provider) EstimateCost(req llm.CompletionRequest) *llm.CostEstimate {
	inputTokens := (len(req.SystemPrompt) + len(req.Prompt)) / 4
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

// buildRequestBody builds the invocation body for the model's family.
// Families without a system message concept get the system prompt
// prepended to the user prompt.
func buildRequestBody(req llm.CompletionRequest, model string) (map[string]any, error) {
	family := DetectModelFamily(model)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := req.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	prompt := req.Prompt
	if req.SystemPrompt != "" && family != "anthropic" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	switch family {
	case "anthropic":
		body := map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        maxTokens,
			"temperature":       temperature,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			body["system"] = req.SystemPrompt
		}
		return body, nil

	case "amazon":
		return map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxTokens,
				"temperature":   temperature,
				"topP":          0.9,
			},
		}, nil

	case "meta":
		return map[string]any{
			"prompt":      prompt,
			"max_gen_len": maxTokens,
			"temperature": temperature,
			"top_p":       0.9,
		}, nil

	case "mistral":
		return map[string]any{
			"prompt":      prompt,
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"top_p":       0.9,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported model family in %q", model)
	}
}

// parseResponseBody parses the invocation output for the model's family.
func parseResponseBody(body []byte, model string) (*llm.CompletionResponse, error) {
	switch DetectModelFamily(model) {
	case "anthropic":
		return parseAnthropicResponse(body)
	case "amazon":
		return parseTitanResponse(body)
	case "meta":
		return parseLlamaResponse(body)
	case "mistral":
		return parseMistralResponse(body)
	default:
		return nil, fmt.Errorf("unsupported model family in %q", model)
	}
}

func parseAnthropicResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		content.WriteString(block.Text)
	}

	finishReason := "stop"
	if resp.StopReason == "max_tokens" {
		finishReason = "max_tokens"
	}

	return &llm.CompletionResponse{
		Content: content.String(),
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: finishReason,
	}, nil
}

func parseTitanResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Results []struct {
			OutputText       string `json:"outputText"`
			TokenCount       int    `json:"tokenCount"`
			CompletionReason string `json:"completionReason"`
		} `json:"results"`
		InputTextTokenCount int `json:"inputTextTokenCount"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	content := ""
	outputTokens := 0
	finishReason := "stop"
	if len(resp.Results) > 0 {
		content = resp.Results[0].OutputText
		outputTokens = resp.Results[0].TokenCount
		if resp.Results[0].CompletionReason == "LENGTH" {
			finishReason = "max_tokens"
		}
	}

	return &llm.CompletionResponse{
		Content: content,
		Usage: llm.UsageStats{
			PromptTokens:     resp.InputTextTokenCount,
			CompletionTokens: outputTokens,
			TotalTokens:      resp.InputTextTokenCount + outputTokens,
		},
		FinishReason: finishReason,
	}, nil
}

func parseLlamaResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Generation       string `json:"generation"`
		PromptTokenCount int    `json:"prompt_token_count"`
		GenTokenCount    int    `json:"generation_token_count"`
		StopReason       string `json:"stop_reason"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	finishReason := "stop"
	if resp.StopReason == "length" {
		finishReason = "max_tokens"
	}

	return &llm.CompletionResponse{
		Content: resp.Generation,
		Usage: llm.UsageStats{
			PromptTokens:     resp.PromptTokenCount,
			CompletionTokens: resp.GenTokenCount,
			TotalTokens:      resp.PromptTokenCount + resp.GenTokenCount,
		},
		FinishReason: finishReason,
	}, nil
}

func parseMistralResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Outputs []struct {
			Text       string `json:"text"`
			StopReason string `json:"stop_reason"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	content := ""
	finishReason := "stop"
	if len(resp.Outputs) > 0 {
		content = resp.Outputs[0].Text
		if resp.Outputs[0].StopReason == "length" {
			finishReason = "max_tokens"
		}
	}

	// Mistral on Bedrock does not report token counts
	return &llm.CompletionResponse{
		Content:      content,
		FinishReason: finishReason,
	}, nil
}

// inferenceProfilePrefixes are the known Bedrock inference profile prefixes.
var inferenceProfilePrefixes = []string{"eu", "us", "apac", "global"}

// supportedFamilies are the model families this provider can invoke.
var supportedFamilies = []string{"anthropic", "amazon", "meta", "mistral"}

// DetectModelFamily extracts the model family from a Bedrock model ID.
//
// Model IDs follow the pattern provider.model-name-version, e.g.
// anthropic.claude-3-5-sonnet-20240620-v1:0 or
// amazon.titan-text-express-v1. Inference profile IDs carry a regional
// prefix such as us.anthropic.claude-sonnet-4-20250514-v1:0.
// Returns "" for unknown or unsupported families.
func DetectModelFamily(modelID string) string {
	if modelID == "" {
		return ""
	}

	segments := strings.Split(modelID, ".")
	if len(segments) < 2 {
		return ""
	}

	first := segments[0]
	for _, prefix := range inferenceProfilePrefixes {
		if first == prefix {
			return validateFamily(segments[1])
		}
	}

	return validateFamily(first)
}

func validateFamily(family string) string {
	for _, supported := range supportedFamilies {
		if family == supported {
			return family
		}
	}
	return ""
}
