// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexityLevel(t *testing.T) {
	assert.Equal(t, "low", complexityLevel(0))
	assert.Equal(t, "low", complexityLevel(3))
	assert.Equal(t, "medium", complexityLevel(4))
	assert.Equal(t, "medium", complexityLevel(7))
	assert.Equal(t, "high", complexityLevel(8))
}

func TestComplexityScore(t *testing.T) {
	score := complexityScore("a realtime multi-tenant analytics platform",
		[]string{"dashboards", "alerts"})

	// 2 features + 3 signal hits
	assert.Equal(t, 8, score)

	assert.Equal(t, 0, complexityScore("a simple blog", nil))
}

func TestRecommendPatterns(t *testing.T) {
	assert.Equal(t, []string{"repository pattern", "dependency injection"}, recommendPatterns(2))
	assert.Contains(t, recommendPatterns(5), "service layer")
	assert.Contains(t, recommendPatterns(9), "event-driven messaging")
}

func TestTechnologyHints(t *testing.T) {
	assert.Contains(t, technologyHints("realtime chat", nil), "websockets")
	assert.Contains(t, technologyHints("product search", nil), "full-text search index")
	assert.Contains(t, technologyHints("", []string{"session management"}), "redis")
	assert.Equal(t, []string{"postgresql"}, technologyHints("a plain crud app", nil))
}

func TestArchitect_AnalyzeRequirements(t *testing.T) {
	router := &stubRouter{resp: "## Functional Requirements\ncatalog browsing"}
	agent := NewArchitectAgent(router)

	result := agent.Execute(context.Background(), NewTask("analyze_backend_requirements", map[string]any{
		"description": "a realtime store with payment processing",
		"features":    []any{"cart", "checkout"},
	}))

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "medium", result.Result["complexity"])
	assert.NotEmpty(t, result.Result["requirements"])
	assert.NotEmpty(t, result.Result["patterns"])

	require.Len(t, router.reqs, 1)
	assert.Contains(t, router.reqs[0].Prompt, "realtime store")
	assert.Contains(t, router.reqs[0].Prompt, "- cart")
}

func TestArchitect_AnalyzeRequirements_MissingDescription(t *testing.T) {
	agent := NewArchitectAgent(&stubRouter{})

	result := agent.Execute(context.Background(), NewTask("analyze_backend_requirements", nil))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "description")
}

func TestArchitect_DesignAPI_SectionExtraction(t *testing.T) {
	router := &stubRouter{resp: "## Endpoints\nGET /orders\n\n## Authentication Design\nbearer tokens"}
	agent := NewArchitectAgent(router)

	result := agent.Execute(context.Background(), NewTask("design_api_architecture", map[string]any{
		"requirements": "order management",
	}))

	require.True(t, result.Success)
	assert.Equal(t, "REST", result.Result["api_style"])
	assert.Equal(t, "GET /orders", result.Result["endpoint_summary"])
	assert.Equal(t, "bearer tokens", result.Result["auth_design"])
}

func TestArchitect_ValidateArchitecture_Verdict(t *testing.T) {
	agent := NewArchitectAgent(&stubRouter{resp: "## Security Gaps\nCRITICAL: no auth on admin routes"})

	result := agent.Execute(context.Background(), NewTask("validate_backend_architecture", map[string]any{
		"architecture": "single service, no auth",
	}))

	require.True(t, result.Success)
	assert.Equal(t, false, result.Result["passed"])
}
