// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"

	"genesis/backend/llm"
)

// ArchitectAgent designs backend systems: it analyzes requirements,
// shapes the API and data models, selects a technology stack, and
// validates the resulting architecture. Design-heavy tasks route to
// reasoning providers; quick selections route to fast coding ones.
type ArchitectAgent struct {
	*Agent
}

// NewArchitectAgent creates the architect and registers its tasks.
func NewArchitectAgent(router Router) *ArchitectAgent {
	a := &ArchitectAgent{
		Agent: NewAgent("architect", "Backend Architect", "architect", router),
	}

	a.register("analyze_backend_requirements", a.analyzeRequirements)
	a.register("design_api_architecture", a.designAPI)
	a.register("design_data_models", a.designDataModels)
	a.register("select_backend_technologies", a.selectTechnologies)
	a.register("design_service_architecture", a.designServices)
	a.register("validate_backend_architecture", a.validateArchitecture)

	return a
}

func (a *ArchitectAgent) analyzeRequirements(ctx context.Context, params map[string]any) (map[string]any, error) {
	description := stringParam(params, "description")
	if description == "" {
		return nil, fmt.Errorf("description parameter is required")
	}
	features := sliceParam(params, "features")

	prompt := fmt.Sprintf(`Analyze the following backend project and extract its technical requirements.

Project description:
%s

Requested features:
%s

Identify:
1. Functional Requirements
2. Non-Functional Requirements
3. Data Requirements
4. Integration Requirements
5. Recommended Patterns

Be specific and actionable.`, description, bulletList(features))

	content, err := a.complete(ctx, llm.ActionReasoning,
		"You are a senior backend architect. Extract precise, testable requirements from project descriptions.",
		prompt)
	if err != nil {
		return nil, err
	}

	score := complexityScore(description, features)

	return map[string]any{
		"requirements":     content,
		"complexity":       complexityLevel(score),
		"complexity_score": score,
		"patterns":         recommendPatterns(score),
		"technology_hints": technologyHints(description, features),
	}, nil
}

func (a *ArchitectAgent) designAPI(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")
	if requirements == "" {
		return nil, fmt.Errorf("requirements parameter is required")
	}
	style := stringParam(params, "api_style")
	if style == "" {
		style = "REST"
	}

	prompt := fmt.Sprintf(`Design a %s API for a backend with these requirements:

%s

Produce:
1. Resource Model
2. Endpoints (method, path, purpose, auth)
3. Authentication Design
4. Error Handling Conventions
5. Versioning Strategy

Use consistent naming and include request/response shapes for the main endpoints.`, style, requirements)

	content, err := a.complete(ctx, llm.ActionGenerateText,
		"You are an API architect. Design clean, consistent, well-versioned APIs.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"api_specification": content,
		"api_style":         style,
		"endpoint_summary":  sectionOr(content, "endpoints", content),
		"auth_design":       sectionOr(content, "authentication design", ""),
	}, nil
}

func (a *ArchitectAgent) designDataModels(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")
	if requirements == "" {
		return nil, fmt.Errorf("requirements parameter is required")
	}
	database := stringParam(params, "database")
	if database == "" {
		database = "postgresql"
	}

	prompt := fmt.Sprintf(`Design the data models for a backend targeting %s.

Requirements:
%s

Produce:
1. Entities (fields, types, constraints)
2. Relationships (cardinality, foreign keys)
3. Schema Definition
4. Indexes
5. Migration Plan

Normalize where it helps integrity, denormalize only with a stated reason.`, database, requirements)

	content, err := a.complete(ctx, llm.ActionReasoning,
		"You are a data architect. Design normalized, indexed schemas with explicit relationships.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"data_models":    content,
		"database":       database,
		"relationships":  sectionOr(content, "relationships", ""),
		"schema":         sectionOr(content, "schema definition", ""),
		"migration_plan": sectionOr(content, "migration plan", ""),
	}, nil
}

func (a *ArchitectAgent) selectTechnologies(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")
	if requirements == "" {
		return nil, fmt.Errorf("requirements parameter is required")
	}
	framework := stringParam(params, "framework")

	constraint := ""
	if framework != "" {
		constraint = fmt.Sprintf("\nThe team has already chosen %s as the web framework; select around it.", framework)
	}

	prompt := fmt.Sprintf(`Select a backend technology stack for these requirements:%s

%s

For each concern (framework, database, cache, queue, auth) name one primary
choice and one alternative, with a single-sentence rationale each.`, constraint, requirements)

	content, err := a.complete(ctx, llm.ActionFastCoding,
		"You are a pragmatic tech lead. Prefer boring, proven technology.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"stack":        content,
		"framework":    framework,
		"alternatives": sectionOr(content, "alternatives", ""),
	}, nil
}

func (a *ArchitectAgent) designServices(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")
	if requirements == "" {
		return nil, fmt.Errorf("requirements parameter is required")
	}
	style := stringParam(params, "architecture_style")
	if style == "" {
		style = "modular monolith"
	}

	prompt := fmt.Sprintf(`Design a %s service architecture for these requirements:

%s

Produce:
1. Service Boundaries
2. Communication Patterns
3. Data Ownership
4. Cross-Cutting Concerns (auth, logging, config)
5. Deployment Topology

Keep boundaries aligned with data ownership.`, style, requirements)

	content, err := a.complete(ctx, llm.ActionReasoning,
		"You are a systems architect. Draw service boundaries along data ownership lines.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"service_architecture": content,
		"architecture_style":   style,
		"patterns":             sectionOr(content, "communication patterns", ""),
		"principles": []string{
			"single responsibility per service",
			"explicit data ownership",
			"stateless request handling",
		},
	}, nil
}

func (a *ArchitectAgent) validateArchitecture(ctx context.Context, params map[string]any) (map[string]any, error) {
	architecture := stringParam(params, "architecture")
	if architecture == "" {
		return nil, fmt.Errorf("architecture parameter is required")
	}
	requirements := stringParam(params, "requirements")

	prompt := fmt.Sprintf(`Review this backend architecture for problems.

Architecture:
%s

Original requirements:
%s

Check for:
1. Requirement Coverage
2. Scalability Bottlenecks
3. Security Gaps
4. Data Consistency Risks
5. Operational Concerns

List concrete issues and a recommendation for each. End with an overall verdict.`, architecture, requirements)

	content, err := a.complete(ctx, llm.ActionAnalysis,
		"You are an architecture reviewer. Find real problems; do not pad the review.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"validation":      content,
		"issues":          sectionOr(content, "security gaps", ""),
		"recommendations": sectionOr(content, "operational concerns", ""),
		"passed":          !strings.Contains(strings.ToLower(content), "critical"),
	}, nil
}

// complexityScore sums rough signals from the description and feature
// list. The thresholds mirror the levels the relay UI displays.
func complexityScore(description string, features []string) int {
	score := len(features)

	lower := strings.ToLower(description)
	for _, signal := range []string{
		"realtime", "real-time", "websocket", "microservice", "multi-tenant",
		"payment", "search", "analytics", "machine learning", "queue",
	} {
		if strings.Contains(lower, signal) {
			score += 2
		}
	}

	return score
}

func complexityLevel(score int) string {
	switch {
	case score <= 3:
		return "low"
	case score <= 7:
		return "medium"
	default:
		return "high"
	}
}

func recommendPatterns(score int) []string {
	patterns := []string{"repository pattern", "dependency injection"}
	if score > 3 {
		patterns = append(patterns, "service layer", "dto validation")
	}
	if score > 7 {
		patterns = append(patterns, "cqrs", "event-driven messaging")
	}
	return patterns
}

func technologyHints(description string, features []string) []string {
	lower := strings.ToLower(description + " " + strings.Join(features, " "))

	var hints []string
	if strings.Contains(lower, "realtime") || strings.Contains(lower, "websocket") {
		hints = append(hints, "websockets")
	}
	if strings.Contains(lower, "search") {
		hints = append(hints, "full-text search index")
	}
	if strings.Contains(lower, "cache") || strings.Contains(lower, "session") {
		hints = append(hints, "redis")
	}
	if strings.Contains(lower, "document") || strings.Contains(lower, "flexible schema") {
		hints = append(hints, "mongodb")
	}
	if len(hints) == 0 {
		hints = append(hints, "postgresql")
	}
	return hints
}

// sectionOr returns the named heading section of text, or fallback when
// the response did not include that heading.
func sectionOr(text, key, fallback string) string {
	if section, ok := ExtractSections(text)[key]; ok && section != "" {
		return section
	}
	return fallback
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none specified)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
