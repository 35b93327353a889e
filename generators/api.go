// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package generators

import (
	"context"
	"fmt"

	"genesis/backend/agents"
	"genesis/backend/config"
)

// TaskRunner executes agent tasks. The agents satisfy it.
type TaskRunner interface {
	Execute(ctx context.Context, task agents.AgentTask) agents.TaskResult
}

// APIGenerator produces the API surface of a generated backend: the
// application shell and the entity routes or controllers.
type APIGenerator struct {
	runners map[config.Framework]TaskRunner
}

// NewAPIGenerator creates an API generator over the framework agents.
func NewAPIGenerator(runners map[config.Framework]TaskRunner) *APIGenerator {
	return &APIGenerator{runners: runners}
}

// Generate runs the app and routes tasks for the configured framework
// and returns the merged file map.
func (g *APIGenerator) Generate(ctx context.Context, cfg config.BackendConfig, entities []string) (map[string]string, error) {
	runner, ok := g.runners[cfg.Framework]
	if !ok {
		return nil, &UnsupportedFrameworkError{Framework: cfg.Framework}
	}

	files := make(map[string]string)

	appTask, routesTask := apiTasks(cfg, entities)
	for _, task := range []agents.AgentTask{appTask, routesTask} {
		result := runner.Execute(ctx, task)
		if !result.Success {
			return nil, fmt.Errorf("task %s: %s", task.Name, result.Error)
		}
		mergeFiles(files, result.Result)
	}

	return files, nil
}

func apiTasks(cfg config.BackendConfig, entities []string) (app, routes agents.AgentTask) {
	params := map[string]any{
		"project_name": cfg.ProjectName,
		"description":  cfg.Description,
		"features":     cfg.Features,
	}
	entityParams := map[string]any{"entities": entities}

	switch cfg.Framework {
	case config.FrameworkDjango:
		app = agents.NewTask("generate_django_project", map[string]any{
			"project_name": cfg.ProjectName,
			"description":  cfg.Description,
			"apps":         entities,
		})
		routes = agents.NewTask("generate_django_views", entityParams)
	case config.FrameworkNestJS:
		app = agents.NewTask("generate_nestjs_project", params)
		routes = agents.NewTask("generate_nestjs_controllers", entityParams)
	default:
		app = agents.NewTask("generate_fastapi_app", params)
		routes = agents.NewTask("generate_fastapi_routes", entityParams)
	}
	return app, routes
}

// mergeFiles folds the files entry of a task result into dst. Results
// without a files map contribute nothing.
func mergeFiles(dst map[string]string, result map[string]any) {
	files, ok := result["files"].(map[string]string)
	if !ok {
		return
	}
	for path, content := range files {
		dst[path] = content
	}
}
