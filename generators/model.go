// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package generators

import (
	"context"
	"fmt"

	"genesis/backend/agents"
	"genesis/backend/config"
)

// ModelGenerator produces the data layer of a generated backend: ORM
// models plus the serialization classes the framework pairs with them.
type ModelGenerator struct {
	runners map[config.Framework]TaskRunner
}

// NewModelGenerator creates a model generator over the framework agents.
func NewModelGenerator(runners map[config.Framework]TaskRunner) *ModelGenerator {
	return &ModelGenerator{runners: runners}
}

// Generate runs the model tasks for the configured framework against the
// designed schema and returns the merged file map.
func (g *ModelGenerator) Generate(ctx context.Context, cfg config.BackendConfig, schema string) (map[string]string, error) {
	runner, ok := g.runners[cfg.Framework]
	if !ok {
		return nil, &UnsupportedFrameworkError{Framework: cfg.Framework}
	}

	files := make(map[string]string)
	for _, task := range modelTasks(cfg, schema) {
		result := runner.Execute(ctx, task)
		if !result.Success {
			return nil, fmt.Errorf("task %s: %s", task.Name, result.Error)
		}
		mergeFiles(files, result.Result)
	}

	return files, nil
}

func modelTasks(cfg config.BackendConfig, schema string) []agents.AgentTask {
	params := map[string]any{"schema": schema}

	switch cfg.Framework {
	case config.FrameworkDjango:
		return []agents.AgentTask{
			agents.NewTask("generate_django_models", params),
		}
	case config.FrameworkNestJS:
		return []agents.AgentTask{
			agents.NewTask("generate_typeorm_entities", params),
			agents.NewTask("generate_nestjs_dtos", params),
		}
	default:
		return []agents.AgentTask{
			agents.NewTask("generate_sqlalchemy_models", params),
			agents.NewTask("generate_pydantic_models", params),
		}
	}
}
