// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"

	"genesis/backend/llm"
)

// NestJSAgent generates TypeScript NestJS backend code: project
// scaffolding, modules, controllers, services, TypeORM entities, auth,
// DTOs, and validation pipes.
type NestJSAgent struct {
	*Agent
}

const nestjsSystemPrompt = "You are an expert NestJS developer. Generate production-quality, " +
	"strictly typed TypeScript code using NestJS decorators and dependency " +
	"injection. Tag every file with a fenced code block whose info string " +
	"carries path=<relative file path>."

// NewNestJSAgent creates the NestJS code generator agent.
func NewNestJSAgent(router Router) *NestJSAgent {
	a := &NestJSAgent{
		Agent: NewAgent("nestjs", "NestJS Generator", "code_generator", router),
	}

	a.register("generate_nestjs_project", a.generateProject)
	a.register("generate_nestjs_modules", a.generateModules)
	a.register("generate_nestjs_controllers", a.generateControllers)
	a.register("generate_nestjs_services", a.generateServices)
	a.register("generate_typeorm_entities", a.generateEntities)
	a.register("generate_nestjs_auth", a.generateAuth)
	a.register("generate_nestjs_dtos", a.generateDTOs)
	a.register("generate_nestjs_pipes", a.generatePipes)

	return a
}

func (a *NestJSAgent) generateProject(ctx context.Context, params map[string]any) (map[string]any, error) {
	name := stringParam(params, "project_name")
	if name == "" {
		return nil, fmt.Errorf("project_name parameter is required")
	}
	description := stringParam(params, "description")
	features := sliceParam(params, "features")

	prompt := fmt.Sprintf(`Generate the NestJS project skeleton for %q.

Description: %s

Features:
%s

Produce src/main.ts with global validation pipe and CORS, src/app.module.ts,
package.json with scripts, tsconfig.json, and a ConfigModule setup reading
.env.`, name, description, bulletList(features))

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"project_name": name,
		"framework":    "nestjs",
	})
}

func (a *NestJSAgent) generateModules(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}

	prompt := fmt.Sprintf(`Design the NestJS module structure for these entities:
%s

Produce one module per entity under src/<entity>/ importing its TypeORM
feature, plus the app.module.ts imports. State which modules export their
services and why in file comments.`, bulletList(entities))

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{"entities": entities})
}

func (a *NestJSAgent) generateControllers(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}

	prompt := fmt.Sprintf(`Generate NestJS REST controllers for:
%s

One controller per entity with Get/Post/Put/Delete handlers, ParseIntPipe
on id params, pagination query DTO on list, and proper HTTP status codes.`, bulletList(entities))

	return a.generate(ctx, llm.ActionFastCoding, prompt, map[string]any{"entities": entities})
}

func (a *NestJSAgent) generateServices(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}

	prompt := fmt.Sprintf(`Generate NestJS services for:
%s

One injectable service per entity wrapping its TypeORM repository, with
findAll/findOne/create/update/remove, NotFoundException on missing rows,
and transactional multi-entity operations where needed.`, bulletList(entities))

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{"entities": entities})
}

func (a *NestJSAgent) generateEntities(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}

	prompt := fmt.Sprintf(`Generate TypeORM entities from this schema:

%s

Produce one entity file per table with column types, nullability, unique
and index decorators, relations with cascade rules, and created/updated
timestamp columns.`, schema)

	return a.generate(ctx, llm.ActionReasoning, prompt, nil)
}

func (a *NestJSAgent) generateAuth(ctx context.Context, params map[string]any) (map[string]any, error) {
	method := stringParam(params, "auth_method")
	if method == "" {
		method = "jwt"
	}

	prompt := fmt.Sprintf(`Generate %s authentication for a NestJS backend.

Produce src/auth/ with AuthModule, AuthService, local and jwt Passport
strategies, JwtAuthGuard, a @Public() decorator, and login/refresh
endpoints. Hash passwords with bcrypt.`, method)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{"auth_method": method})
}

func (a *NestJSAgent) generateDTOs(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}

	prompt := fmt.Sprintf(`Generate NestJS DTO classes from this schema:

%s

Produce Create/Update/Query DTOs per entity with class-validator
decorators and PartialType for updates.`, schema)

	return a.generate(ctx, llm.ActionFastCoding, prompt, nil)
}

func (a *NestJSAgent) generatePipes(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")

	prompt := fmt.Sprintf(`Generate custom NestJS validation pipes for this backend.

Requirements:
%s

Produce src/common/pipes/ with the pipes, each documenting the transform
contract it enforces, plus registration guidance for main.ts.`, requirements)

	return a.generate(ctx, llm.ActionReasoning, prompt, nil)
}

func (a *NestJSAgent) generate(ctx context.Context, action llm.Action, prompt string, extra map[string]any) (map[string]any, error) {
	content, err := a.complete(ctx, action, nestjsSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"code":     content,
		"files":    CodeBlocksByPath(content),
		"language": "typescript",
	}
	for k, v := range extra {
		result[k] = v
	}
	return result, nil
}
