// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"

	"genesis/backend/llm"
)

// FastAPIAgent generates Python FastAPI backend code: the application
// shell, routes, Pydantic and SQLAlchemy models, middleware, auth, and
// dependency wiring.
type FastAPIAgent struct {
	*Agent
}

const fastapiSystemPrompt = "You are an expert FastAPI developer. Generate production-quality, " +
	"type-annotated Python code. Tag every file with a fenced code block " +
	"whose info string carries path=<relative file path>."

// NewFastAPIAgent creates the FastAPI code generator agent.
func NewFastAPIAgent(router Router) *FastAPIAgent {
	a := &FastAPIAgent{
		Agent: NewAgent("fastapi", "FastAPI Generator", "code_generator", router),
	}

	a.register("generate_fastapi_app", a.generateApp)
	a.register("generate_fastapi_routes", a.generateRoutes)
	a.register("generate_pydantic_models", a.generatePydanticModels)
	a.register("generate_fastapi_middleware", a.generateMiddleware)
	a.register("generate_fastapi_auth", a.generateAuth)
	a.register("generate_sqlalchemy_models", a.generateSQLAlchemyModels)
	a.register("generate_fastapi_dependencies", a.generateDependencies)

	return a
}

func (a *FastAPIAgent) generateApp(ctx context.Context, params map[string]any) (map[string]any, error) {
	name := stringParam(params, "project_name")
	if name == "" {
		return nil, fmt.Errorf("project_name parameter is required")
	}
	description := stringParam(params, "description")
	features := sliceParam(params, "features")

	prompt := fmt.Sprintf(`Generate the FastAPI application entrypoint for the project %q.

Description: %s

Features:
%s

Produce app/main.py with the FastAPI instance, CORS middleware, router
includes, startup/shutdown events, and a /health endpoint. Also produce
app/config.py with pydantic-settings based configuration and
requirements.txt.`, name, description, bulletList(features))

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"project_name": name,
		"framework":    "fastapi",
	})
}

func (a *FastAPIAgent) generateRoutes(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}

	prompt := fmt.Sprintf(`Generate FastAPI CRUD route modules for these entities:
%s

One file per entity under app/routes/, each with an APIRouter, list/get/
create/update/delete endpoints, pagination on list, and proper status
codes. Use dependency-injected DB sessions.`, bulletList(entities))

	return a.generate(ctx, llm.ActionFastCoding, prompt, map[string]any{
		"entities": entities,
	})
}

func (a *FastAPIAgent) generatePydanticModels(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}

	prompt := fmt.Sprintf(`Generate Pydantic v2 models for this schema:

%s

Produce app/schemas.py with Base/Create/Update/Read variants per entity,
field validators where constraints exist, and ConfigDict(from_attributes=True)
on read models.`, schema)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, nil)
}

func (a *FastAPIAgent) generateMiddleware(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")

	prompt := fmt.Sprintf(`Generate FastAPI middleware for this backend.

Requirements:
%s

Produce app/middleware.py covering request ID injection, structured
request logging with latency, and a global exception handler returning
consistent JSON errors. Explain ordering constraints in module docstrings.`, requirements)

	return a.generate(ctx, llm.ActionReasoning, prompt, nil)
}

func (a *FastAPIAgent) generateAuth(ctx context.Context, params map[string]any) (map[string]any, error) {
	method := stringParam(params, "auth_method")
	if method == "" {
		method = "jwt"
	}

	prompt := fmt.Sprintf(`Generate %s authentication for a FastAPI backend.

Produce app/auth.py with token creation/verification, password hashing
via passlib bcrypt, OAuth2PasswordBearer wiring, and a get_current_user
dependency. Include login and refresh endpoints in app/routes/auth.py.`, strings.ToUpper(method))

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"auth_method": method,
	})
}

func (a *FastAPIAgent) generateSQLAlchemyModels(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}

	prompt := fmt.Sprintf(`Generate SQLAlchemy 2.0 ORM models for this schema:

%s

Produce app/models.py using DeclarativeBase and Mapped[] annotations,
with relationships, indexes, and server-side timestamps. Also produce
app/database.py with the engine and session factory.`, schema)

	return a.generate(ctx, llm.ActionReasoning, prompt, nil)
}

func (a *FastAPIAgent) generateDependencies(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")

	prompt := fmt.Sprintf(`Generate the FastAPI dependency module for this backend.

Requirements:
%s

Produce app/dependencies.py with DB session, current-user, pagination,
and settings dependencies, each as a small annotated function.`, requirements)

	return a.generate(ctx, llm.ActionFastCoding, prompt, nil)
}

// generate runs a completion and packages the extracted files into a
// standard code-generation result.
func (a *FastAPIAgent) generate(ctx context.Context, action llm.Action, prompt string, extra map[string]any) (map[string]any, error) {
	content, err := a.complete(ctx, action, fastapiSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"code":     content,
		"files":    CodeBlocksByPath(content),
		"language": "python",
	}
	for k, v := range extra {
		result[k] = v
	}
	return result, nil
}
