// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"

	"genesis/backend/llm"
)

// DjangoAgent generates Python Django backend code: project scaffolding,
// ORM models, views, URL configuration, admin registration, Django REST
// Framework APIs, authentication, and settings.
type DjangoAgent struct {
	*Agent
}

const djangoSystemPrompt = "You are an expert Django developer. Generate production-quality " +
	"Django 5 code following project conventions. Tag every file with a fenced " +
	"code block whose info string carries path=<relative file path>."

// NewDjangoAgent creates the Django code generator agent.
func NewDjangoAgent(router Router) *DjangoAgent {
	a := &DjangoAgent{
		Agent: NewAgent("django", "Django Generator", "code_generator", router),
	}

	a.register("generate_django_project", a.generateProject)
	a.register("generate_django_models", a.generateModels)
	a.register("generate_django_views", a.generateViews)
	a.register("generate_django_urls", a.generateURLs)
	a.register("generate_django_admin", a.generateAdmin)
	a.register("generate_django_rest_api", a.generateRESTAPI)
	a.register("generate_django_auth", a.generateAuth)
	a.register("generate_django_settings", a.generateSettings)

	return a
}

func (a *DjangoAgent) generateProject(ctx context.Context, params map[string]any) (map[string]any, error) {
	name := stringParam(params, "project_name")
	if name == "" {
		return nil, fmt.Errorf("project_name parameter is required")
	}
	apps := sliceParam(params, "apps")
	description := stringParam(params, "description")

	prompt := fmt.Sprintf(`Plan and generate a Django project layout for %q.

Description: %s

Apps:
%s

Produce manage.py, the project package (settings split into base/dev/prod,
urls.py, wsgi.py, asgi.py), and the apps with their apps.py files. Explain
the app boundaries in docstrings.`, name, description, bulletList(apps))

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{
		"project_name": name,
		"framework":    "django",
		"apps":         apps,
	})
}

func (a *DjangoAgent) generateModels(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}
	app := appLabel(params)

	prompt := fmt.Sprintf(`Generate Django models for the %q app from this schema:

%s

Produce %s/models.py with fields, Meta ordering and indexes, __str__
methods, and related_name on foreign keys. Add a migration note for any
non-trivial default.`, app, schema, app)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{"app": app})
}

func (a *DjangoAgent) generateViews(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}
	app := appLabel(params)

	prompt := fmt.Sprintf(`Generate Django class-based views for the %q app covering:
%s

Produce %s/views.py with ListView/DetailView/CreateView/UpdateView/DeleteView
per entity, LoginRequiredMixin where mutation happens, and success URLs.`, app, bulletList(entities), app)

	return a.generate(ctx, llm.ActionFastCoding, prompt, map[string]any{"app": app, "entities": entities})
}

func (a *DjangoAgent) generateURLs(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	app := appLabel(params)

	prompt := fmt.Sprintf(`Generate URL configuration for the Django app %q with entities:
%s

Produce %s/urls.py with namespaced path() routes for the generated views
and the project urls.py include() line.`, app, bulletList(entities), app)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{"app": app})
}

func (a *DjangoAgent) generateAdmin(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	app := appLabel(params)

	prompt := fmt.Sprintf(`Generate the Django admin configuration for the %q app.

Schema:
%s

Produce %s/admin.py with ModelAdmin registrations, list_display,
list_filter, search_fields, and any useful custom admin actions.`, app, schema, app)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{"app": app})
}

func (a *DjangoAgent) generateRESTAPI(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}
	app := appLabel(params)

	prompt := fmt.Sprintf(`Generate a Django REST Framework API for the %q app with entities:
%s

Produce %s/serializers.py and %s/api.py with ModelSerializers, ModelViewSets,
pagination, filtering, and a DefaultRouter registration in %s/urls.py.`,
		app, bulletList(entities), app, app, app)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{"app": app, "entities": entities})
}

func (a *DjangoAgent) generateAuth(ctx context.Context, params map[string]any) (map[string]any, error) {
	method := stringParam(params, "auth_method")
	if method == "" {
		method = "session"
	}

	prompt := fmt.Sprintf(`Design and generate %s authentication for a Django backend.

Produce accounts/models.py with a custom user model, accounts/views.py
with registration/login/logout, accounts/urls.py, and the settings
additions (AUTH_USER_MODEL, authentication backends). For token-based
methods use djangorestframework-simplejwt.`, method)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{"auth_method": method})
}

func (a *DjangoAgent) generateSettings(ctx context.Context, params map[string]any) (map[string]any, error) {
	database := stringParam(params, "database")
	if database == "" {
		database = "postgresql"
	}
	environment := stringParam(params, "environment")
	if environment == "" {
		environment = "production"
	}

	prompt := fmt.Sprintf(`Generate Django settings for a %s deployment backed by %s.

Produce config/settings/base.py, config/settings/%s.py, and .env.example.
Read secrets from the environment, configure the %s database, caches,
static files, and security middleware appropriate for %s.`,
		environment, database, environment, database, environment)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{
		"database":    database,
		"environment": environment,
	})
}

func (a *DjangoAgent) generate(ctx context.Context, action llm.Action, prompt string, extra map[string]any) (map[string]any, error) {
	content, err := a.complete(ctx, action, djangoSystemPrompt, prompt)
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

func appLabel(params map[string]any) string {
	if app := stringParam(params, "app"); app != "" {
		return app
	}
	return "core"
}
