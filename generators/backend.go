// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"genesis/backend/agents"
	"genesis/backend/config"
	"genesis/backend/connectors/base"
	"genesis/backend/shared/logger"
)

// UnsupportedFrameworkError reports a framework no generation pipeline
// exists for.
type UnsupportedFrameworkError struct {
	Framework config.Framework
}

func (e *UnsupportedFrameworkError) Error() string {
	return fmt.Sprintf("no generation pipeline for framework %q", e.Framework)
}

// GenerationResult is the output of a full backend generation run.
type GenerationResult struct {
	// Files maps relative paths to generated file contents.
	Files map[string]string `json:"files"`

	Framework config.Framework `json:"framework"`

	// Structure summarizes the generated layout, path to purpose.
	Structure map[string]string `json:"structure"`

	// Features lists the feature names the run implemented.
	Features []string `json:"features"`

	// NextSteps are the manual steps to take the project live.
	NextSteps []string `json:"next_steps"`

	Metadata map[string]any `json:"metadata"`
}

// WriteTree materializes the file map under dir, creating parent
// directories as needed. Paths are LLM-supplied, so each one is checked
// against escaping the target directory.
func (r *GenerationResult) WriteTree(dir string) error {
	for path, content := range r.Files {
		if err := base.ValidateFilePath(path); err != nil {
			return fmt.Errorf("refusing to write %s: %w", path, err)
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// BackendGenerator coordinates a full generation run: API surface, data
// layer, auth, then the deterministic scaffolding and docs.
type BackendGenerator struct {
	templates *TemplateEngine
	api       *APIGenerator
	models    *ModelGenerator
	auth      *AuthGenerator
	database  TaskRunner
	log       *logger.Logger
}

// NewBackendGenerator wires the generation pipeline over an LLM router.
// tokens may be nil when no token service is available.
func NewBackendGenerator(router agents.Router, tokens agents.TokenService) *BackendGenerator {
	runners := map[config.Framework]TaskRunner{
		config.FrameworkFastAPI: agents.NewFastAPIAgent(router),
		config.FrameworkDjango:  agents.NewDjangoAgent(router),
		config.FrameworkNestJS:  agents.NewNestJSAgent(router),
	}

	return &BackendGenerator{
		templates: NewTemplateEngine(),
		api:       NewAPIGenerator(runners),
		models:    NewModelGenerator(runners),
		auth:      NewAuthGenerator(agents.NewAuthAgent(router, tokens)),
		database:  agents.NewDatabaseAgent(router),
		log:       logger.New("backend-generator"),
	}
}

// Generate runs the full pipeline for cfg. architecture carries the
// upstream design output; its "schema" and "entities" entries feed the
// model and API stages.
func (b *BackendGenerator) Generate(ctx context.Context, cfg config.BackendConfig, architecture map[string]any) (*GenerationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !supportedFramework(cfg.Framework) {
		return nil, &UnsupportedFrameworkError{Framework: cfg.Framework}
	}

	start := time.Now()
	b.log.Info(cfg.ProjectName, "", "generating backend", map[string]any{
		"framework": string(cfg.Framework),
	})

	schema, entities := designInputs(architecture)
	if schema == "" {
		designed, err := b.designSchema(ctx, cfg)
		if err != nil {
			return nil, err
		}
		schema = designed
	}
	if len(entities) == 0 {
		entities = defaultEntities
	}

	files := make(map[string]string)

	apiFiles, err := b.api.Generate(ctx, cfg, entities)
	if err != nil {
		return nil, fmt.Errorf("api generation: %w", err)
	}
	modelFiles, err := b.models.Generate(ctx, cfg, schema)
	if err != nil {
		return nil, fmt.Errorf("model generation: %w", err)
	}
	authFiles, err := b.auth.Generate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth generation: %w", err)
	}
	commonFiles, err := b.templates.CommonFiles(cfg)
	if err != nil {
		return nil, fmt.Errorf("scaffolding: %w", err)
	}

	for _, m := range []map[string]string{apiFiles, modelFiles, authFiles, commonFiles} {
		for path, content := range m {
			files[path] = content
		}
	}

	b.log.InfoWithDuration(cfg.ProjectName, "", "backend generation completed",
		float64(time.Since(start).Milliseconds()), map[string]any{
			"framework":   string(cfg.Framework),
			"total_files": len(files),
		})

	return &GenerationResult{
		Files:     files,
		Framework: cfg.Framework,
		Structure: frameworkStructure(cfg.Framework),
		Features:  cfg.Features,
		NextSteps: nextSteps(cfg),
		Metadata: map[string]any{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
			"generator":    "BackendGenerator",
			"framework":    string(cfg.Framework),
			"total_files":  len(files),
		},
	}, nil
}

// designSchema asks the database agent for a schema when the caller
// supplied no architecture.
func (b *BackendGenerator) designSchema(ctx context.Context, cfg config.BackendConfig) (string, error) {
	dbType := string(config.DatabasePostgreSQL)
	if cfg.Database != nil {
		dbType = string(cfg.Database.Type)
	}

	result := b.database.Execute(ctx, agents.NewTask("design_database_schema", map[string]any{
		"requirements": cfg.Description,
		"database":     dbType,
	}))
	if !result.Success {
		return "", fmt.Errorf("schema design: %s", result.Error)
	}

	ddl, _ := result.Result["ddl"].(string)
	return ddl, nil
}

func supportedFramework(f config.Framework) bool {
	switch f {
	case config.FrameworkFastAPI, config.FrameworkDjango, config.FrameworkNestJS:
		return true
	}
	return false
}

// defaultEntities seed a generation run when the architecture stage was
// skipped. They match the bootstrap schema.
var defaultEntities = []string{"user", "product", "order"}

func designInputs(architecture map[string]any) (schema string, entities []string) {
	if architecture == nil {
		return "", nil
	}
	schema, _ = architecture["schema"].(string)

	switch v := architecture["entities"].(type) {
	case []string:
		entities = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				entities = append(entities, s)
			}
		}
	}
	return schema, entities
}

func frameworkStructure(f config.Framework) map[string]string {
	switch f {
	case config.FrameworkDjango:
		return map[string]string{
			"manage.py":     "Django management script",
			"config/":       "Project configuration and settings",
			"apps/":         "Django applications",
			"requirements/": "Requirements files",
		}
	case config.FrameworkNestJS:
		return map[string]string{
			"src/":              "Source code",
			"src/main.ts":       "Application entry point",
			"src/app.module.ts": "Root module",
			"src/*/":            "Feature modules",
			"test/":             "Test files",
		}
	default:
		return map[string]string{
			"app/":         "Main application package",
			"app/main.py":  "FastAPI application entry point",
			"app/routes/":  "API routes",
			"app/models/":  "SQLAlchemy models",
			"app/schemas/": "Pydantic schemas",
			"tests/":       "Test modules",
		}
	}
}

func nextSteps(cfg config.BackendConfig) []string {
	var steps []string
	switch cfg.Framework {
	case config.FrameworkDjango:
		steps = []string{
			"Review the generated settings and update .env",
			"Run `python manage.py migrate` to set up the database",
			"Create a superuser with `python manage.py createsuperuser`",
			"Start the server with `python manage.py runserver`",
		}
	case config.FrameworkNestJS:
		steps = []string{
			"Install dependencies with `npm install`",
			"Update .env with your configuration",
			"Run the database migrations",
			"Start the server with `npm run start:dev`",
		}
	default:
		steps = []string{
			"Review and update .env with your configuration",
			"Install dependencies with `pip install -r requirements.txt`",
			"Run migrations with `alembic upgrade head`",
			"Start the server with `uvicorn app.main:app --reload`",
			"Visit /docs for the generated API documentation",
		}
	}

	if cfg.Auth != nil {
		steps = append(steps, "Set a strong SECRET_KEY in the environment")
	}
	return steps
}
