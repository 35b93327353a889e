// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"

	"genesis/backend/llm"
)

// Bootstrapper provisions a datastore with the baseline schema and seed
// rows. The connector packages satisfy it.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// DatabaseAgent designs schemas, generates ORM code and migrations, and
// can bootstrap live datastores through registered connectors.
type DatabaseAgent struct {
	*Agent

	bootstrappers map[string]Bootstrapper
}

const databaseSystemPrompt = "You are a senior database engineer. Design for integrity first, " +
	"performance second. Tag generated files with fenced code blocks whose " +
	"info string carries path=<relative file path>."

// NewDatabaseAgent creates the database design agent.
func NewDatabaseAgent(router Router) *DatabaseAgent {
	a := &DatabaseAgent{
		Agent:         NewAgent("database", "Database Designer", "database", router),
		bootstrappers: make(map[string]Bootstrapper),
	}

	a.register("design_database_schema", a.designSchema)
	a.register("generate_orm_models", a.generateORMModels)
	a.register("create_database_migrations", a.createMigrations)
	a.register("optimize_database_queries", a.optimizeQueries)
	a.register("design_relationships", a.designRelationships)
	a.register("validate_data_integrity", a.validateIntegrity)
	a.register("generate_seed_data", a.generateSeedData)
	a.register("bootstrap_database", a.bootstrapDatabase)

	return a
}

// RegisterBootstrapper makes a datastore available to the
// bootstrap_database task under the given name, e.g. "postgres".
func (a *DatabaseAgent) RegisterBootstrapper(name string, b Bootstrapper) {
	a.bootstrappers[name] = b
}

func (a *DatabaseAgent) designSchema(ctx context.Context, params map[string]any) (map[string]any, error) {
	requirements := stringParam(params, "requirements")
	if requirements == "" {
		return nil, fmt.Errorf("requirements parameter is required")
	}
	database := stringParam(params, "database")
	if database == "" {
		database = "postgresql"
	}

	prompt := fmt.Sprintf(`Design a %s schema for these requirements:

%s

Produce:
1. Tables (columns, types, constraints)
2. Primary And Foreign Keys
3. Indexes
4. DDL

Emit the DDL as a single sql code block.`, database, requirements)

	content, err := a.complete(ctx, llm.ActionReasoning, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"schema_design": content,
		"database":      database,
		"ddl":           FirstCodeBlock(content),
	}, nil
}

func (a *DatabaseAgent) generateORMModels(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}
	orm := stringParam(params, "orm")
	if orm == "" {
		orm = "sqlalchemy"
	}

	prompt := fmt.Sprintf(`Generate %s ORM models from this schema:

%s

Keep the model definitions faithful to the column types and constraints.
Include relationship declarations on both sides.`, orm, schema)

	content, err := a.complete(ctx, llm.ActionCodeGeneration, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"code":  content,
		"files": CodeBlocksByPath(content),
		"orm":   orm,
	}, nil
}

func (a *DatabaseAgent) createMigrations(ctx context.Context, params map[string]any) (map[string]any, error) {
	current := stringParam(params, "current_schema")
	target := stringParam(params, "target_schema")
	if target == "" {
		return nil, fmt.Errorf("target_schema parameter is required")
	}

	prompt := fmt.Sprintf(`Create database migrations.

Current schema:
%s

Target schema:
%s

Produce ordered up and down migration scripts. Call out any step that
requires a data backfill or cannot run inside a transaction.`, orEmpty(current, "(empty database)"), target)

	content, err := a.complete(ctx, llm.ActionReasoning, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"migrations": content,
		"files":      CodeBlocksByPath(content),
	}, nil
}

func (a *DatabaseAgent) optimizeQueries(ctx context.Context, params map[string]any) (map[string]any, error) {
	queries := stringParam(params, "queries")
	if queries == "" {
		return nil, fmt.Errorf("queries parameter is required")
	}
	schema := stringParam(params, "schema")

	prompt := fmt.Sprintf(`Optimize these queries:

%s

Schema:
%s

For each query give the rewritten version, the index it needs, and the
expected plan change.`, queries, schema)

	content, err := a.complete(ctx, llm.ActionFastCoding, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"optimizations": content,
	}, nil
}

func (a *DatabaseAgent) designRelationships(ctx context.Context, params map[string]any) (map[string]any, error) {
	entities := sliceParam(params, "entities")
	if len(entities) == 0 {
		return nil, fmt.Errorf("entities parameter is required")
	}
	requirements := stringParam(params, "requirements")

	prompt := fmt.Sprintf(`Design the relationships between these entities:
%s

Requirements:
%s

For each pair that relates, state the cardinality, the owning side, the
foreign key placement, and the delete behavior.`, bulletList(entities), requirements)

	content, err := a.complete(ctx, llm.ActionReasoning, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"relationships": content,
		"entities":      entities,
	}, nil
}

func (a *DatabaseAgent) validateIntegrity(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}

	prompt := fmt.Sprintf(`Audit this schema for data integrity gaps:

%s

Check missing foreign keys, nullable columns that should not be, absent
unique constraints, orphan-row risks, and unguarded enumerations. List
each finding with the fixing DDL.`, schema)

	content, err := a.complete(ctx, llm.ActionReasoning, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"audit":   content,
		"fix_ddl": FirstCodeBlock(content),
	}, nil
}

func (a *DatabaseAgent) generateSeedData(ctx context.Context, params map[string]any) (map[string]any, error) {
	schema := stringParam(params, "schema")
	if schema == "" {
		return nil, fmt.Errorf("schema parameter is required")
	}
	rows := stringParam(params, "rows_per_table")
	if rows == "" {
		rows = "10"
	}

	prompt := fmt.Sprintf(`Generate realistic seed data for this schema, about %s rows per table:

%s

Emit INSERT statements in dependency order so foreign keys resolve.
Use plausible names, emails, and prices, not placeholders.`, rows, schema)

	content, err := a.complete(ctx, llm.ActionGenerateText, databaseSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"seed_data": content,
		"sql":       FirstCodeBlock(content),
	}, nil
}

// bootstrapDatabase provisions the named datastores (all registered ones
// when the task names none). No LLM call is involved.
func (a *DatabaseAgent) bootstrapDatabase(ctx context.Context, params map[string]any) (map[string]any, error) {
	targets := sliceParam(params, "targets")
	if len(targets) == 0 {
		for name := range a.bootstrappers {
			targets = append(targets, name)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no datastores registered for bootstrap")
	}

	bootstrapped := make([]string, 0, len(targets))
	for _, name := range targets {
		b, ok := a.bootstrappers[name]
		if !ok {
			return nil, fmt.Errorf("no bootstrapper registered for datastore %q", name)
		}
		if err := b.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap %s: %w", name, err)
		}
		bootstrapped = append(bootstrapped, name)
	}

	return map[string]any{
		"bootstrapped": bootstrapped,
	}, nil
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
