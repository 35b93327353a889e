// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesis/backend/agents"
	"genesis/backend/config"
	"genesis/backend/llm"
)

// fileRouter answers every completion with a path-tagged code block so
// the whole pipeline produces files.
type fileRouter struct {
	calls int
}

func (r *fileRouter) Route(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	r.calls++
	content := fmt.Sprintf("```python path=generated/file_%d.py\n# %s\n```", r.calls, req.Action)
	return &llm.CompletionResponse{Content: content, Provider: "stub"}, nil
}

// failRouter fails every completion.
type failRouter struct{}

func (failRouter) Route(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, fmt.Errorf("all providers unavailable")
}

func TestBackendGenerator_Generate(t *testing.T) {
	router := &fileRouter{}
	gen := NewBackendGenerator(router, nil)

	result, err := gen.Generate(context.Background(), fastapiConfig(), map[string]any{
		"schema":   "users(id, email)",
		"entities": []any{"user", "product"},
	})
	require.NoError(t, err)

	assert.Equal(t, config.FrameworkFastAPI, result.Framework)

	// LLM-authored files: app + routes + 2 model tasks + auth
	assert.Contains(t, result.Files, "generated/file_1.py")
	assert.GreaterOrEqual(t, router.calls, 5)

	// Scaffolding merged in
	assert.Contains(t, result.Files, "Dockerfile")
	assert.Contains(t, result.Files, "docker-compose.yml")
	assert.Contains(t, result.Files, "README.md")

	assert.Equal(t, []string{"catalog", "orders"}, result.Features)
	assert.NotEmpty(t, result.NextSteps)
	assert.Contains(t, result.NextSteps, "Set a strong SECRET_KEY in the environment")
	assert.Equal(t, len(result.Files), result.Metadata["total_files"])
	assert.NotEmpty(t, result.Structure)
}

func TestBackendGenerator_Generate_DesignsSchemaWhenMissing(t *testing.T) {
	router := &fileRouter{}
	gen := NewBackendGenerator(router, nil)

	cfg := fastapiConfig()
	cfg.Auth = nil

	result, err := gen.Generate(context.Background(), cfg, nil)
	require.NoError(t, err)

	// One extra call for the schema design task
	assert.NotEmpty(t, result.Files)
	assert.NotContains(t, result.NextSteps, "Set a strong SECRET_KEY in the environment")
}

func TestBackendGenerator_Generate_UnsupportedFramework(t *testing.T) {
	gen := NewBackendGenerator(&fileRouter{}, nil)

	cfg := fastapiConfig()
	cfg.Framework = config.FrameworkExpress

	_, err := gen.Generate(context.Background(), cfg, nil)

	var ufe *UnsupportedFrameworkError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, config.FrameworkExpress, ufe.Framework)
}

func TestBackendGenerator_Generate_InvalidConfig(t *testing.T) {
	gen := NewBackendGenerator(&fileRouter{}, nil)

	_, err := gen.Generate(context.Background(), config.BackendConfig{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_name")
}

func TestBackendGenerator_Generate_RouterFailure(t *testing.T) {
	gen := NewBackendGenerator(failRouter{}, nil)

	_, err := gen.Generate(context.Background(), fastapiConfig(), map[string]any{
		"schema": "users(id)",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestGenerationResult_WriteTree(t *testing.T) {
	dir := t.TempDir()

	result := &GenerationResult{
		Files: map[string]string{
			"app/main.py":   "print('hi')",
			"Dockerfile":    "FROM python",
			"docs/USAGE.md": "# usage",
		},
	}
	require.NoError(t, result.WriteTree(dir))

	content, err := os.ReadFile(filepath.Join(dir, "app", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(content))

	_, err = os.Stat(filepath.Join(dir, "docs", "USAGE.md"))
	assert.NoError(t, err)
}

func TestGenerationResult_WriteTree_RejectsTraversal(t *testing.T) {
	result := &GenerationResult{
		Files: map[string]string{"../escape.py": "oops"},
	}

	err := result.WriteTree(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to write")
}

func TestAuthGenerator_MethodSelection(t *testing.T) {
	cases := []struct {
		method config.AuthMethod
		task   string
	}{
		{config.AuthJWT, "generate_jwt_auth"},
		{config.AuthOAuth2, "generate_oauth2_auth"},
		{config.AuthSession, "generate_session_auth"},
		{config.AuthSocial, "generate_social_auth"},
	}

	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			runner := &recordingRunner{}
			gen := NewAuthGenerator(runner)

			cfg := fastapiConfig()
			cfg.Auth = &config.AuthConfig{Method: tc.method}

			_, err := gen.Generate(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.task, runner.lastTask)
		})
	}
}

func TestAuthGenerator_NoAuthConfigured(t *testing.T) {
	runner := &recordingRunner{}
	gen := NewAuthGenerator(runner)

	cfg := fastapiConfig()
	cfg.Auth = nil

	files, err := gen.Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, runner.lastTask)
}

// recordingRunner records the last task and succeeds with no files.
type recordingRunner struct {
	lastTask string
}

func (r *recordingRunner) Execute(_ context.Context, task agents.AgentTask) agents.TaskResult {
	r.lastTask = task.Name
	return agents.TaskResult{TaskID: task.ID, Success: true, Result: map[string]any{}}
}
