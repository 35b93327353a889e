// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package generators

import (
	"context"
	"fmt"

	"genesis/backend/agents"
	"genesis/backend/config"
)

// AuthGenerator produces the authentication layer of a generated
// backend. It drives the security agent, which is framework-aware, so a
// single runner covers all frameworks.
type AuthGenerator struct {
	runner TaskRunner
}

// NewAuthGenerator creates an auth generator over the security agent.
func NewAuthGenerator(runner TaskRunner) *AuthGenerator {
	return &AuthGenerator{runner: runner}
}

// Generate runs the auth task matching the configured method. A config
// without auth generates nothing.
func (g *AuthGenerator) Generate(ctx context.Context, cfg config.BackendConfig) (map[string]string, error) {
	if cfg.Auth == nil {
		return map[string]string{}, nil
	}

	params := map[string]any{"framework": string(cfg.Framework)}

	var taskName string
	switch cfg.Auth.Method {
	case config.AuthOAuth2:
		taskName = "generate_oauth2_auth"
	case config.AuthSession:
		taskName = "generate_session_auth"
	case config.AuthSocial:
		taskName = "generate_social_auth"
		if len(cfg.Auth.OAuthProviders) > 0 {
			params["providers"] = cfg.Auth.OAuthProviders
		}
	default:
		taskName = "generate_jwt_auth"
	}

	result := g.runner.Execute(ctx, agents.NewTask(taskName, params))
	if !result.Success {
		return nil, fmt.Errorf("task %s: %s", taskName, result.Error)
	}

	files := make(map[string]string)
	mergeFiles(files, result.Result)
	return files, nil
}
