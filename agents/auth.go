// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"

	"genesis/backend/llm"
)

// TokenService mints and verifies signed tokens. The server's JWT
// manager satisfies it, which lets the auth agent issue working tokens
// for generated backends without reaching into server internals.
type TokenService interface {
	Mint(subject string, claims map[string]any) (string, error)
	Verify(token string) (map[string]any, error)
}

// AuthAgent generates authentication and authorization code across
// frameworks, and can mint and verify tokens through a TokenService.
type AuthAgent struct {
	*Agent

	tokens TokenService
}

const authSystemPrompt = "You are a security engineer specializing in authentication. Generate " +
	"code that follows current OWASP guidance. Tag every file with a fenced " +
	"code block whose info string carries path=<relative file path>."

// NewAuthAgent creates the auth generator agent. tokens may be nil; the
// mint_token and verify_token tasks then report failure.
func NewAuthAgent(router Router, tokens TokenService) *AuthAgent {
	a := &AuthAgent{
		Agent:  NewAgent("auth", "Auth Generator", "security", router),
		tokens: tokens,
	}

	a.register("generate_jwt_auth", a.generateJWT)
	a.register("generate_oauth2_auth", a.generateOAuth2)
	a.register("generate_session_auth", a.generateSession)
	a.register("generate_user_management", a.generateUserManagement)
	a.register("generate_role_permissions", a.generateRolePermissions)
	a.register("generate_auth_middleware", a.generateMiddleware)
	a.register("generate_password_security", a.generatePasswordSecurity)
	a.register("generate_social_auth", a.generateSocialAuth)
	a.register("mint_token", a.mintToken)
	a.register("verify_token", a.verifyToken)

	return a
}

func (a *AuthAgent) generateJWT(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}

	prompt := fmt.Sprintf(`Generate JWT authentication for a %s backend.

Cover access and refresh tokens, HS256 signing with the secret from the
environment, short access-token lifetime, refresh rotation, and the
login/refresh/logout endpoints. Validate exp, iat, and sub on every
request.`, framework)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"framework":   framework,
		"auth_method": "jwt",
	})
}

func (a *AuthAgent) generateOAuth2(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}
	flow := stringParam(params, "flow")
	if flow == "" {
		flow = "authorization_code"
	}

	prompt := fmt.Sprintf(`Design and generate OAuth2 %s flow support for a %s backend.

Cover the authorization endpoint redirect, state parameter validation,
PKCE, token exchange, and session establishment after callback. Explain
where tokens are stored and why.`, flow, framework)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{
		"framework":   framework,
		"auth_method": "oauth2",
		"flow":        flow,
	})
}

func (a *AuthAgent) generateSession(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}

	prompt := fmt.Sprintf(`Generate server-side session authentication for a %s backend.

Store sessions in Redis with a TTL, use secure HttpOnly SameSite cookies,
regenerate the session ID on login, and destroy it on logout. Include the
login/logout endpoints and the session middleware.`, framework)

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"framework":   framework,
		"auth_method": "session",
	})
}

func (a *AuthAgent) generateUserManagement(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}

	prompt := fmt.Sprintf(`Design and generate user management for a %s backend.

Cover registration with email verification, profile update, password
reset with single-use expiring tokens, account deactivation, and the
admin listing endpoint. State the abuse cases each flow defends against.`, framework)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{"framework": framework})
}

func (a *AuthAgent) generateRolePermissions(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}
	roles := sliceParam(params, "roles")
	if len(roles) == 0 {
		roles = []string{"admin", "manager", "customer"}
	}

	prompt := fmt.Sprintf(`Design role-based access control for a %s backend with roles:
%s

Produce the role and permission model, the role check decorator or guard,
and the seed data for the roles table. Permissions are strings of the
form resource:action.`, framework, bulletList(roles))

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{
		"framework": framework,
		"roles":     roles,
	})
}

func (a *AuthAgent) generateMiddleware(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}

	prompt := fmt.Sprintf(`Generate authentication middleware for a %s backend.

Extract the bearer token, verify it, attach the user to the request
context, and reject with 401 on failure. Include a route allowlist for
public endpoints.`, framework)

	return a.generate(ctx, llm.ActionFastCoding, prompt, map[string]any{"framework": framework})
}

func (a *AuthAgent) generatePasswordSecurity(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}

	prompt := fmt.Sprintf(`Design password handling for a %s backend.

Cover bcrypt hashing with an explicit cost, a length-first strength
policy, rate limiting on login, constant-time comparison, and breached-
password checking. Generate the hashing and validation helpers.`, framework)

	return a.generate(ctx, llm.ActionReasoning, prompt, map[string]any{"framework": framework})
}

func (a *AuthAgent) generateSocialAuth(ctx context.Context, params map[string]any) (map[string]any, error) {
	framework := requiredFramework(params)
	if framework == "" {
		return nil, fmt.Errorf("framework parameter is required")
	}
	providers := sliceParam(params, "providers")
	if len(providers) == 0 {
		providers = []string{"google", "github"}
	}

	prompt := fmt.Sprintf(`Generate social login for a %s backend with providers:
%s

Cover the provider OAuth flows, account linking by verified email, and
first-login user provisioning. Keep provider credentials in the
environment.`, framework, bulletList(providers))

	return a.generate(ctx, llm.ActionCodeGeneration, prompt, map[string]any{
		"framework": framework,
		"providers": providers,
	})
}

func (a *AuthAgent) mintToken(ctx context.Context, params map[string]any) (map[string]any, error) {
	if a.tokens == nil {
		return nil, fmt.Errorf("no token service configured")
	}
	subject := stringParam(params, "subject")
	if subject == "" {
		return nil, fmt.Errorf("subject parameter is required")
	}

	token, err := a.tokens.Mint(subject, mapParam(params, "claims"))
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	return map[string]any{
		"token":   token,
		"subject": subject,
	}, nil
}

func (a *AuthAgent) verifyToken(ctx context.Context, params map[string]any) (map[string]any, error) {
	if a.tokens == nil {
		return nil, fmt.Errorf("no token service configured")
	}
	token := stringParam(params, "token")
	if token == "" {
		return nil, fmt.Errorf("token parameter is required")
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return map[string]any{"valid": false, "reason": err.Error()}, nil
	}

	return map[string]any{
		"valid":  true,
		"claims": claims,
	}, nil
}

func (a *AuthAgent) generate(ctx context.Context, action llm.Action, prompt string, extra map[string]any) (map[string]any, error) {
	content, err := a.complete(ctx, action, authSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"code":  content,
		"files": CodeBlocksByPath(content),
	}
	for k, v := range extra {
		result[k] = v
	}
	return result, nil
}

func requiredFramework(params map[string]any) string {
	return strings.ToLower(stringParam(params, "framework"))
}
