// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenService struct {
	minted    string
	mintErr   error
	claims    map[string]any
	verifyErr error
}

func (f *fakeTokenService) Mint(subject string, claims map[string]any) (string, error) {
	return f.minted, f.mintErr
}

func (f *fakeTokenService) Verify(token string) (map[string]any, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.claims, nil
}

func TestAuth_GenerateJWT_FilesExtracted(t *testing.T) {
	router := &stubRouter{resp: "```python path=app/auth.py\ndef create_token(): ...\n```"}
	agent := NewAuthAgent(router, nil)

	result := agent.Execute(context.Background(), NewTask("generate_jwt_auth", map[string]any{
		"framework": "FastAPI",
	}))

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "jwt", result.Result["auth_method"])
	assert.Equal(t, "fastapi", result.Result["framework"])

	files, ok := result.Result["files"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, files, "app/auth.py")
}

func TestAuth_GenerateJWT_MissingFramework(t *testing.T) {
	agent := NewAuthAgent(&stubRouter{}, nil)

	result := agent.Execute(context.Background(), NewTask("generate_jwt_auth", nil))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "framework")
}

func TestAuth_MintToken(t *testing.T) {
	tokens := &fakeTokenService{minted: "eyJ.signed.token"}
	agent := NewAuthAgent(&stubRouter{}, tokens)

	result := agent.Execute(context.Background(), NewTask("mint_token", map[string]any{
		"subject": "user-42",
		"claims":  map[string]any{"role": "admin"},
	}))

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "eyJ.signed.token", result.Result["token"])
	assert.Equal(t, "user-42", result.Result["subject"])
}

func TestAuth_MintToken_NoService(t *testing.T) {
	agent := NewAuthAgent(&stubRouter{}, nil)

	result := agent.Execute(context.Background(), NewTask("mint_token", map[string]any{
		"subject": "user-42",
	}))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no token service")
}

func TestAuth_VerifyToken(t *testing.T) {
	tokens := &fakeTokenService{claims: map[string]any{"sub": "user-42", "role": "admin"}}
	agent := NewAuthAgent(&stubRouter{}, tokens)

	result := agent.Execute(context.Background(), NewTask("verify_token", map[string]any{
		"token": "eyJ.signed.token",
	}))

	require.True(t, result.Success)
	assert.Equal(t, true, result.Result["valid"])

	claims, ok := result.Result["claims"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "admin", claims["role"])
}

func TestAuth_VerifyToken_Invalid(t *testing.T) {
	tokens := &fakeTokenService{verifyErr: errors.New("token is expired")}
	agent := NewAuthAgent(&stubRouter{}, tokens)

	result := agent.Execute(context.Background(), NewTask("verify_token", map[string]any{
		"token": "stale",
	}))

	// An invalid token is a successful verification with valid=false
	require.True(t, result.Success)
	assert.Equal(t, false, result.Result["valid"])
	assert.Contains(t, result.Result["reason"], "expired")
}
