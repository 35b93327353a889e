// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFramework(t *testing.T) {
	tests := []struct {
		input    string
		expected Framework
		wantErr  bool
	}{
		{"fastapi", FrameworkFastAPI, false},
		{"Django", FrameworkDjango, false},
		{"  nestjs  ", FrameworkNestJS, false},
		{"express", FrameworkExpress, false},
		{"rails", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFramework(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported framework")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, f)
			}
		})
	}
}

func TestParseDatabaseType(t *testing.T) {
	for _, valid := range []string{"postgresql", "mysql", "sqlite", "mongodb", "redis"} {
		d, err := ParseDatabaseType(valid)
		require.NoError(t, err)
		assert.True(t, d.Valid())
	}

	_, err := ParseDatabaseType("oracle")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"oracle"`)
}

func TestDatabaseConfigConnectionURL(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name:     "sqlite file form",
			config:   DatabaseConfig{Type: DatabaseSQLite, Name: "app.db"},
			expected: "sqlite:///app.db",
		},
		{
			name:     "sqlite without name",
			config:   DatabaseConfig{Type: DatabaseSQLite},
			expected: "sqlite:///",
		},
		{
			name: "postgres with full credentials",
			config: DatabaseConfig{
				Type: DatabasePostgreSQL, Host: "db", Port: 5432,
				Name: "shop", User: "admin", Password: "secret",
			},
			expected: "postgresql://admin:secret@db:5432/shop",
		},
		{
			name:     "user without password",
			config:   DatabaseConfig{Type: DatabaseMySQL, Host: "db", Name: "shop", User: "admin"},
			expected: "mysql://admin@db/shop",
		},
		{
			name:     "no credentials defaults to localhost",
			config:   DatabaseConfig{Type: DatabaseMongoDB, Port: 27017, Name: "shop"},
			expected: "mongodb://localhost:27017/shop",
		},
		{
			name:     "redis without database name",
			config:   DatabaseConfig{Type: DatabaseRedis, Host: "cache", Port: 6379},
			expected: "redis://cache:6379",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.ConnectionURL())
		})
	}
}

func TestAuthConfigDefaults(t *testing.T) {
	cfg := AuthConfig{Method: AuthJWT}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "HS256", cfg.Algorithm)
	assert.Equal(t, 30, cfg.AccessTokenExpireMinutes)
	assert.Equal(t, 7, cfg.RefreshTokenExpireDays)
}

func TestAuthConfigExplicitValuesKept(t *testing.T) {
	cfg := AuthConfig{
		Method:                   AuthOAuth2,
		Algorithm:                "RS256",
		AccessTokenExpireMinutes: 60,
		RefreshTokenExpireDays:   30,
		OAuthProviders:           []string{"google", "github"},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "RS256", cfg.Algorithm)
	assert.Equal(t, 60, cfg.AccessTokenExpireMinutes)
	assert.Equal(t, 30, cfg.RefreshTokenExpireDays)
}

func TestAuthConfigInvalidMethod(t *testing.T) {
	cfg := AuthConfig{Method: "basic"}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"basic"`)
}

func TestBackendConfigValidate(t *testing.T) {
	t.Run("project name required", func(t *testing.T) {
		cfg := BackendConfig{}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "project_name is required")
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := BackendConfig{ProjectName: "ecommerce-api"}
		require.NoError(t, cfg.Validate())

		assert.Equal(t, FrameworkFastAPI, cfg.Framework)
		assert.Equal(t, "0.1.0", cfg.Version)
		assert.Equal(t, "v1", cfg.APIVersion)
	})

	t.Run("unknown framework rejected", func(t *testing.T) {
		cfg := BackendConfig{ProjectName: "api", Framework: "spring"}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `"spring"`)
	})

	t.Run("nested database validated", func(t *testing.T) {
		cfg := BackendConfig{
			ProjectName: "api",
			Database:    &DatabaseConfig{Type: "oracle"},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("nested auth gets defaults", func(t *testing.T) {
		cfg := BackendConfig{
			ProjectName: "api",
			Auth:        &AuthConfig{Method: AuthJWT},
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	})
}

func TestBackendConfigLanguage(t *testing.T) {
	tests := []struct {
		framework Framework
		language  string
	}{
		{FrameworkFastAPI, "python"},
		{FrameworkDjango, "python"},
		{FrameworkNestJS, "typescript"},
		{FrameworkExpress, "javascript"},
	}

	for _, tt := range tests {
		cfg := BackendConfig{ProjectName: "api", Framework: tt.framework}
		assert.Equal(t, tt.language, cfg.Language(), "framework %s", tt.framework)
	}
}

func TestBackendConfigJSONRoundTrip(t *testing.T) {
	original := BackendConfig{
		ProjectName: "ecommerce-api",
		Description: "E-commerce backend",
		Framework:   FrameworkFastAPI,
		Version:     "1.2.0",
		Features:    []string{"authentication", "payments"},
		APIVersion:  "v1",
		CORSOrigins: []string{"http://localhost:3000"},
		Database: &DatabaseConfig{
			Type: DatabasePostgreSQL,
			Host: "db",
			Port: 5432,
			Name: "shop",
			User: "admin",
			ORM:  ORMSQLAlchemy,
		},
		Auth: &AuthConfig{
			Method:    AuthJWT,
			SecretKey: "change-me",
			Algorithm: "HS256",
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded BackendConfig
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}
