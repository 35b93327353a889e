// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package config defines the backend project configuration model: which
// framework to generate, which database and ORM the project targets, and
// how authentication is wired. A BackendConfig is the input to every
// generation run.
package config

import (
	"fmt"
	"strings"
)

// Framework identifies a supported backend framework.
type Framework string

const (
	FrameworkFastAPI Framework = "fastapi"
	FrameworkDjango  Framework = "django"
	FrameworkNestJS  Framework = "nestjs"
	FrameworkExpress Framework = "express"
)

// Valid reports whether the framework is one of the supported values.
func (f Framework) Valid() bool {
	switch f {
	case FrameworkFastAPI, FrameworkDjango, FrameworkNestJS, FrameworkExpress:
		return true
	}
	return false
}

// ParseFramework converts a string to a Framework, rejecting unknown values.
func ParseFramework(s string) (Framework, error) {
	f := Framework(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unsupported framework: %q", s)
	}
	return f, nil
}

// DatabaseType identifies a supported database engine.
type DatabaseType string

const (
	DatabasePostgreSQL DatabaseType = "postgresql"
	DatabaseMySQL      DatabaseType = "mysql"
	DatabaseSQLite     DatabaseType = "sqlite"
	DatabaseMongoDB    DatabaseType = "mongodb"
	DatabaseRedis      DatabaseType = "redis"
)

// Valid reports whether the database type is supported.
func (d DatabaseType) Valid() bool {
	switch d {
	case DatabasePostgreSQL, DatabaseMySQL, DatabaseSQLite, DatabaseMongoDB, DatabaseRedis:
		return true
	}
	return false
}

// ParseDatabaseType converts a string to a DatabaseType.
func ParseDatabaseType(s string) (DatabaseType, error) {
	d := DatabaseType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unsupported database type: %q", s)
	}
	return d, nil
}

// ORMType identifies a supported ORM or ODM.
type ORMType string

const (
	ORMSQLAlchemy ORMType = "sqlalchemy"
	ORMDjango     ORMType = "django_orm"
	ORMTypeORM    ORMType = "typeorm"
	ORMPrisma     ORMType = "prisma"
	ORMMongoose   ORMType = "mongoose"
)

// Valid reports whether the ORM type is supported.
func (o ORMType) Valid() bool {
	switch o {
	case ORMSQLAlchemy, ORMDjango, ORMTypeORM, ORMPrisma, ORMMongoose:
		return true
	}
	return false
}

// AuthMethod identifies a supported authentication method.
type AuthMethod string

const (
	AuthJWT     AuthMethod = "jwt"
	AuthOAuth2  AuthMethod = "oauth2"
	AuthSession AuthMethod = "session"
	AuthSocial  AuthMethod = "social"
)

// Valid reports whether the auth method is supported.
func (a AuthMethod) Valid() bool {
	switch a {
	case AuthJWT, AuthOAuth2, AuthSession, AuthSocial:
		return true
	}
	return false
}

// DatabaseConfig describes the database a generated project connects to.
type DatabaseConfig struct {
	Type     DatabaseType `json:"type" yaml:"type"`
	Host     string       `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int          `json:"port,omitempty" yaml:"port,omitempty"`
	Name     string       `json:"name,omitempty" yaml:"name,omitempty"`
	User     string       `json:"user,omitempty" yaml:"user,omitempty"`
	Password string       `json:"password,omitempty" yaml:"password,omitempty"`
	ORM      ORMType      `json:"orm,omitempty" yaml:"orm,omitempty"`
}

// ConnectionURL builds the connection URL for the configured engine.
// SQLite uses the file form sqlite:///name. For the network engines the
// credential block is present only when a user is set, and the host
// defaults to localhost.
func (c DatabaseConfig) ConnectionURL() string {
	if c.Type == DatabaseSQLite {
		return "sqlite:///" + c.Name
	}

	cred := ""
	if c.User != "" {
		cred = c.User
		if c.Password != "" {
			cred += ":" + c.Password
		}
		cred += "@"
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}

	port := ""
	if c.Port > 0 {
		port = fmt.Sprintf(":%d", c.Port)
	}

	name := ""
	if c.Name != "" {
		name = "/" + c.Name
	}

	return fmt.Sprintf("%s://%s%s%s%s", c.Type, cred, host, port, name)
}

// Validate checks the database configuration.
func (c DatabaseConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unsupported database type: %q", c.Type)
	}
	if c.ORM != "" && !c.ORM.Valid() {
		return fmt.Errorf("unsupported ORM: %q", c.ORM)
	}
	return nil
}

// Default token lifetimes for generated auth configurations.
const (
	DefaultAlgorithm          = "HS256"
	DefaultAccessTokenExpiry  = 30 // minutes
	DefaultRefreshTokenExpiry = 7  // days
)

// AuthConfig describes the authentication the generated project uses.
type AuthConfig struct {
	Method                   AuthMethod `json:"method" yaml:"method"`
	SecretKey                string     `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Algorithm                string     `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	AccessTokenExpireMinutes int        `json:"access_token_expire_minutes,omitempty" yaml:"access_token_expire_minutes,omitempty"`
	RefreshTokenExpireDays   int        `json:"refresh_token_expire_days,omitempty" yaml:"refresh_token_expire_days,omitempty"`
	OAuthProviders           []string   `json:"oauth_providers,omitempty" yaml:"oauth_providers,omitempty"`
	SessionTimeout           int        `json:"session_timeout,omitempty" yaml:"session_timeout,omitempty"`
	CookieSecure             bool       `json:"cookie_secure,omitempty" yaml:"cookie_secure,omitempty"`
	CookieHTTPOnly           bool       `json:"cookie_httponly,omitempty" yaml:"cookie_httponly,omitempty"`
}

// ApplyDefaults fills the zero-valued fields with the standard defaults.
// Defaults are applied at validation time, not at construction.
func (c *AuthConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if c.AccessTokenExpireMinutes == 0 {
		c.AccessTokenExpireMinutes = DefaultAccessTokenExpiry
	}
	if c.RefreshTokenExpireDays == 0 {
		c.RefreshTokenExpireDays = DefaultRefreshTokenExpiry
	}
}

// Validate checks the auth configuration and applies defaults.
func (c *AuthConfig) Validate() error {
	if !c.Method.Valid() {
		return fmt.Errorf("unsupported auth method: %q", c.Method)
	}
	c.ApplyDefaults()
	return nil
}

// BackendConfig is the top-level configuration for a generation run.
type BackendConfig struct {
	ProjectName string          `json:"project_name" yaml:"project_name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Framework   Framework       `json:"framework,omitempty" yaml:"framework,omitempty"`
	Version     string          `json:"version,omitempty" yaml:"version,omitempty"`
	Debug       bool            `json:"debug,omitempty" yaml:"debug,omitempty"`
	Features    []string        `json:"features,omitempty" yaml:"features,omitempty"`
	APIVersion  string          `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	CORSOrigins []string        `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	Database    *DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	Auth        *AuthConfig     `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// Language returns the implementation language of the configured framework.
func (c BackendConfig) Language() string {
	switch c.Framework {
	case FrameworkNestJS:
		return "typescript"
	case FrameworkExpress:
		return "javascript"
	default:
		return "python"
	}
}

// Validate checks the required fields and enum values and applies defaults
// to the zero-valued optional fields.
func (c *BackendConfig) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is required")
	}

	if c.Framework == "" {
		c.Framework = FrameworkFastAPI
	}
	if !c.Framework.Valid() {
		return fmt.Errorf("unsupported framework: %q", c.Framework)
	}

	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.APIVersion == "" {
		c.APIVersion = "v1"
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return err
		}
	}
	return nil
}
