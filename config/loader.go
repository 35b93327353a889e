// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a BackendConfig from a YAML or JSON file. The format is
// picked by extension; everything that is not .json is parsed as YAML.
// The config is validated before it is returned.
func Load(path string) (*BackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg BackendConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServiceConfig holds the runtime configuration of the Genesis service
// itself, loaded from the environment the 12-factor way.
type ServiceConfig struct {
	Port      string
	JWTSecret string

	// Audit/storage database (PostgreSQL)
	DatabaseURL string

	// Dev database connectors
	MySQLDSN  string
	MongoURI  string
	RedisAddr string

	// Provider credentials
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	AWSRegion       string
	BedrockModelID  string
}

// LoadEnv builds the service configuration from environment variables.
// DATABASE_URL wins over the individual DATABASE_* variables when both
// are set.
func LoadEnv() *ServiceConfig {
	return &ServiceConfig{
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		DatabaseURL:     postgresURLFromEnv(),
		MySQLDSN:        mysqlDSNFromEnv(),
		MongoURI:        getEnv("MONGO_URI", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID:  os.Getenv("BEDROCK_MODEL_ID"),
	}
}

// postgresURLFromEnv assembles a PostgreSQL URL from DATABASE_* variables,
// URL-escaping the credentials. An explicit DATABASE_URL takes precedence.
func postgresURLFromEnv() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return ""
	}

	port := getEnv("DATABASE_PORT", "5432")
	name := getEnv("DATABASE_NAME", "genesis")
	user := getEnv("DATABASE_USER", "genesis")
	password := os.Getenv("DATABASE_PASSWORD")
	sslmode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(user), url.QueryEscape(password), host, port, name, sslmode)
}

// mysqlDSNFromEnv assembles a go-sql-driver DSN from MYSQL_* variables.
func mysqlDSNFromEnv() string {
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		return dsn
	}

	host := os.Getenv("MYSQL_HOST")
	if host == "" {
		return ""
	}

	port := getEnvInt("MYSQL_PORT", 3306)
	name := getEnv("MYSQL_DATABASE", "genesis")
	user := getEnv("MYSQL_USER", "genesis")
	password := os.Getenv("MYSQL_PASSWORD")

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", user, password, host, port, name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
