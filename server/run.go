// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"genesis/backend/config"
	"genesis/backend/connectors/base"
	"genesis/backend/connectors/mongodb"
	"genesis/backend/connectors/mysql"
	"genesis/backend/connectors/postgres"
	"genesis/backend/connectors/redis"
	"genesis/backend/llm"
	_ "genesis/backend/llm/anthropic"
	_ "genesis/backend/llm/bedrock"
	_ "genesis/backend/llm/deepseek"
	_ "genesis/backend/llm/openai"
	"genesis/backend/shared/logger"
)

const (
	providerHealthInterval = 30 * time.Second
	providerReloadInterval = 30 * time.Second
)

// Run assembles the service from the environment and serves it until
// SIGINT or SIGTERM.
func Run() error {
	log := logger.New("genesisd")
	cfg := config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var auditDB *sql.DB
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("", "", "database unavailable, falling back to in-memory audit", map[string]any{
				"error": err.Error(),
			})
		} else {
			auditDB = db
		}
	}

	registry, err := buildRegistry(ctx, cfg, auditDB, log)
	if err != nil {
		return err
	}
	registry.StartPeriodicHealthCheck(ctx, providerHealthInterval)
	registry.StartPeriodicReload(ctx, providerReloadInterval)
	router := llm.NewRouter(registry)

	srv := New(Options{
		Router:    router,
		Providers: router,
		AuditDB:   auditDB,
		JWTSecret: cfg.JWTSecret,
		Version:   version(),
	})

	registerConnectors(ctx, srv, cfg, log)

	return srv.Run(ctx, ":"+cfg.Port)
}

// buildRegistry registers one provider per configured credential. When a
// Postgres handle is available the registry persists provider configs to
// llm_providers and the periodic reload picks up rows written by other
// replicas.
func buildRegistry(ctx context.Context, cfg *config.ServiceConfig, db *sql.DB, log *logger.Logger) (*llm.Registry, error) {
	var opts []llm.RegistryOption
	if db != nil {
		storage := llm.NewPostgresStorage(db)
		if err := storage.EnsureSchema(ctx); err != nil {
			log.Error("", "", "provider storage unavailable, registry will not persist", map[string]any{
				"error": err.Error(),
			})
		} else {
			opts = append(opts, llm.WithStorage(storage))
		}
	}
	registry := llm.NewRegistry(opts...)

	providers := []*llm.ProviderConfig{}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, &llm.ProviderConfig{
			Name:    "claude-primary",
			Type:    llm.ProviderTypeAnthropic,
			APIKey:  cfg.AnthropicAPIKey,
			Enabled: true,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, &llm.ProviderConfig{
			Name:    "openai-primary",
			Type:    llm.ProviderTypeOpenAI,
			APIKey:  cfg.OpenAIAPIKey,
			Enabled: true,
		})
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, &llm.ProviderConfig{
			Name:    "deepseek-primary",
			Type:    llm.ProviderTypeDeepSeek,
			APIKey:  cfg.DeepSeekAPIKey,
			Enabled: true,
		})
	}
	if cfg.BedrockModelID != "" {
		providers = append(providers, &llm.ProviderConfig{
			Name:    "bedrock-primary",
			Type:    llm.ProviderTypeBedrock,
			Model:   cfg.BedrockModelID,
			Region:  cfg.AWSRegion,
			Enabled: true,
		})
	}

	for _, p := range providers {
		if err := registry.Register(ctx, p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// registerConnectors connects every configured dev datastore and makes
// it available to /api/v1/bootstrap. Connection failures are logged and
// skipped so one missing datastore does not take the service down.
func registerConnectors(ctx context.Context, srv *Server, cfg *config.ServiceConfig, log *logger.Logger) {
	type candidate struct {
		name    string
		url     string
		connect func(ctx context.Context, config *base.ConnectorConfig) error
		conn    base.Connector
	}

	pg := postgres.New()
	my := mysql.New()
	mg := mongodb.New()
	rd := redis.New()

	candidates := []candidate{
		{"postgres", cfg.DatabaseURL, pg.Connect, pg},
		{"mysql", cfg.MySQLDSN, my.Connect, my},
		{"mongodb", cfg.MongoURI, mg.Connect, mg},
		{"redis", redisURL(cfg.RedisAddr), rd.Connect, rd},
	}

	for _, c := range candidates {
		if c.url == "" {
			continue
		}

		err := c.connect(ctx, &base.ConnectorConfig{
			Name:          c.name,
			Type:          c.name,
			ConnectionURL: c.url,
		})
		if err != nil {
			log.Error("", "", "datastore unavailable", map[string]any{
				"connector": c.name,
				"error":     err.Error(),
			})
			continue
		}

		srv.RegisterBootstrapper(c.name, c.conn)
		log.Info("", "", "datastore registered", map[string]any{"connector": c.name})
	}
}

func redisURL(addr string) string {
	if addr == "" {
		return ""
	}
	return "redis://" + addr
}

func version() string {
	if v := os.Getenv("GENESIS_VERSION"); v != "" {
		return v
	}
	return "dev"
}
