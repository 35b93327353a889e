// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL-backed storage.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// EnsureSchema creates the llm_providers table if it does not exist.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS llm_providers (
			name            TEXT PRIMARY KEY,
			type            TEXT NOT NULL,
			api_key         TEXT,
			endpoint        TEXT,
			model           TEXT,
			region          TEXT,
			enabled         BOOLEAN NOT NULL DEFAULT true,
			priority        INTEGER NOT NULL DEFAULT 0,
			weight          INTEGER NOT NULL DEFAULT 0,
			timeout_seconds INTEGER NOT NULL DEFAULT 0,
			settings        JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create llm_providers table: %w", err)
	}
	return nil
}

// SaveProvider persists a provider configuration with upsert semantics.
func (s *PostgresStorage) SaveProvider(ctx context.Context, config *ProviderConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}

	settingsJSON, err := json.Marshal(config.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO llm_providers (
			name, type, api_key, endpoint, model, region,
			enabled, priority, weight, timeout_seconds, settings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name) DO UPDATE SET
			type = EXCLUDED.type,
			api_key = EXCLUDED.api_key,
			endpoint = EXCLUDED.endpoint,
			model = EXCLUDED.model,
			region = EXCLUDED.region,
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			weight = EXCLUDED.weight,
			timeout_seconds = EXCLUDED.timeout_seconds,
			settings = EXCLUDED.settings,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		config.Name,
		config.Type,
		config.APIKey,
		config.Endpoint,
		config.Model,
		config.Region,
		config.Enabled,
		config.Priority,
		config.Weight,
		config.TimeoutSeconds,
		settingsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}

	return nil
}

// GetProvider retrieves a provider configuration by name.
func (s *PostgresStorage) GetProvider(ctx context.Context, name string) (*ProviderConfig, error) {
	query := `
		SELECT name, type, api_key, endpoint, model, region,
		       enabled, priority, weight, timeout_seconds, settings
		FROM llm_providers
		WHERE name = $1
	`

	var config ProviderConfig
	var apiKey, endpoint, model, region sql.NullString
	var settingsJSON []byte

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&config.Name,
		&config.Type,
		&apiKey,
		&endpoint,
		&model,
		&region,
		&config.Enabled,
		&config.Priority,
		&config.Weight,
		&config.TimeoutSeconds,
		&settingsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("provider %q not found", name)
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	config.APIKey = apiKey.String
	config.Endpoint = endpoint.String
	config.Model = model.String
	config.Region = region.String

	// Settings default to an empty map so callers never see nil
	config.Settings = make(map[string]any)
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &config.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return &config, nil
}

// DeleteProvider removes a provider configuration from the database.
func (s *PostgresStorage) DeleteProvider(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM llm_providers WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("provider %q not found", name)
	}

	return nil
}

// ListProviders returns all persisted provider names.
func (s *PostgresStorage) ListProviders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM llm_providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan provider name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating providers: %w", err)
	}

	return names, nil
}

// Ensure PostgresStorage implements Storage interface.
var _ Storage = (*PostgresStorage)(nil)
