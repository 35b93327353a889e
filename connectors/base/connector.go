// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package base defines the datastore connector contract. Connectors wrap
// the stores a generated backend depends on (Postgres, MySQL, MongoDB,
// Redis) and expose a uniform query/execute surface plus an idempotent
// Bootstrap that provisions the baseline schema and seed data.
package base

import (
	"context"
	"time"
)

// Connector is implemented by every datastore connector.
type Connector interface {
	// Lifecycle
	Connect(ctx context.Context, config *ConnectorConfig) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Bootstrap provisions the baseline schema and seed rows. Safe to
	// run repeatedly.
	Bootstrap(ctx context.Context) error

	// Data operations
	Query(ctx context.Context, query *Query) (*QueryResult, error)
	Execute(ctx context.Context, cmd *Command) (*CommandResult, error)

	// Metadata
	Name() string
	Type() string
	Capabilities() []string
}

// ConnectorConfig holds the configuration for a connector instance.
type ConnectorConfig struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	ConnectionURL string            `json:"connection_url"`
	Credentials   map[string]string `json:"credentials,omitempty"`
	Options       map[string]any    `json:"options,omitempty"`

	// Timeout bounds each operation. DefaultTimeout when zero.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultTimeout bounds an operation when the config sets none.
const DefaultTimeout = 5 * time.Second

// OperationTimeout resolves the effective timeout for an operation,
// preferring the per-call override over the config over the default.
func (c *ConnectorConfig) OperationTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if c != nil && c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Query is a read operation. Args are positional and bind in order to
// the statement's placeholders.
type Query struct {
	Statement string        `json:"statement"`
	Args      []any         `json:"args,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Limit     int           `json:"limit,omitempty"`
}

// QueryResult contains the rows a Query produced.
type QueryResult struct {
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Duration  time.Duration    `json:"duration"`
	Connector string           `json:"connector"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// Command is a write operation.
type Command struct {
	Action    string        `json:"action"`
	Statement string        `json:"statement"`
	Args      []any         `json:"args,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

// CommandResult reports the outcome of a Command.
type CommandResult struct {
	Success      bool           `json:"success"`
	RowsAffected int            `json:"rows_affected"`
	Duration     time.Duration  `json:"duration"`
	Message      string         `json:"message"`
	Connector    string         `json:"connector"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HealthStatus reports the health of a connector.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// ConnectorError wraps a failure in a connector operation.
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a ConnectorError.
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}
