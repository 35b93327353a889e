// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements the PostgreSQL datastore connector. Its
// Bootstrap provisions the relational schema generated backends are
// developed against: roles, users, products, orders, order items, and
// the audit log.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"genesis/backend/connectors/base"
	"genesis/backend/shared/logger"
)

// Connector implements base.Connector for PostgreSQL.
type Connector struct {
	config *base.ConnectorConfig
	db     *sql.DB
	log    *logger.Logger
}

// New creates a PostgreSQL connector instance.
func New() *Connector {
	return &Connector{
		log: logger.New("postgres-connector"),
	}
}

// Connect opens the pool and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	db, err := sql.Open("postgres", config.ConnectionURL)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to open connection", err)
	}

	maxOpenConns := 25
	maxIdleConns := 5
	connMaxLifetime := 5 * time.Minute

	if val, ok := config.Options["max_open_conns"].(int); ok {
		maxOpenConns = val
	}
	if val, ok := config.Options["max_idle_conns"].(int); ok {
		maxIdleConns = val
	}
	if val, ok := config.Options["conn_max_lifetime"].(string); ok {
		if duration, err := time.ParseDuration(val); err == nil {
			connMaxLifetime = duration
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.log.Info("", "", "connected to postgres", map[string]any{
		"connector":      config.Name,
		"max_open_conns": maxOpenConns,
	})

	return nil
}

// SetDB injects a database handle. Tests use it with sqlmock.
func (c *Connector) SetDB(db *sql.DB, config *base.ConnectorConfig) {
	c.db = db
	c.config = config
}

// Disconnect closes the pool.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return base.NewConnectorError(c.config.Name, "Disconnect", "failed to close connection", err)
	}
	return nil
}

// HealthCheck pings the database and reports pool stats.
func (c *Connector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.db == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     "database not connected",
		}, nil
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	stats := c.db.Stats()
	return &base.HealthStatus{
		Healthy:   true,
		Latency:   latency,
		Timestamp: time.Now(),
		Details: map[string]string{
			"open_connections": fmt.Sprintf("%d", stats.OpenConnections),
			"in_use":           fmt.Sprintf("%d", stats.InUse),
			"idle":             fmt.Sprintf("%d", stats.Idle),
		},
	}, nil
}

// Query executes a read statement with positional $n parameters.
func (c *Connector) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "database not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.config.OperationTimeout(query.Timeout))
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(queryCtx, query.Statement, query.Args...)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	results, err := scanRows(rows, query.Limit)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "failed to scan rows", err)
	}

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Connector: c.Name(),
	}, nil
}

// Execute runs a write statement with positional $n parameters.
func (c *Connector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "database not connected", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, c.config.OperationTimeout(cmd.Timeout))
	defer cancel()

	start := time.Now()
	result, err := c.db.ExecContext(execCtx, cmd.Statement, cmd.Args...)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "command execution failed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		rowsAffected = 0
	}

	return &base.CommandResult{
		Success:      true,
		RowsAffected: int(rowsAffected),
		Duration:     time.Since(start),
		Message:      fmt.Sprintf("%s executed successfully", cmd.Action),
		Connector:    c.Name(),
	}, nil
}

// Bootstrap applies the development schema and seed data. Every
// statement is idempotent, so rerunning it is safe.
func (c *Connector) Bootstrap(ctx context.Context) error {
	if c.db == nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "database not connected", nil)
	}

	for _, stmt := range bootstrapStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return base.NewConnectorError(c.Name(), "Bootstrap", "statement failed", err)
		}
	}

	c.log.Info("", "", "postgres bootstrap completed", map[string]any{
		"statements": len(bootstrapStatements),
	})
	return nil
}

// Name returns the connector instance name.
func (c *Connector) Name() string {
	if c.config == nil {
		return "postgres"
	}
	return c.config.Name
}

// Type returns the connector type.
func (c *Connector) Type() string { return "postgres" }

// Capabilities returns the supported capabilities.
func (c *Connector) Capabilities() []string {
	return []string{"query", "execute", "transactions", "bootstrap", "connection_pooling"}
}

// scanRows reads all rows into generic maps, converting []byte columns
// to strings.
func scanRows(rows *sql.Rows, limit int) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		if limit > 0 && len(results) >= limit {
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// bootstrapStatements create and seed the development schema. Order
// matters: referenced tables first.
var bootstrapStatements = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) UNIQUE NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255),
		role_id INTEGER REFERENCES roles(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		description TEXT,
		price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'paid', 'shipped', 'delivered', 'cancelled')),
		total NUMERIC(10,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(10,2) NOT NULL,
		UNIQUE (order_id, product_id)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		request_id VARCHAR(64),
		actor VARCHAR(255),
		action VARCHAR(100) NOT NULL,
		resource VARCHAR(255),
		detail JSONB,
		status_code INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_email ON users (email)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log (action)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at)`,

	`INSERT INTO roles (name, description) VALUES
		('admin', 'Full administrative access'),
		('manager', 'Manage products and orders'),
		('customer', 'Place and view own orders')
	ON CONFLICT (name) DO NOTHING`,

	`INSERT INTO users (email, password_hash, full_name, role_id)
	SELECT 'admin@example.com', '$2b$12$placeholderhashvalue000000000000000000000000000000000', 'Admin User', r.id
	FROM roles r WHERE r.name = 'admin'
	ON CONFLICT (email) DO NOTHING`,

	`INSERT INTO products (name, description, price, stock) VALUES
		('Starter Plan', 'Entry tier subscription', 9.99, 1000),
		('Pro Plan', 'Professional tier subscription', 29.99, 1000),
		('Enterprise Plan', 'Enterprise tier subscription', 99.99, 1000)
	ON CONFLICT (name) DO NOTHING`,
}
