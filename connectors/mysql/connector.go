// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package mysql implements the MySQL datastore connector. The bootstrap
// schema mirrors the postgres one in MySQL dialect.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"genesis/backend/connectors/base"
	"genesis/backend/shared/logger"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// Connector implements base.Connector for MySQL 8+.
type Connector struct {
	config *base.ConnectorConfig
	db     *sql.DB
	log    *logger.Logger
}

// New creates a MySQL connector instance.
func New() *Connector {
	return &Connector{
		log: logger.New("mysql-connector"),
	}
}

// Connect opens the pool and verifies it with a ping. ConnectionURL is a
// go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/dbname?parseTime=true.
func (c *Connector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	db, err := sql.Open("mysql", config.ConnectionURL)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to open connection", err)
	}

	maxOpen := defaultMaxOpenConns
	if val, ok := config.Options["max_open_conns"].(int); ok {
		maxOpen = val
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.log.Info("", "", "connected to mysql", map[string]any{"connector": config.Name})
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

// HealthCheck pings the database.
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
		},
	}, nil
}

// Query executes a read statement with positional ? parameters.
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

// Execute runs a write statement with positional ? parameters.
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

// Bootstrap applies the development schema and seed data. INSERT IGNORE
// keeps the seeds idempotent.
func (c *Connector) Bootstrap(ctx context.Context) error {
	if c.db == nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "database not connected", nil)
	}

	for _, stmt := range bootstrapStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return base.NewConnectorError(c.Name(), "Bootstrap", "statement failed", err)
		}
	}

	c.log.Info("", "", "mysql bootstrap completed", map[string]any{
		"statements": len(bootstrapStatements),
	})
	return nil
}

// Name returns the connector instance name.
func (c *Connector) Name() string {
	if c.config == nil {
		return "mysql"
	}
	return c.config.Name
}

// Type returns the connector type.
func (c *Connector) Type() string { return "mysql" }

// Capabilities returns the supported capabilities.
func (c *Connector) Capabilities() []string {
	return []string{"query", "execute", "transactions", "bootstrap", "connection_pooling"}
}

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

var bootstrapStatements = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255),
		role_id INT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS products (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		price DECIMAL(10,2) NOT NULL,
		stock INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS orders (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		status ENUM('pending', 'paid', 'shipped', 'delivered', 'cancelled') NOT NULL DEFAULT 'pending',
		total DECIMAL(10,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id INT AUTO_INCREMENT PRIMARY KEY,
		order_id INT NOT NULL,
		product_id INT NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		UNIQUE KEY uq_order_product (order_id, product_id),
		CONSTRAINT fk_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		CONSTRAINT fk_items_product FOREIGN KEY (product_id) REFERENCES products(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		request_id VARCHAR(64),
		actor VARCHAR(255),
		action VARCHAR(100) NOT NULL,
		resource VARCHAR(255),
		detail JSON,
		status_code INT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_audit_log_action (action),
		INDEX idx_audit_log_created_at (created_at)
	) ENGINE=InnoDB`,

	`INSERT IGNORE INTO roles (name, description) VALUES
		('admin', 'Full administrative access'),
		('manager', 'Manage products and orders'),
		('customer', 'Place and view own orders')`,

	`INSERT IGNORE INTO users (email, password_hash, full_name, role_id)
	SELECT 'admin@example.com', '$2b$12$placeholderhashvalue000000000000000000000000000000000', 'Admin User', r.id
	FROM roles r WHERE r.name = 'admin'`,

	`INSERT IGNORE INTO products (name, description, price, stock) VALUES
		('Starter Plan', 'Entry tier subscription', 9.99, 1000),
		('Pro Plan', 'Professional tier subscription', 29.99, 1000),
		('Enterprise Plan', 'Enterprise tier subscription', 99.99, 1000)`,
}
