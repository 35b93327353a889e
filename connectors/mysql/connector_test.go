// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesis/backend/connectors/base"
)

func newMockConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := New()
	c.SetDB(db, &base.ConnectorConfig{Name: "mysql-test", Type: "mysql"})
	return c, mock
}

func TestConnector_Metadata(t *testing.T) {
	c := New()
	assert.Equal(t, "mysql", c.Name())
	assert.Equal(t, "mysql", c.Type())
	assert.Contains(t, c.Capabilities(), "bootstrap")
}

func TestConnector_Query(t *testing.T) {
	c, mock := newMockConnector(t)

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, []byte("Starter Plan"))
	mock.ExpectQuery("SELECT id, name FROM products WHERE stock > \\?").
		WithArgs(0).
		WillReturnRows(rows)

	result, err := c.Query(context.Background(), &base.Query{
		Statement: "SELECT id, name FROM products WHERE stock > ?",
		Args:      []any{0},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, "Starter Plan", result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnector_Query_NotConnected(t *testing.T) {
	c := New()

	_, err := c.Query(context.Background(), &base.Query{Statement: "SELECT 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestConnector_Execute(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(1, "pending").
		WillReturnResult(sqlmock.NewResult(42, 1))

	result, err := c.Execute(context.Background(), &base.Command{
		Action:    "INSERT",
		Statement: "INSERT INTO orders (user_id, status) VALUES (?, ?)",
		Args:      []any{1, "pending"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnector_Bootstrap(t *testing.T) {
	c, mock := newMockConnector(t)

	for range bootstrapStatements {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnector_Bootstrap_Dialect(t *testing.T) {
	joined := strings.Join(bootstrapStatements, "\n")

	// MySQL dialect, not Postgres
	assert.Contains(t, joined, "AUTO_INCREMENT")
	assert.Contains(t, joined, "ENGINE=InnoDB")
	assert.Contains(t, joined, "INSERT IGNORE")
	assert.NotContains(t, joined, "SERIAL")
	assert.NotContains(t, joined, "ON CONFLICT")
}

func TestConnector_Bootstrap_Error(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectExec(".*").WillReturnError(errors.New("access denied"))

	err := c.Bootstrap(context.Background())
	require.Error(t, err)

	var connErr *base.ConnectorError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "Bootstrap", connErr.Operation)
}

func TestConnector_HealthCheck(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectPing()

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
