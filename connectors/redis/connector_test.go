// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genesis/backend/connectors/base"
)

func newTestConnector(t *testing.T) (*Connector, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := New()
	c.SetClient(client, &base.ConnectorConfig{Name: "redis-test", Type: "redis"})
	return c, mr
}

func TestConnector_Metadata(t *testing.T) {
	c := New()
	assert.Equal(t, "redis", c.Name())
	assert.Equal(t, "redis", c.Type())
	assert.Contains(t, c.Capabilities(), "bootstrap")
}

func TestConnector_Query_Get(t *testing.T) {
	c, mr := newTestConnector(t)
	require.NoError(t, mr.Set("session:abc", "user-1"))

	result, err := c.Query(context.Background(), &base.Query{
		Statement: "GET",
		Args:      []any{"session:abc"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, "user-1", result.Rows[0]["value"])
}

func TestConnector_Query_GetMissing(t *testing.T) {
	c, _ := newTestConnector(t)

	result, err := c.Query(context.Background(), &base.Query{
		Statement: "GET",
		Args:      []any{"absent"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowCount)
}

func TestConnector_Query_ExistsAndKeys(t *testing.T) {
	c, mr := newTestConnector(t)
	require.NoError(t, mr.Set("cache:a", "1"))
	require.NoError(t, mr.Set("cache:b", "2"))

	result, err := c.Query(context.Background(), &base.Query{
		Statement: "EXISTS",
		Args:      []any{"cache:a"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, result.Rows[0]["exists"])

	result, err = c.Query(context.Background(), &base.Query{
		Statement: "KEYS",
		Args:      []any{"cache:*"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)

	result, err = c.Query(context.Background(), &base.Query{
		Statement: "KEYS",
		Args:      []any{"cache:*"},
		Limit:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
}

func TestConnector_Query_Unsupported(t *testing.T) {
	c, _ := newTestConnector(t)

	_, err := c.Query(context.Background(), &base.Query{
		Statement: "SCAN",
		Args:      []any{"*"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operation")
}

func TestConnector_Execute_SetWithTTL(t *testing.T) {
	c, mr := newTestConnector(t)

	result, err := c.Execute(context.Background(), &base.Command{
		Action: "SET",
		Args:   []any{"session:xyz", "user-2", 60},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, "user-2", mustGet(t, mr, "session:xyz"))
	assert.Equal(t, 60*time.Second, mr.TTL("session:xyz"))
}

func TestConnector_Execute_Delete(t *testing.T) {
	c, mr := newTestConnector(t)
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	result, err := c.Execute(context.Background(), &base.Command{
		Action: "DELETE",
		Args:   []any{"a", "b", "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsAffected)
}

func TestConnector_Execute_Expire(t *testing.T) {
	c, mr := newTestConnector(t)
	require.NoError(t, mr.Set("a", "1"))

	result, err := c.Execute(context.Background(), &base.Command{
		Action: "EXPIRE",
		Args:   []any{"a", 30},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsAffected)
	assert.Equal(t, 30*time.Second, mr.TTL("a"))
}

func TestConnector_Bootstrap(t *testing.T) {
	c, mr := newTestConnector(t)

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, "86400", mustGet(t, mr, SessionTTLKey))
	assert.Equal(t, "1", mustGet(t, mr, CacheVersionKey))

	// Rerun must not clobber an operator-tuned value
	require.NoError(t, mr.Set(SessionTTLKey, "3600"))
	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, "3600", mustGet(t, mr, SessionTTLKey))
}

func TestConnector_NotConnected(t *testing.T) {
	c := New()

	_, err := c.Query(context.Background(), &base.Query{Statement: "GET", Args: []any{"k"}})
	require.Error(t, err)

	_, err = c.Execute(context.Background(), &base.Command{Action: "SET", Args: []any{"k", "v"}})
	require.Error(t, err)

	require.Error(t, c.Bootstrap(context.Background()))

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

func TestConnector_HealthCheck(t *testing.T) {
	c, _ := newTestConnector(t)

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	val, err := mr.Get(key)
	require.NoError(t, err)
	return val
}
