// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package redis implements the Redis datastore connector. Generated
// backends use Redis for sessions and response caching; Bootstrap seeds
// the session TTL and cache version keys they read at startup.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"genesis/backend/connectors/base"
	"genesis/backend/shared/logger"
)

// Bootstrap keys. SetNX keeps reruns from clobbering tuned values.
const (
	SessionTTLKey   = "genesis:config:session_ttl_seconds"
	CacheVersionKey = "genesis:cache:version"

	defaultSessionTTLSeconds = 86400
)

// Connector implements base.Connector for Redis. Query statements and
// command actions name Redis operations (GET, SET, ...), with the key
// and value as positional args.
type Connector struct {
	config *base.ConnectorConfig
	client *redis.Client
	log    *logger.Logger
}

// New creates a Redis connector instance.
func New() *Connector {
	return &Connector{
		log: logger.New("redis-connector"),
	}
}

// Connect establishes the client and verifies it with a ping.
// ConnectionURL is a redis:// URL.
func (c *Connector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	opts, err := redis.ParseURL(config.ConnectionURL)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "invalid connection URL", err)
	}
	if pw, ok := config.Credentials["password"]; ok && pw != "" {
		opts.Password = pw
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping redis", err)
	}

	c.client = client
	c.log.Info("", "", "connected to redis", map[string]any{"connector": config.Name})
	return nil
}

// SetClient injects a client. Tests use it with miniredis.
func (c *Connector) SetClient(client *redis.Client, config *base.ConnectorConfig) {
	c.client = client
	c.config = config
}

// Disconnect closes the client.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return base.NewConnectorError(c.config.Name, "Disconnect", "failed to close client", err)
	}
	return nil
}

// HealthCheck pings the server.
func (c *Connector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.client == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     "client not connected",
		}, nil
	}

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	return &base.HealthStatus{
		Healthy:   true,
		Latency:   latency,
		Timestamp: time.Now(),
	}, nil
}

// Query executes a read operation. Supported statements: GET, EXISTS,
// TTL, KEYS.
func (c *Connector) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.client == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "client not connected", nil)
	}

	key, err := keyArg(query.Args)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "missing key argument", err)
	}

	start := time.Now()
	var rows []map[string]any

	switch query.Statement {
	case "GET":
		val, err := c.client.Get(ctx, key).Result()
		if err == redis.Nil {
			rows = []map[string]any{}
		} else if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "GET failed", err)
		} else {
			rows = []map[string]any{{"key": key, "value": val}}
		}
	case "EXISTS":
		n, err := c.client.Exists(ctx, key).Result()
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "EXISTS failed", err)
		}
		rows = []map[string]any{{"key": key, "exists": n > 0}}
	case "TTL":
		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "TTL failed", err)
		}
		rows = []map[string]any{{"key": key, "ttl_seconds": int64(ttl.Seconds())}}
	case "KEYS":
		keys, err := c.client.Keys(ctx, key).Result()
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "KEYS failed", err)
		}
		for _, k := range keys {
			if query.Limit > 0 && len(rows) >= query.Limit {
				break
			}
			rows = append(rows, map[string]any{"key": k})
		}
	default:
		return nil, base.NewConnectorError(c.Name(), "Query",
			fmt.Sprintf("unsupported operation: %s", query.Statement), nil)
	}

	return &base.QueryResult{
		Rows:      rows,
		RowCount:  len(rows),
		Duration:  time.Since(start),
		Connector: c.Name(),
	}, nil
}

// Execute runs a write operation. Supported actions: SET (key, value,
// optional TTL seconds), DELETE (keys...), EXPIRE (key, TTL seconds).
func (c *Connector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.client == nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "client not connected", nil)
	}

	start := time.Now()
	var affected int
	var message string

	switch cmd.Action {
	case "SET":
		if len(cmd.Args) < 2 {
			return nil, base.NewConnectorError(c.Name(), "Execute", "SET needs key and value", nil)
		}
		key := fmt.Sprint(cmd.Args[0])
		var ttl time.Duration
		if len(cmd.Args) >= 3 {
			if secs, ok := toInt64(cmd.Args[2]); ok {
				ttl = time.Duration(secs) * time.Second
			}
		}
		if err := c.client.Set(ctx, key, cmd.Args[1], ttl).Err(); err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "SET failed", err)
		}
		affected, message = 1, fmt.Sprintf("key %s set", key)
	case "DELETE":
		keys := make([]string, 0, len(cmd.Args))
		for _, arg := range cmd.Args {
			keys = append(keys, fmt.Sprint(arg))
		}
		if len(keys) == 0 {
			return nil, base.NewConnectorError(c.Name(), "Execute", "DELETE needs at least one key", nil)
		}
		n, err := c.client.Del(ctx, keys...).Result()
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "DELETE failed", err)
		}
		affected, message = int(n), fmt.Sprintf("%d keys deleted", n)
	case "EXPIRE":
		if len(cmd.Args) < 2 {
			return nil, base.NewConnectorError(c.Name(), "Execute", "EXPIRE needs key and TTL seconds", nil)
		}
		key := fmt.Sprint(cmd.Args[0])
		secs, ok := toInt64(cmd.Args[1])
		if !ok {
			return nil, base.NewConnectorError(c.Name(), "Execute", "EXPIRE TTL must be numeric", nil)
		}
		ok, err := c.client.Expire(ctx, key, time.Duration(secs)*time.Second).Result()
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "EXPIRE failed", err)
		}
		if ok {
			affected = 1
		}
		message = fmt.Sprintf("expiry set on %s", key)
	default:
		return nil, base.NewConnectorError(c.Name(), "Execute",
			fmt.Sprintf("unsupported action: %s", cmd.Action), nil)
	}

	return &base.CommandResult{
		Success:      true,
		RowsAffected: affected,
		Duration:     time.Since(start),
		Message:      message,
		Connector:    c.Name(),
	}, nil
}

// Bootstrap seeds the session TTL and cache version keys.
func (c *Connector) Bootstrap(ctx context.Context) error {
	if c.client == nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "client not connected", nil)
	}

	if err := c.client.SetNX(ctx, SessionTTLKey, defaultSessionTTLSeconds, 0).Err(); err != nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "failed to seed session TTL", err)
	}
	if err := c.client.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "failed to seed cache version", err)
	}

	c.log.Info("", "", "redis bootstrap completed", nil)
	return nil
}

// Name returns the connector instance name.
func (c *Connector) Name() string {
	if c.config == nil {
		return "redis"
	}
	return c.config.Name
}

// Type returns the connector type.
func (c *Connector) Type() string { return "redis" }

// Capabilities returns the supported capabilities.
func (c *Connector) Capabilities() []string {
	return []string{"query", "execute", "bootstrap", "ttl", "caching"}
}

func keyArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("no arguments")
	}
	return fmt.Sprint(args[0]), nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
