// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package mongodb implements the MongoDB datastore connector. Bootstrap
// creates the users, products, and orders collections with JSON-schema
// validators and unique indexes, the document-store counterpart of the
// relational bootstrap.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"genesis/backend/connectors/base"
	"genesis/backend/shared/logger"
)

// Connector implements base.Connector for MongoDB. Query statements are
// "collection.operation" (e.g. users.find) with a BSON filter document
// as the single argument.
type Connector struct {
	config   *base.ConnectorConfig
	client   *mongo.Client
	database *mongo.Database
	log      *logger.Logger
}

// New creates a MongoDB connector instance.
func New() *Connector {
	return &Connector{
		log: logger.New("mongodb-connector"),
	}
}

// Connect establishes the client and verifies it with a ping. The
// database name comes from Options["database"], default "genesis".
func (c *Connector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.ConnectionURL))
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to connect", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping mongodb", err)
	}

	dbName := "genesis"
	if name, ok := config.Options["database"].(string); ok && name != "" {
		dbName = name
	}

	c.client = client
	c.database = client.Database(dbName)
	c.log.Info("", "", "connected to mongodb", map[string]any{
		"connector": config.Name,
		"database":  dbName,
	})
	return nil
}

// Disconnect closes the client.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return base.NewConnectorError(c.config.Name, "Disconnect", "failed to disconnect", err)
	}
	return nil
}

// HealthCheck pings the primary.
func (c *Connector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.client == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     "client not connected",
		}, nil
	}

	start := time.Now()
	err := c.client.Ping(ctx, readpref.Primary())
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

// Query executes a read operation. Supported operations: find, findOne,
// count. The first arg, when present, is the filter document.
func (c *Connector) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.database == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "client not connected", nil)
	}

	collName, op, err := parseStatement(query.Statement)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "invalid statement", err)
	}
	coll := c.database.Collection(collName)

	filter, err := filterArg(query.Args)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "invalid filter", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.config.OperationTimeout(query.Timeout))
	defer cancel()

	start := time.Now()
	var rows []map[string]any

	switch op {
	case "find":
		opts := options.Find()
		if query.Limit > 0 {
			opts.SetLimit(int64(query.Limit))
		}
		cursor, err := coll.Find(queryCtx, filter, opts)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "find failed", err)
		}
		defer func() { _ = cursor.Close(queryCtx) }()
		if err := cursor.All(queryCtx, &rows); err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "cursor decode failed", err)
		}
	case "findOne":
		var doc map[string]any
		err := coll.FindOne(queryCtx, filter).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			rows = []map[string]any{}
		} else if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "findOne failed", err)
		} else {
			rows = []map[string]any{doc}
		}
	case "count":
		n, err := coll.CountDocuments(queryCtx, filter)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "count failed", err)
		}
		rows = []map[string]any{{"count": n}}
	default:
		return nil, base.NewConnectorError(c.Name(), "Query",
			fmt.Sprintf("unsupported operation: %s", op), nil)
	}

	return &base.QueryResult{
		Rows:      rows,
		RowCount:  len(rows),
		Duration:  time.Since(start),
		Connector: c.Name(),
		Metadata:  map[string]any{"collection": collName},
	}, nil
}

// Execute runs a write operation. Supported actions: insertOne (doc),
// updateOne (filter, update), deleteOne (filter), deleteMany (filter).
// The statement names the collection.
func (c *Connector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.database == nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "client not connected", nil)
	}
	coll := c.database.Collection(cmd.Statement)

	execCtx, cancel := context.WithTimeout(ctx, c.config.OperationTimeout(cmd.Timeout))
	defer cancel()

	start := time.Now()
	var affected int
	var message string

	switch cmd.Action {
	case "insertOne":
		doc, err := filterArg(cmd.Args)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "invalid document", err)
		}
		if _, err := coll.InsertOne(execCtx, doc); err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "insertOne failed", err)
		}
		affected, message = 1, "document inserted"
	case "updateOne":
		if len(cmd.Args) < 2 {
			return nil, base.NewConnectorError(c.Name(), "Execute", "updateOne needs filter and update", nil)
		}
		filter, err := toBSON(cmd.Args[0])
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "invalid filter", err)
		}
		update, err := toBSON(cmd.Args[1])
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "invalid update", err)
		}
		result, err := coll.UpdateOne(execCtx, filter, bson.M{"$set": update})
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "updateOne failed", err)
		}
		affected, message = int(result.ModifiedCount), "document updated"
	case "deleteOne", "deleteMany":
		filter, err := filterArg(cmd.Args)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "invalid filter", err)
		}
		var result *mongo.DeleteResult
		if cmd.Action == "deleteOne" {
			result, err = coll.DeleteOne(execCtx, filter)
		} else {
			result, err = coll.DeleteMany(execCtx, filter)
		}
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", cmd.Action+" failed", err)
		}
		affected, message = int(result.DeletedCount), fmt.Sprintf("%d documents deleted", result.DeletedCount)
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

// Bootstrap creates the validated collections and unique indexes.
// Existing collections are left untouched.
func (c *Connector) Bootstrap(ctx context.Context) error {
	if c.database == nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "client not connected", nil)
	}

	existing, err := c.database.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return base.NewConnectorError(c.Name(), "Bootstrap", "failed to list collections", err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for name, validator := range collectionValidators {
		if !present[name] {
			opts := options.CreateCollection().SetValidator(validator)
			if err := c.database.CreateCollection(ctx, name, opts); err != nil {
				return base.NewConnectorError(c.Name(), "Bootstrap", "failed to create "+name, err)
			}
		}
	}

	for name, indexes := range collectionIndexes {
		if _, err := c.database.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return base.NewConnectorError(c.Name(), "Bootstrap", "failed to index "+name, err)
		}
	}

	c.log.Info("", "", "mongodb bootstrap completed", map[string]any{
		"collections": len(collectionValidators),
	})
	return nil
}

// Name returns the connector instance name.
func (c *Connector) Name() string {
	if c.config == nil {
		return "mongodb"
	}
	return c.config.Name
}

// Type returns the connector type.
func (c *Connector) Type() string { return "mongodb" }

// Capabilities returns the supported capabilities.
func (c *Connector) Capabilities() []string {
	return []string{"query", "execute", "bootstrap", "schema_validation"}
}

// parseStatement splits "collection.operation".
func parseStatement(statement string) (collection, op string, err error) {
	for i := len(statement) - 1; i >= 0; i-- {
		if statement[i] == '.' {
			if i == 0 || i == len(statement)-1 {
				break
			}
			return statement[:i], statement[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("statement must be collection.operation, got %q", statement)
}

func filterArg(args []any) (bson.M, error) {
	if len(args) == 0 {
		return bson.M{}, nil
	}
	return toBSON(args[0])
}

func toBSON(v any) (bson.M, error) {
	switch doc := v.(type) {
	case bson.M:
		return doc, nil
	case map[string]any:
		return bson.M(doc), nil
	default:
		return nil, fmt.Errorf("expected a document, got %T", v)
	}
}

// collectionValidators hold the $jsonSchema for each bootstrap
// collection.
var collectionValidators = map[string]bson.M{
	"users": {
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"email", "password_hash", "role"},
			"properties": bson.M{
				"email":         bson.M{"bsonType": "string", "pattern": `^.+@.+$`},
				"password_hash": bson.M{"bsonType": "string"},
				"full_name":     bson.M{"bsonType": "string"},
				"role":          bson.M{"enum": []string{"admin", "manager", "customer"}},
				"is_active":     bson.M{"bsonType": "bool"},
			},
		},
	},
	"products": {
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"name", "price"},
			"properties": bson.M{
				"name":        bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string"},
				"price":       bson.M{"bsonType": []string{"double", "decimal", "int"}, "minimum": 0},
				"stock":       bson.M{"bsonType": "int", "minimum": 0},
			},
		},
	},
	"orders": {
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"user_id", "status", "items"},
			"properties": bson.M{
				"status": bson.M{"enum": []string{"pending", "paid", "shipped", "delivered", "cancelled"}},
				"items": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": []string{"product_id", "quantity", "unit_price"},
						"properties": bson.M{
							"quantity": bson.M{"bsonType": "int", "minimum": 1},
						},
					},
				},
			},
		},
	},
}

var collectionIndexes = map[string][]mongo.IndexModel{
	"users": {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	"products": {
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	"orders": {
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	},
}
