// Package mongo implements the `mongo` hook action, which loads a node's rows
// into a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultBatchSize      = 1000
	defaultConnectTimeout = 10 * time.Second
)

// Collection is the part of a MongoDB collection the action writes to.
type Collection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	Drop(ctx context.Context) error
}

// Database opens collections and releases the connection.
type Database interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// Dial connects to a database. Defaults to a mongo-driver client.
	Dial func(ctx context.Context, input *Input) (Database, error)
}

// Input defines the arguments of a mongo block.
type Input struct {
	URI      string `hcl:"uri"`
	Database string `hcl:"database"`
	// Collection defaults to the node name.
	Collection     string `hcl:"collection,optional"`
	Drop           bool   `hcl:"drop,optional"`
	BatchSize      int    `hcl:"batch_size,optional"`
	ConnectTimeout string `hcl:"connect_timeout,optional"`
}

// Load is the handler for the 'mongo' action.
func (m *Module) Load(ctx context.Context, input *Input, args *model.HookArgs) error {
	if args.Batches == nil {
		return fmt.Errorf("mongo action is only supported in export hooks")
	}
	name := input.Collection
	if name == "" {
		name = args.Name
	}
	size := input.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	logger := ctxlog.FromContext(ctx).With("database", input.Database, "collection", name)

	dial := m.Dial
	if dial == nil {
		dial = Dial
	}
	db, err := dial(ctx, input)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	coll := db.Collection(name)
	if input.Drop {
		logger.Debug("Dropping collection.")
		if err := coll.Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}

	docs := 0
	for page, err := range args.Batches {
		if err != nil {
			return err
		}
		for from := 0; from < len(page); from += size {
			chunk := Documents(args.Columns, page[from:min(from+size, len(page))])
			if _, err := coll.InsertMany(ctx, chunk); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", name, err)
			}
			docs += len(chunk)
		}
	}
	logger.Info("📦 Node loaded into collection.", "node", args.Name, "documents", docs)
	return nil
}

// Documents converts rows to ordered BSON documents.
func Documents(columns []string, rows []model.Record) []interface{} {
	out := make([]interface{}, len(rows))
	for i, row := range rows {
		doc := make(bson.D, 0, len(columns))
		for _, col := range columns {
			doc = append(doc, bson.E{Key: col, Value: row[col]})
		}
		out[i] = doc
	}
	return out
}

// Dial connects with the mongo-driver and verifies the connection.
func Dial(ctx context.Context, input *Input) (Database, error) {
	timeout := defaultConnectTimeout
	if input.ConnectTimeout != "" {
		d, err := time.ParseDuration(input.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connect_timeout: %w", err)
		}
		timeout = d
	}

	opts := options.Client().ApplyURI(input.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &database{client: client, db: client.Database(input.Database)}, nil
}

type database struct {
	client *mongo.Client
	db     *mongo.Database
}

func (d *database) Collection(name string) Collection { return d.db.Collection(name) }

func (d *database) Close(ctx context.Context) error { return d.client.Disconnect(ctx) }

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("mongo", registry.Action(m.Load))
}
