package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCollection struct {
	name    string
	inserts [][]interface{}
	dropped bool
	err     error
}

func (c *fakeCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inserts = append(c.inserts, docs)
	return &mongo.InsertManyResult{}, nil
}

func (c *fakeCollection) Drop(context.Context) error {
	c.dropped = true
	return nil
}

type fakeDatabase struct {
	colls  map[string]*fakeCollection
	closed bool
}

func (d *fakeDatabase) Collection(name string) Collection {
	if d.colls[name] == nil {
		d.colls[name] = &fakeCollection{name: name}
	}
	return d.colls[name]
}

func (d *fakeDatabase) Close(context.Context) error {
	d.closed = true
	return nil
}

func users(n int) *model.HookArgs {
	rows := make([]model.Record, n)
	for i := range rows {
		rows[i] = model.Record{"id": int64(i + 1), "name": "u"}
	}
	return &model.HookArgs{
		Group:   "db",
		Name:    "users",
		Columns: []string{"id", "name"},
		Batches: func(yield func([]model.Record, error) bool) {
			yield(rows, nil)
		},
	}
}

func TestDocuments(t *testing.T) {
	docs := Documents([]string{"b", "a"}, []model.Record{{"a": 1, "b": "x"}})
	require.Len(t, docs, 1)
	assert.Equal(t, bson.D{{Key: "b", Value: "x"}, {Key: "a", Value: 1}}, docs[0])
}

func TestLoad(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("inserts in batches", func(t *testing.T) {
		// --- Arrange ---
		db := &fakeDatabase{colls: map[string]*fakeCollection{}}
		m := &Module{Dial: func(context.Context, *Input) (Database, error) { return db, nil }}

		// --- Act ---
		err := m.Load(ctx, &Input{Database: "seed", Drop: true, BatchSize: 2}, users(5))

		// --- Assert ---
		require.NoError(t, err)
		coll := db.colls["users"]
		require.NotNil(t, coll)
		assert.True(t, coll.dropped)
		require.Len(t, coll.inserts, 3)
		assert.Len(t, coll.inserts[2], 1)
		assert.True(t, db.closed)
	})

	t.Run("collection override", func(t *testing.T) {
		db := &fakeDatabase{colls: map[string]*fakeCollection{}}
		m := &Module{Dial: func(context.Context, *Input) (Database, error) { return db, nil }}
		require.NoError(t, m.Load(ctx, &Input{Database: "seed", Collection: "people"}, users(1)))
		assert.Contains(t, db.colls, "people")
		assert.False(t, db.colls["people"].dropped)
	})

	t.Run("insert failure", func(t *testing.T) {
		db := &fakeDatabase{colls: map[string]*fakeCollection{"users": {err: errors.New("duplicate key")}}}
		m := &Module{Dial: func(context.Context, *Input) (Database, error) { return db, nil }}
		err := m.Load(ctx, &Input{Database: "seed"}, users(1))
		assert.ErrorContains(t, err, "duplicate key")
		assert.True(t, db.closed)
	})

	t.Run("only export hooks", func(t *testing.T) {
		err := (&Module{}).Load(ctx, &Input{}, &model.HookArgs{Group: "db"})
		assert.ErrorContains(t, err, "only supported in export hooks")
	})

	t.Run("invalid connect timeout", func(t *testing.T) {
		_, err := Dial(ctx, &Input{URI: "mongodb://localhost", ConnectTimeout: "soon"})
		assert.ErrorContains(t, err, "connect_timeout")
	})
}
