package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bling-mirror/internal/logging"
)

// MongoStore is the MongoDB-backed document store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log := logging.Component("MongoDB")
	log.Info().Str("database", database).Msg("connected")

	return &MongoStore{client: client, db: client.Database(database), log: log}, nil
}

// Kind returns "mongodb".
func (s *MongoStore) Kind() string { return "mongodb" }

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// MongoCollection implements Collection over one MongoDB collection.
type MongoCollection[T any] struct {
	coll *mongo.Collection
}

// NewMongoCollection opens name and creates ascending indexes on indexFields.
func NewMongoCollection[T any](ctx context.Context, s *MongoStore, name string, indexFields ...string) *MongoCollection[T] {
	coll := s.db.Collection(name)

	for _, field := range indexFields {
		indexModel := mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}}
		if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
			s.log.Warn().Err(err).Str("collection", name).Str("field", field).Msg("failed to create index")
		}
	}

	return &MongoCollection[T]{coll: coll}
}

// Find returns matching documents in insertion order.
func (c *MongoCollection[T]) Find(ctx context.Context, f Filter) ([]T, error) {
	query := bson.M{}
	if f.Field != "" {
		query[f.Field] = bson.M{"$gte": f.Since}
	}

	order := 1
	if f.Newest {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: order}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := c.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

// Count returns the number of documents.
func (c *MongoCollection[T]) Count(ctx context.Context) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

// DeleteMany removes every document.
func (c *MongoCollection[T]) DeleteMany(ctx context.Context) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

// InsertMany inserts docs in order. An empty slice is a no-op.
func (c *MongoCollection[T]) InsertMany(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}

	batch := make([]interface{}, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}

	if _, err := c.coll.InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return nil
}
