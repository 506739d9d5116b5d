package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/synapse-db/synapse/internal/source"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 5 * time.Second

// Adapter implements source.DocumentSource backed by a MongoDB database.
type Adapter struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
}

// NewAdapter connects to MongoDB and verifies the connection with a ping.
func NewAdapter(ctx context.Context, uri, database string) (*Adapter, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Adapter{
		client: client,
		db:     client.Database(database),
		name:   database,
	}, nil
}

// Name returns the database name.
func (a *Adapter) Name() string {
	return a.name
}

// ListCollections returns the collection names in the database.
func (a *Adapter) ListCollections(ctx context.Context) ([]string, error) {
	names, err := a.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CountDocuments returns the number of documents in a collection.
func (a *Adapter) CountDocuments(ctx context.Context, collection string) (int64, error) {
	count, err := a.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", collection, err)
	}
	return count, nil
}

// FindDocuments returns documents in natural storage order. A non-positive
// limit returns the whole collection.
func (a *Adapter) FindDocuments(ctx context.Context, collection string, limit int64) ([]source.Document, error) {
	findOpts := options.Find()
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cursor, err := a.db.Collection(collection).Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []source.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, normalizeDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", collection, err)
	}

	return docs, nil
}

// Close disconnects the underlying client.
func (a *Adapter) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// normalizeDocument converts BSON-specific values into plain Go values so
// downstream text building and fingerprinting see stable strings.
func normalizeDocument(raw bson.M) source.Document {
	doc := make(source.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
