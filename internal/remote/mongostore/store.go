// Package mongostore implements remote.DocumentStore on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/remote"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a MongoDB-backed document store. Documents are keyed by _id.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ remote.DocumentStore = (*Store)(nil)

// Open creates a client for uri without waiting for the server: the driver
// connects in the background and every call selects a server under its own
// context. Only a malformed uri or bad options fail here.
func Open(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Connect is Open followed by a Ping bounded by timeout.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	s, err := Open(ctx, uri, database, timeout)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Ping(pctx); err != nil {
		_ = s.Close(context.Background())
		return nil, err
	}
	return s, nil
}

// Ping checks that a server answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Get returns collection/id.
func (s *Store) Get(ctx context.Context, collection, id string) (bson.Raw, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// Set upserts collection/id with doc.
func (s *Store) Set(ctx context.Context, collection, id string, doc any) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes collection/id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Query returns the documents of collection whose field equals value.
func (s *Store) Query(ctx context.Context, collection, field, value string) ([]bson.Raw, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{field: value})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		// Current is only valid until the next call to Next
		out = append(out, append(bson.Raw(nil), cur.Current...))
	}
	return out, cur.Err()
}
