/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mongo provides a MongoDB implementation of the DataStore interface.
// Filters, sort, paging, projection and collation are all evaluated by the
// server.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	storeerrors "github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

const backendName = "mongodb"

// Store implements datastore.DataStore[T] on one collection. keyPaths name the
// document paths that together identify a record.
type Store[T storagemodels.Document] struct {
	coll     *mongo.Collection
	keyPaths []string
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for query diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storeerrors.NewUpstreamUnavailableError(backendName, err)
	}
	return client, nil
}

// NewStore constructs a Store over coll.
func NewStore[T storagemodels.Document](coll *mongo.Collection, keyPaths []string, opts ...Option) (*Store[T], error) {
	if coll == nil {
		return nil, storeerrors.NewValidationError("collection", "must not be nil")
	}
	if len(keyPaths) == 0 {
		return nil, storeerrors.NewValidationError("keyPaths", "at least one key path is required")
	}

	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Store[T]{coll: coll, keyPaths: keyPaths, logger: o.logger}, nil
}

// EnsureIndexes creates a unique index over the key paths plus one index per
// extra path list. All indexes carry the default collation so collated
// queries can use them.
func (s *Store[T]) EnsureIndexes(ctx context.Context, extra ...[]string) error {
	collation := toCollation(&storagemodels.DefaultCollation)

	models := []mongo.IndexModel{{
		Keys:    indexKeys(s.keyPaths),
		Options: options.Index().SetUnique(true).SetCollation(collation),
	}}
	for _, paths := range extra {
		models = append(models, mongo.IndexModel{
			Keys:    indexKeys(paths),
			Options: options.Index().SetCollation(collation),
		})
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return wrapError("CreateIndexes", err)
	}
	return nil
}

func indexKeys(paths []string) bson.D {
	keys := make(bson.D, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, bson.E{Key: p, Value: 1})
	}
	return keys
}

// GetOne returns the record matching key, or a NotFoundError.
func (s *Store[T]) GetOne(ctx context.Context, key storagemodels.Key) (*T, error) {
	res := s.coll.FindOne(ctx, keyFilter(key))

	result := new(T)
	if err := res.Decode(result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeerrors.NewNotFoundError(fmt.Sprintf("%T", *result), fmt.Sprint(map[string]string(key)))
		}
		return nil, wrapError("FindOne", err)
	}
	return result, nil
}

// Put replaces the record with the same key, inserting it when absent.
func (s *Store[T]) Put(ctx context.Context, entity T) error {
	filter, err := s.entityFilter(entity)
	if err != nil {
		return err
	}

	_, err = s.coll.ReplaceOne(ctx, filter, entity, options.Replace().SetUpsert(true))
	if err != nil {
		return wrapError("ReplaceOne", err)
	}
	return nil
}

// Query runs params as a collated Find.
func (s *Store[T]) Query(ctx context.Context, params *storagemodels.QueryParams) ([]T, error) {
	if params == nil {
		params = &storagemodels.QueryParams{}
	}

	filter := ToFilter(params.Filter)
	s.logger.Debug("mongo find", "collection", s.coll.Name(), "filter", filter, "skip", params.Skip, "limit", params.Limit)

	cur, err := s.coll.Find(ctx, filter, FindOptions(params))
	if err != nil {
		return nil, wrapError("Find", err)
	}
	defer cur.Close(ctx)

	var results []T
	if err := cur.All(ctx, &results); err != nil {
		return nil, wrapError("Find", err)
	}
	return results, nil
}

// Distinct returns the distinct text values at path among matching records.
func (s *Store[T]) Distinct(ctx context.Context, path string, params *storagemodels.QueryParams) ([]string, error) {
	if params == nil {
		params = &storagemodels.QueryParams{}
	}

	opts := options.Distinct()
	if params.Collation != nil {
		opts.SetCollation(toCollation(params.Collation))
	}

	raw, err := s.coll.Distinct(ctx, path, ToFilter(params.Filter), opts)
	if err != nil {
		return nil, wrapError("Distinct", err)
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

// Delete removes the record matching key. Deleting an absent record is a
// NotFoundError.
func (s *Store[T]) Delete(ctx context.Context, key storagemodels.Key) error {
	res, err := s.coll.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return wrapError("DeleteOne", err)
	}
	if res.DeletedCount == 0 {
		var zero T
		return storeerrors.NewNotFoundError(fmt.Sprintf("%T", zero), fmt.Sprint(map[string]string(key)))
	}
	return nil
}

// entityFilter builds the key filter of an entity from its own key paths.
func (s *Store[T]) entityFilter(entity T) (bson.D, error) {
	filter := make(bson.D, 0, len(s.keyPaths))
	for _, p := range s.keyPaths {
		v, ok := entity.Lookup(p)
		if !ok || v.IsNull() {
			return nil, storeerrors.NewValidationError(p, "key path is empty")
		}
		filter = append(filter, bson.E{Key: p, Value: v})
	}
	return filter, nil
}

// wrapError maps driver failures onto the catalog's error kinds.
func wrapError(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return storeerrors.NewUpstreamUnavailableError(backendName, fmt.Errorf("%s: %w", op, err))
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel("RetryableWriteError") {
		return storeerrors.NewUpstreamUnavailableError(backendName, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
