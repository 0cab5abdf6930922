/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package eserp

import (
	"context"
	"fmt"
	"log/slog"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/suparena/eserp/config"
	"github.com/suparena/eserp/datastore"
	"github.com/suparena/eserp/datastore/ddb"
	"github.com/suparena/eserp/datastore/mock"
	"github.com/suparena/eserp/datastore/mongo"
	"github.com/suparena/eserp/executor"
	"github.com/suparena/eserp/registry"
	"github.com/suparena/eserp/seed"
	"github.com/suparena/eserp/storagemodels"
)

// Catalog bundles the stores and services of one process.
type Catalog struct {
	Entities datastore.DataStore[storagemodels.Entity]
	Types    datastore.DataStore[storagemodels.EntityType]
	Registry *registry.Registry
	Executor *executor.Executor

	mongoClient *mongodriver.Client
	logger      *slog.Logger
}

// Open connects the backends named by cfg and wires the services over them.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Catalog{logger: logger}

	if cfg.EntityStore == config.BackendMongo || cfg.TypeStore == config.BackendMongo {
		client, err := mongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		c.mongoClient = client
	}

	var err error
	if c.Entities, err = c.openEntities(ctx, cfg); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	if c.Types, err = c.openTypes(ctx, cfg); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Registry = registry.New(registry.NewTypeStore(c.Types), registry.WithLogger(logger.With("component", "registry")))
	c.Executor = executor.New(c.Entities, c.Registry,
		executor.WithLogger(logger.With("component", "executor")),
		executor.WithMaxLimit(cfg.MaxPageSize),
	)

	logger.Info("catalog opened", "entity_store", cfg.EntityStore, "type_store", cfg.TypeStore)
	return c, nil
}

func (c *Catalog) openEntities(ctx context.Context, cfg *config.Config) (datastore.DataStore[storagemodels.Entity], error) {
	if cfg.EntityStore != config.BackendMongo {
		return mock.New[storagemodels.Entity](), nil
	}
	coll := c.mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.EntityCollection)
	store, err := mongo.NewStore[storagemodels.Entity](coll, storagemodels.EntityKeyPaths,
		mongo.WithLogger(c.logger.With("component", "entities")))
	if err != nil {
		return nil, err
	}
	err = store.EnsureIndexes(ctx,
		[]string{storagemodels.PathTenantID, storagemodels.PathHidden, storagemodels.PathEntityTypeID},
		[]string{storagemodels.PathTenantID, storagemodels.PathParentID},
	)
	if err != nil {
		return nil, fmt.Errorf("ensuring entity indexes: %w", err)
	}
	return store, nil
}

func (c *Catalog) openTypes(ctx context.Context, cfg *config.Config) (datastore.DataStore[storagemodels.EntityType], error) {
	switch cfg.TypeStore {
	case config.BackendMongo:
		coll := c.mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.TypeCollection)
		store, err := mongo.NewStore[storagemodels.EntityType](coll, storagemodels.TypeKeyPaths,
			mongo.WithLogger(c.logger.With("component", "types")))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensuring type indexes: %w", err)
		}
		return store, nil
	case config.BackendDynamoDB:
		client, err := ddb.NewDynamoDBClient(ctx, ddb.ClientConfig{
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return ddb.NewStore[storagemodels.EntityType](client, cfg.AWS.Table,
			ddb.WithLogger(c.logger.With("component", "types")))
	default:
		return mock.New[storagemodels.EntityType](), nil
	}
}

// Seed reconciles the built-in SYSTEM entity types.
func (c *Catalog) Seed(ctx context.Context) (seed.Report, error) {
	types, err := seed.SystemTypes()
	if err != nil {
		return seed.Report{}, err
	}
	return seed.NewReconciler(c.Registry, seed.WithLogger(c.logger.With("component", "seed"))).Reconcile(ctx, types)
}

// Close releases backend connections.
func (c *Catalog) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	err := c.mongoClient.Disconnect(ctx)
	c.mongoClient = nil
	return err
}
