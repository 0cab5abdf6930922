/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"context"

	"github.com/suparena/eserp/datastore"
	"github.com/suparena/eserp/storagemodels"
)

// TypeStore persists entity type records per scope. Lookups in a scope never
// fall back to another scope; overlay resolution is the Registry's job.
type TypeStore interface {
	// GetType returns a NotFoundError when the scope holds no such type.
	GetType(ctx context.Context, scope, id string) (*storagemodels.EntityType, error)
	PutType(ctx context.Context, t storagemodels.EntityType) error
	DeleteType(ctx context.Context, scope, id string) error
	// ListTypes returns the scope's types ordered by id.
	ListTypes(ctx context.Context, scope string) ([]storagemodels.EntityType, error)
}

// DataStoreTypeStore adapts a generic DataStore to TypeStore.
type DataStoreTypeStore struct {
	ds datastore.DataStore[storagemodels.EntityType]
}

// NewTypeStore wraps any EntityType backend (memory, MongoDB, DynamoDB).
func NewTypeStore(ds datastore.DataStore[storagemodels.EntityType]) *DataStoreTypeStore {
	return &DataStoreTypeStore{ds: ds}
}

func (s *DataStoreTypeStore) GetType(ctx context.Context, scope, id string) (*storagemodels.EntityType, error) {
	t, err := s.ds.GetOne(ctx, storagemodels.TypeKey(scope, id))
	if err != nil {
		return nil, err
	}
	t.Scope = scope
	return t, nil
}

func (s *DataStoreTypeStore) PutType(ctx context.Context, t storagemodels.EntityType) error {
	return s.ds.Put(ctx, t)
}

func (s *DataStoreTypeStore) DeleteType(ctx context.Context, scope, id string) error {
	return s.ds.Delete(ctx, storagemodels.TypeKey(scope, id))
}

func (s *DataStoreTypeStore) ListTypes(ctx context.Context, scope string) ([]storagemodels.EntityType, error) {
	return s.ds.Query(ctx, &storagemodels.QueryParams{
		Filter: storagemodels.Filter{storagemodels.Eq("scope", storagemodels.Text(scope))},
		Sort:   []storagemodels.SortKey{{Path: "id", Direction: storagemodels.Ascending}},
	})
}
