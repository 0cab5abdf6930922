/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/eserp/storagemodels"
)

type DataStore[T storagemodels.Document] interface {
	// GetOne returns the record matching every path in key, or a NotFoundError.
	GetOne(ctx context.Context, key storagemodels.Key) (*T, error)

	// Put inserts or replaces the record.
	Put(ctx context.Context, entity T) error

	Query(ctx context.Context, params *storagemodels.QueryParams) ([]T, error)

	// Distinct returns the distinct text values at path among records matching
	// params.Filter under params.Collation. Sort and paging are ignored.
	Distinct(ctx context.Context, path string, params *storagemodels.QueryParams) ([]string, error)

	Delete(ctx context.Context, key storagemodels.Key) error
}
