/*
Package datastore defines the core interfaces for the catalog's data persistence layer.

The main interface is DataStore[T], which provides generic operations for any
record type T implementing storagemodels.Document:

	type DataStore[T storagemodels.Document] interface {
	    GetOne(ctx context.Context, key storagemodels.Key) (*T, error)
	    Put(ctx context.Context, entity T) error
	    Query(ctx context.Context, params *storagemodels.QueryParams) ([]T, error)
	    Distinct(ctx context.Context, path string, params *storagemodels.QueryParams) ([]string, error)
	    Delete(ctx context.Context, key storagemodels.Key) error
	}

Implementations:
  - mongo: MongoDB implementation; filters, sort, paging and collation run server side
  - ddb: DynamoDB single-table implementation with in-memory post-filtering
  - mock: In-memory implementation for tests and the memory backend

All implementations evaluate QueryParams with the same ordering rules, so a
query returns the same rows in the same order on every backend.
*/
package datastore
