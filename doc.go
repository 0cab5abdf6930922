/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

/*
Package eserp is the entity catalog of the ES-ERP rental platform: a registry
of tenant-overridable entity types, a URL-encodable universal query, and an
executor that lists and reads tenant-scoped entities through pluggable
storage backends.

Layout:
  - storagemodels: entities, entity types, tagged values and query parameters
  - datastore: the generic DataStore interface with mock, MongoDB and DynamoDB backends
  - registry: entity type lookup, lineage, effective fields and upserts
  - uquery: the universal query and its query-string codec
  - executor: tenant-scoped list, read and write operations
  - seed, bulksync: SYSTEM type reconciliation and offline Postgres import
  - api, cmd/entityd: the HTTP service

Basic Usage:

	cfg, _ := config.Load()
	cat, err := eserp.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cat.Close(ctx)

	q, _ := uquery.Parse("filter.type=asset&sort.daily_rate=-1&options.limit=20")
	res, err := cat.Executor.ListEntities(ctx, scope, q)
*/
package eserp
