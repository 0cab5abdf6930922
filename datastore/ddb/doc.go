/*
Package ddb provides a DynamoDB implementation of the DataStore interface.

The Store supports:
  - Single-table design with one partition per scope
  - Macro-based key expansion (e.g., "SCOPE#{scope}")
  - Paged partition queries with retry and linear backoff
  - In-memory evaluation of filters, sort and paging over the partition

Macro Expansion:
Keys use macros that are replaced with attribute values of the item:

	indexMap := map[string]string{
	    "PK": "SCOPE#{scope}",   // Becomes "SCOPE#SYSTEM"
	    "SK": "TYPE#{id}",       // Becomes "TYPE#contact"
	}

Queries must pin every PK macro with an equality predicate. SK macros that are
pinned narrow the partition read with begins_with; everything else in the
filter is applied after the read.

	store, err := ddb.NewStore[storagemodels.EntityType](client, "eserp-types",
	    ddb.WithRetry(ddb.RetryOptions{PageSize: 50, MaxRetries: 5, RetryBackoff: time.Second}),
	)
*/
package ddb
