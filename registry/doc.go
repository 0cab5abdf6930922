/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

/*
Package registry resolves entity types and maps Go types onto DynamoDB keys.

Entity types live in scopes: SYSTEM holds the seeded catalog and every tenant
may override a type by storing one with the same id in its own scope. Lookups
always try the tenant scope first:

	reg := registry.New(registry.NewTypeStore(typeStore))
	view, err := reg.Describe(ctx, "acme", "person")
	// view.Lineage == []string{"contact"}, view.Fields merged along the path

Lineage walks parentId links and fails with a CycleDetectedError rather than
looping when the stored hierarchy is corrupt.

Index Map Registry:
Associates Go types with DynamoDB key patterns:

	registry.RegisterIndexMap[storagemodels.EntityType](map[string]string{
	    "PK": "SCOPE#{scope}",
	    "SK": "TYPE#{id}",
	})

The index map registry is thread-safe and should be populated during
initialization, typically in init() functions.
*/
package registry
