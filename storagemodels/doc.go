/*
Package storagemodels defines the data structures used throughout the catalog.

Key Types:

Entity and EntityType:
The stored records. Both implement Document so backends and the in-memory
evaluator can resolve dotted paths such as "attributes.serial_no".

Value:
A tagged scalar (null, text, number, date, boolean) used for attribute values
and predicate operands. It marshals to bare JSON scalars and native BSON types.

QueryParams:
A backend-neutral query:

	params := &QueryParams{
	    Filter: Filter{
	        Eq(PathTenantID, Text("acme")),
	        Eq(PathHidden, Bool(false)),
	        {Path: "attributes.rate", Op: OpGte, Value: Number(100)},
	    },
	    Sort:      []SortKey{{Path: "attributes.name", Direction: Ascending}},
	    Limit:     50,
	    Collation: &DefaultCollation,
	}
*/
package storagemodels
