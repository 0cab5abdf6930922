/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suparena/eserp/storagemodels"
)

var operators = map[storagemodels.Operator]string{
	storagemodels.OpEq:  "$eq",
	storagemodels.OpNe:  "$ne",
	storagemodels.OpGt:  "$gt",
	storagemodels.OpGte: "$gte",
	storagemodels.OpLt:  "$lt",
	storagemodels.OpLte: "$lte",
	storagemodels.OpIn:  "$in",
}

// ToFilter renders a predicate conjunction as a MongoDB query document.
// Each predicate becomes one clause of an $and so repeated paths keep their
// meaning.
func ToFilter(f storagemodels.Filter) bson.D {
	if len(f) == 0 {
		return bson.D{}
	}

	clauses := make(bson.A, 0, len(f))
	for _, p := range f {
		var operand any = p.Value
		if p.Op == storagemodels.OpIn {
			values := make(bson.A, 0, len(p.Values))
			for _, v := range p.Values {
				values = append(values, v)
			}
			operand = values
		}
		clauses = append(clauses, bson.D{{Key: p.Path, Value: bson.D{{Key: operators[p.Op], Value: operand}}}})
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

// FindOptions renders sort, paging, projection and collation.
func FindOptions(params *storagemodels.QueryParams) *options.FindOptions {
	opts := options.Find()

	if len(params.Sort) > 0 {
		sort := make(bson.D, 0, len(params.Sort))
		for _, k := range params.Sort {
			sort = append(sort, bson.E{Key: k.Path, Value: int(k.Direction)})
		}
		opts.SetSort(sort)
	}
	if params.Skip > 0 {
		opts.SetSkip(params.Skip)
	}
	if params.Limit > 0 {
		opts.SetLimit(params.Limit)
	}
	if len(params.Projection) > 0 {
		projection := make(bson.D, 0, len(params.Projection))
		for _, p := range params.Projection {
			projection = append(projection, bson.E{Key: p, Value: 1})
		}
		opts.SetProjection(projection)
	}
	if params.Collation != nil {
		opts.SetCollation(toCollation(params.Collation))
	}
	return opts
}

func toCollation(c *storagemodels.Collation) *options.Collation {
	return &options.Collation{Locale: c.Locale, Strength: c.Strength}
}

func keyFilter(key storagemodels.Key) bson.D {
	filter := make(bson.D, 0, len(key))
	for path, v := range key {
		filter = append(filter, bson.E{Key: path, Value: v})
	}
	return filter
}
