/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// Operator is a predicate comparison.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// ParseOperator maps a query suffix to an operator.
func ParseOperator(s string) (Operator, bool) {
	switch op := Operator(s); op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn:
		return op, true
	}
	return "", false
}

// Predicate compares the value at Path with Value.
// For OpIn, Values holds the candidate set and Value is unused.
type Predicate struct {
	Path   string
	Op     Operator
	Value  Value
	Values []Value
}

// Eq is shorthand for an equality predicate.
func Eq(path string, v Value) Predicate {
	return Predicate{Path: path, Op: OpEq, Value: v}
}

// Filter is a conjunction of predicates.
type Filter []Predicate

// Equalities returns the text values pinned by equality predicates, keyed by path.
func (f Filter) Equalities() map[string]string {
	out := make(map[string]string)
	for _, p := range f {
		if p.Op == OpEq && p.Value.Kind == KindText {
			out[p.Path] = p.Value.Text
		}
	}
	return out
}

// KeyFilter turns a Key into an equality filter.
func KeyFilter(key Key) Filter {
	f := make(Filter, 0, len(key))
	for path, v := range key {
		f = append(f, Eq(path, Text(v)))
	}
	return f
}

// Direction of a sort key.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortKey orders results by the value at Path.
type SortKey struct {
	Path      string
	Direction Direction
}

// Collation selects locale-aware string comparison.
// Strength 1 compares base characters only, ignoring case and accents.
type Collation struct {
	Locale   string
	Strength int
}

// DefaultCollation is applied by the query layer to every entity query.
var DefaultCollation = Collation{Locale: "en", Strength: 1}

// QueryParams defines a backend-neutral query.
type QueryParams struct {
	// Filter is ANDed; an empty filter matches everything.
	Filter Filter
	// Projection lists document paths to return; empty returns whole records.
	Projection []string
	// Sort keys apply in order.
	Sort []SortKey
	// Skip and Limit page the sorted result; Limit 0 means unlimited.
	Skip  int64
	Limit int64
	// Collation is optional; nil compares strings bytewise.
	Collation *Collation
}
