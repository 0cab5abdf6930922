/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package uquery implements the UniversalQuery: a URL-serializable description
// of filters, projection, sort, paging and view selection for entity lists.
//
// The URL form is flat. Repeated names are arrays and nested parts use dotted
// names:
//
//	filter.type=asset&filter.rate.gte=100&fields=serial_no&fields=rate
//	&sort.rate=-1&sort.name=1&options.skip=20&options.limit=10&components.list=true
package uquery

import (
	"maps"
	"slices"

	"github.com/suparena/eserp/storagemodels"
)

// SortField is one sort key; Direction is 1 or -1.
type SortField struct {
	Key       string                  `json:"key"`
	Direction storagemodels.Direction `json:"direction"`
}

// Options holds paging and visibility switches.
type Options struct {
	Skip  int64 `json:"skip"`
	Limit int64 `json:"limit"`
	// IncludeHidden lists soft-deleted entities too; admin only.
	IncludeHidden bool `json:"includeHidden,omitempty"`
}

// Query is a parsed UniversalQuery.
type Query struct {
	// Filter keys are "<field>" or "<field>.<op>". Values are string, float64
	// or []any of those.
	Filter     map[string]any  `json:"filter"`
	Fields     []string        `json:"fields,omitempty"`
	Sort       []SortField     `json:"sort,omitempty"`
	Options    Options         `json:"options"`
	Components map[string]bool `json:"components,omitempty"`
}

// New returns an empty query.
func New() *Query {
	return &Query{
		Filter:     make(map[string]any),
		Components: make(map[string]bool),
	}
}

// Equivalent reports whether a and b describe the same request. Single
// element arrays on non-"in" filters equal their scalar, empty arrays equal
// an absent key, and false components equal absent ones.
func Equivalent(a, b *Query) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !maps.EqualFunc(normalizeFilter(a.Filter), normalizeFilter(b.Filter), filterValueEqual) {
		return false
	}
	if !slices.Equal(a.Fields, b.Fields) || !slices.Equal(a.Sort, b.Sort) || a.Options != b.Options {
		return false
	}
	return maps.Equal(trueComponents(a.Components), trueComponents(b.Components))
}

func normalizeFilter(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		arr, ok := v.([]any)
		if !ok {
			out[k] = v
			continue
		}
		_, op := splitFilterKey(k)
		switch {
		case len(arr) == 0:
		case len(arr) == 1 && op != storagemodels.OpIn:
			out[k] = arr[0]
		default:
			out[k] = arr
		}
	}
	return out
}

func filterValueEqual(a, b any) bool {
	aa, aIsArr := a.([]any)
	ba, bIsArr := b.([]any)
	if aIsArr != bIsArr {
		return false
	}
	if aIsArr {
		return slices.Equal(aa, ba)
	}
	return a == b
}

func trueComponents(c map[string]bool) map[string]bool {
	out := make(map[string]bool, len(c))
	for k, v := range c {
		if v {
			out[k] = true
		}
	}
	return out
}
