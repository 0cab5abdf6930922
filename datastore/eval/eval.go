/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package eval evaluates backend-neutral query parameters over in-memory records.
// It backs the mock datastore and the post-filtering done by the DynamoDB store,
// and follows MongoDB's comparison rules so all backends order results alike.
package eval

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/suparena/eserp/storagemodels"
)

// Comparator compares values under an optional collation.
// A Comparator is not safe for concurrent use.
type Comparator struct {
	collator *collate.Collator
}

// NewComparator builds a comparator; nil collation compares text bytewise.
func NewComparator(c *storagemodels.Collation) *Comparator {
	if c == nil {
		return &Comparator{}
	}
	tag := language.Make(c.Locale)
	var opts []collate.Option
	switch c.Strength {
	case 1:
		opts = append(opts, collate.Loose)
	case 2:
		opts = append(opts, collate.IgnoreCase)
	}
	return &Comparator{collator: collate.New(tag, opts...)}
}

// kindRank mirrors the BSON comparison order for the scalar kinds we store.
func kindRank(k storagemodels.ValueKind) int {
	switch k {
	case storagemodels.KindNumber:
		return 1
	case storagemodels.KindText:
		return 2
	case storagemodels.KindBoolean:
		return 3
	case storagemodels.KindDate:
		return 4
	default:
		return 0
	}
}

// Compare orders a and b: negative, zero or positive.
func (c *Comparator) Compare(a, b storagemodels.Value) int {
	ra, rb := kindRank(a.Kind), kindRank(b.Kind)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch a.Kind {
	case storagemodels.KindNumber:
		return cmp.Compare(a.Number, b.Number)
	case storagemodels.KindText:
		if c.collator != nil {
			return c.collator.CompareString(a.Text, b.Text)
		}
		return cmp.Compare(a.Text, b.Text)
	case storagemodels.KindBoolean:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	case storagemodels.KindDate:
		return a.Date.Compare(b.Date)
	default:
		return 0
	}
}

func (c *Comparator) equal(v storagemodels.Value, found bool, want storagemodels.Value) bool {
	if !found || v.IsNull() {
		return want.IsNull()
	}
	if kindRank(v.Kind) != kindRank(want.Kind) {
		return false
	}
	return c.Compare(v, want) == 0
}

// MatchPredicate reports whether doc satisfies p.
func (c *Comparator) MatchPredicate(doc storagemodels.Document, p storagemodels.Predicate) bool {
	v, found := doc.Lookup(p.Path)
	switch p.Op {
	case storagemodels.OpEq:
		return c.equal(v, found, p.Value)
	case storagemodels.OpNe:
		return !c.equal(v, found, p.Value)
	case storagemodels.OpIn:
		for _, want := range p.Values {
			if c.equal(v, found, want) {
				return true
			}
		}
		return false
	}

	// Range comparisons only match values of the same kind.
	if !found || v.IsNull() || kindRank(v.Kind) != kindRank(p.Value.Kind) {
		return false
	}
	res := c.Compare(v, p.Value)
	switch p.Op {
	case storagemodels.OpGt:
		return res > 0
	case storagemodels.OpGte:
		return res >= 0
	case storagemodels.OpLt:
		return res < 0
	case storagemodels.OpLte:
		return res <= 0
	}
	return false
}

// Match reports whether doc satisfies every predicate of f.
func (c *Comparator) Match(doc storagemodels.Document, f storagemodels.Filter) bool {
	for _, p := range f {
		if !c.MatchPredicate(doc, p) {
			return false
		}
	}
	return true
}

// Apply filters, sorts and pages items according to params.
// The input slice is not modified.
func Apply[T storagemodels.Document](items []T, params *storagemodels.QueryParams) []T {
	if params == nil {
		params = &storagemodels.QueryParams{}
	}
	c := NewComparator(params.Collation)

	out := make([]T, 0, len(items))
	for _, item := range items {
		if c.Match(item, params.Filter) {
			out = append(out, item)
		}
	}

	if len(params.Sort) > 0 {
		slices.SortStableFunc(out, func(a, b T) int {
			for _, key := range params.Sort {
				va, _ := a.Lookup(key.Path)
				vb, _ := b.Lookup(key.Path)
				if res := c.Compare(va, vb); res != 0 {
					if key.Direction == storagemodels.Descending {
						return -res
					}
					return res
				}
			}
			return 0
		})
	}

	return page(out, params.Skip, params.Limit)
}

func page[T any](items []T, skip, limit int64) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(items)) {
		return items[:0]
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

// Distinct returns the distinct text values at path among items matching
// params.Filter, in first-seen order. Missing and non-text values are skipped.
func Distinct[T storagemodels.Document](items []T, path string, params *storagemodels.QueryParams) []string {
	if params == nil {
		params = &storagemodels.QueryParams{}
	}
	c := NewComparator(params.Collation)
	filter := params.Filter
	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		if !c.Match(item, filter) {
			continue
		}
		v, ok := item.Lookup(path)
		if !ok || v.Kind != storagemodels.KindText {
			continue
		}
		if _, dup := seen[v.Text]; dup {
			continue
		}
		seen[v.Text] = struct{}{}
		out = append(out, v.Text)
	}
	return out
}
