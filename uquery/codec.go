/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package uquery

import (
	"fmt"
	"maps"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

const (
	prefixFilter     = "filter."
	prefixSort       = "sort."
	prefixComponents = "components."
	keyFields        = "fields"
	keySkip          = "options.skip"
	keyLimit         = "options.limit"
	keyIncludeHidden = "options.includeHidden"
)

// identityFields hold ids and actors; their values are never coerced to
// numbers because the stored values are always text.
var identityFields = []string{"id", "type", "parent_id", "created_by", "updated_by"}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	stringFields map[string]bool
}

// WithStringFields exempts filter fields from numeric coercion, for example
// zero-padded codes such as "007".
func WithStringFields(fields ...string) ParseOption {
	return func(c *parseConfig) {
		for _, f := range fields {
			c.stringFields[f] = true
		}
	}
}

// splitFilterKey separates a trailing operator from a filter key.
func splitFilterKey(key string) (string, storagemodels.Operator) {
	if i := strings.LastIndexByte(key, '.'); i > 0 {
		if op, ok := storagemodels.ParseOperator(key[i+1:]); ok {
			return key[:i], op
		}
	}
	return key, storagemodels.OpEq
}

// coerce turns a numeric-looking string into a float64. A value is numeric
// when, trimmed, it parses fully as a finite number.
func coerce(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return f
}

// parseCount reads skip and limit. Missing, malformed, fractional and negative
// values fall back to 0.
func parseCount(s string) int64 {
	f, ok := coerce(s).(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f >= 1<<63 {
		return 0
	}
	return int64(f)
}

type pair struct {
	key, value string
}

// splitPairs decodes raw in order of appearance; url.ParseQuery would lose the
// order that sort priority depends on.
func splitPairs(raw string) ([]pair, error) {
	raw = strings.TrimPrefix(raw, "?")
	var pairs []pair
	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, errors.NewValidationError("query", fmt.Sprintf("malformed key %q", k))
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, errors.NewValidationError(key, fmt.Sprintf("malformed value %q", v))
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	return pairs, nil
}

// Parse decodes a URL query string. Unknown top-level names are ignored. The
// only hard failure is a malformed sort, since silently dropping it would
// change the order of results.
func Parse(raw string, opts ...ParseOption) (*Query, error) {
	cfg := parseConfig{stringFields: make(map[string]bool)}
	for _, f := range identityFields {
		cfg.stringFields[f] = true
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pairs, err := splitPairs(raw)
	if err != nil {
		return nil, err
	}

	q := New()
	filterRaw := make(map[string][]string)
	var filterOrder []string

	for _, p := range pairs {
		switch {
		case strings.HasPrefix(p.key, prefixFilter):
			key := strings.TrimPrefix(p.key, prefixFilter)
			if key == "" {
				continue
			}
			if _, seen := filterRaw[key]; !seen {
				filterOrder = append(filterOrder, key)
			}
			filterRaw[key] = append(filterRaw[key], p.value)

		case p.key == keyFields:
			if p.value != "" && !slices.Contains(q.Fields, p.value) {
				q.Fields = append(q.Fields, p.value)
			}

		case strings.HasPrefix(p.key, prefixSort):
			key := strings.TrimPrefix(p.key, prefixSort)
			if key == "" {
				return nil, errors.NewValidationError(p.key, "sort key is empty")
			}
			dir, ok := coerce(p.value).(float64)
			if !ok || (dir != 1 && dir != -1) {
				return nil, errors.NewValidationError(p.key, fmt.Sprintf("sort direction must be 1 or -1, got %q", p.value))
			}
			if slices.ContainsFunc(q.Sort, func(s SortField) bool { return s.Key == key }) {
				return nil, errors.NewValidationError(p.key, "duplicate sort key")
			}
			q.Sort = append(q.Sort, SortField{Key: key, Direction: storagemodels.Direction(dir)})

		case p.key == keySkip:
			q.Options.Skip = parseCount(p.value)

		case p.key == keyLimit:
			q.Options.Limit = parseCount(p.value)

		case p.key == keyIncludeHidden:
			q.Options.IncludeHidden = p.value == "true"

		case strings.HasPrefix(p.key, prefixComponents):
			name := strings.TrimPrefix(p.key, prefixComponents)
			if name != "" {
				q.Components[name] = p.value == "true"
			}
		}
	}

	for _, key := range filterOrder {
		values := filterRaw[key]
		field, op := splitFilterKey(key)
		convert := coerce
		if cfg.stringFields[field] {
			convert = func(s string) any { return s }
		}

		if len(values) == 1 && op != storagemodels.OpIn {
			q.Filter[key] = convert(values[0])
			continue
		}
		arr := make([]any, 0, len(values))
		for _, v := range values {
			arr = append(arr, convert(v))
		}
		q.Filter[key] = arr
	}

	return q, nil
}

func formatScalar(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	case nil:
		return ""
	default:
		return fmt.Sprint(tv)
	}
}

// Encode renders q as a query string that Parse maps back to an equivalent
// query. Output is deterministic: filter and component names are sorted while
// fields and sort keep their order.
func Encode(q *Query) string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	for _, k := range slices.Sorted(maps.Keys(q.Filter)) {
		name := prefixFilter + k
		if arr, ok := q.Filter[k].([]any); ok {
			for _, v := range arr {
				add(name, formatScalar(v))
			}
			continue
		}
		add(name, formatScalar(q.Filter[k]))
	}

	for _, f := range q.Fields {
		add(keyFields, f)
	}

	for _, s := range q.Sort {
		add(prefixSort+s.Key, strconv.Itoa(int(s.Direction)))
	}

	add(keySkip, strconv.FormatInt(q.Options.Skip, 10))
	add(keyLimit, strconv.FormatInt(q.Options.Limit, 10))
	if q.Options.IncludeHidden {
		add(keyIncludeHidden, "true")
	}

	for _, name := range slices.Sorted(maps.Keys(q.Components)) {
		add(prefixComponents+name, strconv.FormatBool(q.Components[name]))
	}

	return b.String()
}
