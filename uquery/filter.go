/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package uquery

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// Public names of the columns every entity has.
const (
	ColumnID        = "id"
	ColumnType      = "type"
	ColumnParentID  = "parent_id"
	ColumnCreatedBy = "created_by"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedBy = "updated_by"
	ColumnUpdatedAt = "updated_at"
	ColumnHidden    = "hidden"
)

// BuiltinColumns are sortable on every entity regardless of its type.
var BuiltinColumns = []string{
	ColumnID, ColumnType, ColumnParentID,
	ColumnCreatedBy, ColumnCreatedAt, ColumnUpdatedBy, ColumnUpdatedAt,
}

var builtinPaths = map[string]string{
	ColumnID:        storagemodels.PathID,
	ColumnType:      storagemodels.PathEntityTypeID,
	ColumnParentID:  storagemodels.PathParentID,
	ColumnCreatedBy: storagemodels.PathMetadata + ".created_by",
	ColumnCreatedAt: storagemodels.PathMetadata + ".created_at",
	ColumnUpdatedBy: storagemodels.PathMetadata + ".updated_by",
	ColumnUpdatedAt: storagemodels.PathMetadata + ".updated_at",
	ColumnHidden:    storagemodels.PathHidden,
}

// IdentityPaths are always returned, whatever projection a query asks for.
var IdentityPaths = []string{
	storagemodels.PathID,
	storagemodels.PathTenantID,
	storagemodels.PathEntityTypeID,
	storagemodels.PathParentID,
	storagemodels.PathHidden,
	storagemodels.PathMetadata,
}

// PathFor maps a public field name to its document path. Names that are not
// built-in columns address the attribute bag.
func PathFor(field string) string {
	if p, ok := builtinPaths[field]; ok {
		return p
	}
	return storagemodels.PathAttributes + "." + field
}

// IsBuiltin reports whether field is a column every entity has.
func IsBuiltin(field string) bool {
	_, ok := builtinPaths[field]
	return ok
}

// operand converts one filter value for the column it targets. Timestamps
// are compared as dates and the hidden flag as a boolean.
func operand(field string, v any) (storagemodels.Value, error) {
	val, err := storagemodels.FromAny(v)
	if err != nil {
		return storagemodels.Value{}, err
	}
	if val.Kind != storagemodels.KindText {
		return val, nil
	}
	switch field {
	case ColumnCreatedAt, ColumnUpdatedAt:
		if dt, err := strfmt.ParseDateTime(val.Text); err == nil {
			return storagemodels.Date(time.Time(dt)), nil
		}
	case ColumnHidden:
		switch val.Text {
		case "true":
			return storagemodels.Bool(true), nil
		case "false":
			return storagemodels.Bool(false), nil
		}
	}
	return val, nil
}

func predicate(key string, raw any) (storagemodels.Predicate, error) {
	field, op := splitFilterKey(key)
	if field == "" {
		return storagemodels.Predicate{}, errors.NewValidationError("filter."+key, "filter field is empty")
	}
	p := storagemodels.Predicate{Path: PathFor(field), Op: op}

	arr, isArr := raw.([]any)
	if op == storagemodels.OpIn && !isArr {
		arr, isArr = []any{raw}, true
	}
	if isArr {
		switch op {
		case storagemodels.OpEq:
			p.Op = storagemodels.OpIn
		case storagemodels.OpIn:
		default:
			return storagemodels.Predicate{}, errors.NewValidationError("filter."+key, fmt.Sprintf("operator %q takes a single value", op))
		}
		p.Values = make([]storagemodels.Value, 0, len(arr))
		for _, v := range arr {
			val, err := operand(field, v)
			if err != nil {
				return storagemodels.Predicate{}, errors.NewValidationError("filter."+key, err.Error())
			}
			p.Values = append(p.Values, val)
		}
		return p, nil
	}

	val, err := operand(field, raw)
	if err != nil {
		return storagemodels.Predicate{}, errors.NewValidationError("filter."+key, err.Error())
	}
	p.Value = val
	return p, nil
}

// ToStorageFilter translates q into backend-neutral query parameters for one
// tenant. The tenant and hidden=false predicates are always injected ahead of
// the user's filter; only an admin may drop the latter through
// Options.IncludeHidden. Every query carries the case- and accent-insensitive
// default collation.
func ToStorageFilter(q *Query, tenantID string, admin bool) (*storagemodels.QueryParams, error) {
	if tenantID == "" {
		return nil, errors.NewValidationError("tenantId", "tenant is required")
	}
	if q == nil {
		q = New()
	}
	if q.Options.IncludeHidden && !admin {
		return nil, errors.NewAuthorizationError(errors.ReasonMissingRole, "including hidden entities requires the admin role")
	}

	filter := storagemodels.Filter{storagemodels.Eq(storagemodels.PathTenantID, storagemodels.Text(tenantID))}
	if !q.Options.IncludeHidden {
		filter = append(filter, storagemodels.Eq(storagemodels.PathHidden, storagemodels.Bool(false)))
	}

	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		p, err := predicate(k, q.Filter[k])
		if err != nil {
			return nil, err
		}
		filter = append(filter, p)
	}

	params := &storagemodels.QueryParams{
		Filter:    filter,
		Skip:      max(q.Options.Skip, 0),
		Limit:     max(q.Options.Limit, 0),
		Collation: &storagemodels.Collation{Locale: storagemodels.DefaultCollation.Locale, Strength: storagemodels.DefaultCollation.Strength},
	}

	for _, s := range q.Sort {
		if strings.TrimSpace(s.Key) == "" {
			return nil, errors.NewValidationError("sort", "sort key is empty")
		}
		if s.Direction != storagemodels.Ascending && s.Direction != storagemodels.Descending {
			return nil, errors.NewValidationError("sort."+s.Key, "sort direction must be 1 or -1")
		}
		params.Sort = append(params.Sort, storagemodels.SortKey{Path: PathFor(s.Key), Direction: s.Direction})
	}

	if len(q.Fields) > 0 {
		params.Projection = slices.Clone(IdentityPaths)
		for _, f := range q.Fields {
			if IsBuiltin(f) {
				continue
			}
			params.Projection = append(params.Projection, PathFor(f))
		}
	}

	return params, nil
}
