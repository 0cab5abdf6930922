/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package executor runs UniversalQueries and entity mutations for one tenant
// at a time.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/suparena/eserp/datastore"
	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
	"github.com/suparena/eserp/uquery"
)

// DefaultMaxLimit caps page size when no other cap is configured.
const DefaultMaxLimit = 500

// TypeResolver is the part of the entity type registry the executor needs.
// *registry.Registry implements it.
type TypeResolver interface {
	Describe(ctx context.Context, tenant, id string) (*storagemodels.TypeView, error)
	EffectiveFields(ctx context.Context, tenant string, typeIDs []string) ([]storagemodels.FieldDefinition, error)
	CanContain(ctx context.Context, tenant, parentTypeID, childTypeID string) (bool, error)
	List(ctx context.Context, tenant string) ([]storagemodels.EntityType, error)
}

// Column is one attribute column of a list result.
type Column struct {
	Key   string                  `json:"key"`
	Label string                  `json:"label"`
	Type  storagemodels.FieldType `json:"type"`
}

// Row is one entity of a list result; Values follow the column order and hold
// null where the entity has no value.
type Row struct {
	ID     string                `json:"id"`
	TypeID string                `json:"type_id"`
	Values []storagemodels.Value `json:"values"`
}

// ListResult is the shaped answer of ListEntities.
type ListResult struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	Skip    int64    `json:"skip"`
	Limit   int64    `json:"limit"`
}

// EntityInput is the client-supplied part of a new entity.
type EntityInput struct {
	TypeID     string                         `json:"type_id"`
	ParentID   string                         `json:"parent_id,omitempty"`
	Attributes map[string]storagemodels.Value `json:"attributes"`
}

// Executor executes entity reads and writes against one store.
type Executor struct {
	entities datastore.DataStore[storagemodels.Entity]
	types    TypeResolver
	logger   *slog.Logger
	maxLimit int64
	now      func() time.Time
	newID    func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxLimit caps the page size. An unlimited request gets the cap.
func WithMaxLimit(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithClock overrides the time source used for metadata.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithIDGenerator overrides how new entity ids are minted.
func WithIDGenerator(f func() string) Option {
	return func(e *Executor) {
		e.newID = f
	}
}

// New creates an Executor.
func New(entities datastore.DataStore[storagemodels.Entity], types TypeResolver, opts ...Option) *Executor {
	e := &Executor{
		entities: entities,
		types:    types,
		logger:   slog.New(slog.DiscardHandler),
		maxLimit: DefaultMaxLimit,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// columns resolves the attribute columns for the types present in a result.
// Types that no longer resolve are skipped so one orphaned record cannot
// break a listing.
func (e *Executor) columns(ctx context.Context, tenant string, typeIDs []string) ([]storagemodels.FieldDefinition, error) {
	var fields []storagemodels.FieldDefinition
	seen := make(map[string]bool)
	for _, id := range typeIDs {
		typeFields, err := e.types.EffectiveFields(ctx, tenant, []string{id})
		if err != nil {
			if errors.IsNotFound(err) {
				e.logger.Warn("entity type not resolvable, skipping its columns", "tenant", tenant, "type", id)
				continue
			}
			return nil, err
		}
		for _, f := range typeFields {
			if !seen[f.Key] {
				seen[f.Key] = true
				fields = append(fields, f)
			}
		}
	}
	return fields, nil
}

// checkSort accepts builtin columns and any attribute declared by a type the
// tenant can see. The columns of the result are tried first; the full type
// list is consulted only for keys they lack, so the outcome does not depend
// on which rows matched.
func (e *Executor) checkSort(ctx context.Context, tenant string, sort []uquery.SortField, fields []storagemodels.FieldDefinition) error {
	sortable := make(map[string]bool, len(fields)+len(uquery.BuiltinColumns))
	for _, c := range uquery.BuiltinColumns {
		sortable[c] = true
	}
	for _, f := range fields {
		sortable[f.Key] = true
	}

	var unknown []string
	for _, s := range sort {
		if !sortable[s.Key] {
			unknown = append(unknown, s.Key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	types, err := e.types.List(ctx, tenant)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.ID)
	}
	declared, err := e.columns(ctx, tenant, ids)
	if err != nil {
		return err
	}
	for _, f := range declared {
		sortable[f.Key] = true
	}
	for _, key := range unknown {
		if !sortable[key] {
			return errors.NewValidationError("sort."+key, "unknown sort key")
		}
	}
	return nil
}

// ListEntities runs q for scope and shapes the rows for display.
func (e *Executor) ListEntities(ctx context.Context, scope Scope, q *uquery.Query) (*ListResult, error) {
	if err := scope.Authorize(); err != nil {
		return nil, err
	}
	if q == nil {
		q = uquery.New()
	}

	params, err := uquery.ToStorageFilter(q, scope.TenantID, scope.Admin)
	if err != nil {
		return nil, err
	}
	if e.maxLimit > 0 && (params.Limit == 0 || params.Limit > e.maxLimit) {
		params.Limit = e.maxLimit
	}

	typeIDs, err := e.entities.Distinct(ctx, storagemodels.PathEntityTypeID, params)
	if err != nil {
		return nil, err
	}
	slices.Sort(typeIDs)

	fields, err := e.columns(ctx, scope.TenantID, typeIDs)
	if err != nil {
		return nil, err
	}

	if err := e.checkSort(ctx, scope.TenantID, q.Sort, fields); err != nil {
		return nil, err
	}

	selected := fields
	if len(q.Fields) > 0 {
		selected = nil
		for _, key := range q.Fields {
			i := slices.IndexFunc(fields, func(f storagemodels.FieldDefinition) bool { return f.Key == key })
			if i >= 0 {
				selected = append(selected, fields[i])
			}
		}
		params.Projection = slices.Clone(uquery.IdentityPaths)
		for _, f := range selected {
			params.Projection = append(params.Projection, uquery.PathFor(f.Key))
		}
	}

	result := &ListResult{
		Columns: make([]Column, 0, len(selected)),
		Rows:    []Row{},
		Skip:    params.Skip,
		Limit:   params.Limit,
	}
	for _, f := range selected {
		result.Columns = append(result.Columns, Column{Key: f.Key, Label: f.Label, Type: f.Type})
	}

	if len(typeIDs) == 0 {
		return result, nil
	}

	if !slices.ContainsFunc(params.Sort, func(k storagemodels.SortKey) bool { return k.Path == storagemodels.PathID }) {
		params.Sort = append(params.Sort, storagemodels.SortKey{Path: storagemodels.PathID, Direction: storagemodels.Ascending})
	}

	entities, err := e.entities.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	for _, ent := range entities {
		if ent.TenantID != scope.TenantID {
			// The store honoured a filter it should never have matched.
			e.logger.Error("cross-tenant row dropped", "tenant", scope.TenantID, "row_tenant", ent.TenantID, "id", ent.ID)
			continue
		}
		row := Row{ID: ent.ID, TypeID: ent.EntityTypeID, Values: make([]storagemodels.Value, len(selected))}
		for i, f := range selected {
			if v, ok := ent.Attributes[f.Key]; ok {
				row.Values[i] = v
			} else {
				row.Values[i] = storagemodels.Null()
			}
		}
		result.Rows = append(result.Rows, row)
	}

	e.logger.Debug("entities listed", "tenant", scope.TenantID, "types", len(typeIDs), "rows", len(result.Rows))
	return result, nil
}

// load returns the entity visible to scope. Other tenants' ids, absent ids
// and, for non-admins, hidden entities all yield the same NotFoundError.
func (e *Executor) load(ctx context.Context, scope Scope, id string) (*storagemodels.Entity, error) {
	notFound := errors.NewNotFoundError("Entity", id)
	if id == "" {
		return nil, notFound
	}

	ent, err := e.entities.GetOne(ctx, storagemodels.EntityKey(scope.TenantID, id))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, notFound
		}
		return nil, err
	}
	if ent.TenantID != scope.TenantID || (ent.Hidden && !scope.Admin) {
		return nil, notFound
	}

	clone := ent.Clone()
	return &clone, nil
}

// GetEntity reads one entity in scope.
func (e *Executor) GetEntity(ctx context.Context, scope Scope, id string) (*storagemodels.Entity, error) {
	if err := scope.Authorize(); err != nil {
		return nil, err
	}
	return e.load(ctx, scope, id)
}

func (e *Executor) stamp(scope Scope) (string, strfmt.DateTime) {
	return scope.Actor, strfmt.DateTime(e.now().UTC().Truncate(time.Millisecond))
}

// CreateEntity stores a new entity. The parent must be visible in scope and
// its type must allow the new entity's type.
func (e *Executor) CreateEntity(ctx context.Context, scope Scope, in EntityInput) (*storagemodels.Entity, []Issue, error) {
	if err := scope.Authorize(); err != nil {
		return nil, nil, err
	}
	if scope.Actor == "" {
		return nil, nil, errors.NewValidationError("actor", "actor is required for writes")
	}
	if in.TypeID == "" {
		return nil, nil, errors.NewValidationError("type_id", "entity type is required")
	}

	view, err := e.types.Describe(ctx, scope.TenantID, in.TypeID)
	if err != nil {
		return nil, nil, err
	}

	if in.ParentID != "" {
		parent, err := e.load(ctx, scope, in.ParentID)
		if err != nil {
			return nil, nil, err
		}
		ok, err := e.types.CanContain(ctx, scope.TenantID, parent.EntityTypeID, in.TypeID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, errors.NewValidationError("parent_id",
				fmt.Sprintf("type %q does not allow children of type %q", parent.EntityTypeID, in.TypeID))
		}
	}

	attrs := make(map[string]storagemodels.Value, len(in.Attributes))
	for k, v := range in.Attributes {
		if !v.IsNull() {
			attrs[k] = v
		}
	}

	id := e.newID()
	if !ValidEntityID(id) {
		return nil, nil, errors.NewValidationError("id", fmt.Sprintf("generated id %q is not a lowercase slug", id))
	}

	actor, now := e.stamp(scope)
	ent := storagemodels.Entity{
		ID:           id,
		TenantID:     scope.TenantID,
		EntityTypeID: in.TypeID,
		ParentID:     in.ParentID,
		Attributes:   attrs,
		Metadata: storagemodels.Metadata{
			CreatedBy: actor,
			CreatedAt: now,
			UpdatedBy: actor,
			UpdatedAt: now,
		},
	}

	issues := ValidateAttributes(view.Fields, attrs)
	if err := e.entities.Put(ctx, ent); err != nil {
		return nil, nil, err
	}

	e.logIssues(scope, ent, issues)
	e.logger.Info("entity created", "tenant", scope.TenantID, "id", ent.ID, "type", ent.EntityTypeID, "actor", actor)
	return &ent, issues, nil
}

// UpdateAttributes merges attrs into the entity's attributes. A null value
// removes the key.
func (e *Executor) UpdateAttributes(ctx context.Context, scope Scope, id string, attrs map[string]storagemodels.Value) (*storagemodels.Entity, []Issue, error) {
	if err := scope.Authorize(); err != nil {
		return nil, nil, err
	}
	if scope.Actor == "" {
		return nil, nil, errors.NewValidationError("actor", "actor is required for writes")
	}

	ent, err := e.load(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}

	for k, v := range attrs {
		if v.IsNull() {
			delete(ent.Attributes, k)
			continue
		}
		ent.Attributes[k] = v
	}
	ent.Metadata.UpdatedBy, ent.Metadata.UpdatedAt = e.stamp(scope)

	var issues []Issue
	view, err := e.types.Describe(ctx, scope.TenantID, ent.EntityTypeID)
	switch {
	case err == nil:
		issues = ValidateAttributes(view.Fields, ent.Attributes)
	case errors.IsNotFound(err):
		issues = []Issue{{Field: "type_id", Message: fmt.Sprintf("entity type %q is not defined", ent.EntityTypeID)}}
	default:
		return nil, nil, err
	}

	if err := e.entities.Put(ctx, *ent); err != nil {
		return nil, nil, err
	}

	e.logIssues(scope, *ent, issues)
	return ent, issues, nil
}

// SetHidden soft-deletes or restores an entity. Restoring requires the admin
// role.
func (e *Executor) SetHidden(ctx context.Context, scope Scope, id string, hidden bool) error {
	if err := scope.Authorize(); err != nil {
		return err
	}
	if !hidden && !scope.Admin {
		return errors.NewAuthorizationError(errors.ReasonMissingRole, "restoring hidden entities requires the admin role")
	}

	ent, err := e.load(ctx, scope, id)
	if err != nil {
		return err
	}
	if ent.Hidden == hidden {
		return nil
	}

	ent.Hidden = hidden
	ent.Metadata.UpdatedBy, ent.Metadata.UpdatedAt = e.stamp(scope)
	if err := e.entities.Put(ctx, *ent); err != nil {
		return err
	}

	e.logger.Info("entity visibility changed", "tenant", scope.TenantID, "id", id, "hidden", hidden, "actor", scope.Actor)
	return nil
}

func (e *Executor) logIssues(scope Scope, ent storagemodels.Entity, issues []Issue) {
	for _, is := range issues {
		e.logger.Warn("entity attribute issue", "tenant", scope.TenantID, "id", ent.ID, "type", ent.EntityTypeID, "field", is.Field, "issue", is.Message)
	}
}
