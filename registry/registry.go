/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// Registry resolves entity types for a tenant: the tenant's own override
// first, then the SYSTEM definition. Every call reads the store; nothing is
// cached.
type Registry struct {
	store  TypeStore
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Registry backed by store.
func New(store TypeStore, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the type visible to tenant under id.
func (r *Registry) Lookup(ctx context.Context, tenant, id string) (*storagemodels.EntityType, error) {
	if id == "" {
		return nil, errors.NewValidationError("id", "entity type id is required")
	}

	if tenant != "" && tenant != storagemodels.SystemScope {
		t, err := r.store.GetType(ctx, tenant, id)
		if err == nil {
			return t, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	t, err := r.store.GetType(ctx, storagemodels.SystemScope, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("EntityType", id)
		}
		return nil, err
	}
	return t, nil
}

// chain returns the types from the root down to id, inclusive.
func (r *Registry) chain(ctx context.Context, tenant, id string) ([]storagemodels.EntityType, error) {
	cur, err := r.Lookup(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{cur.ID: true}
	path := []string{cur.ID}
	chain := []storagemodels.EntityType{*cur}

	for cur.ParentID != "" {
		parentID := cur.ParentID
		if visited[parentID] {
			return nil, errors.NewCycleDetectedError(append(path, parentID))
		}
		visited[parentID] = true
		path = append(path, parentID)

		parent, err := r.Lookup(ctx, tenant, parentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
		cur = parent
	}

	slices.Reverse(chain)
	return chain, nil
}

// ResolveLineage returns the ancestor ids of id, root first, excluding id.
func (r *Registry) ResolveLineage(ctx context.Context, tenant, id string) ([]string, error) {
	chain, err := r.chain(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	lineage := make([]string, 0, len(chain)-1)
	for _, t := range chain[:len(chain)-1] {
		lineage = append(lineage, t.ID)
	}
	return lineage, nil
}

// Describe returns the denormalized view of a type within tenant.
func (r *Registry) Describe(ctx context.Context, tenant, id string) (*storagemodels.TypeView, error) {
	chain, err := r.chain(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	lineage := make([]string, 0, len(chain)-1)
	for _, t := range chain[:len(chain)-1] {
		lineage = append(lineage, t.ID)
	}

	return &storagemodels.TypeView{
		Type:    chain[len(chain)-1],
		Lineage: lineage,
		Depth:   len(lineage),
		Fields:  mergeFields(chain),
	}, nil
}

// mergeFields unions field definitions along a root-first chain. A
// descendant's definition replaces its ancestor's in the ancestor's position.
func mergeFields(chain []storagemodels.EntityType) []storagemodels.FieldDefinition {
	var fields []storagemodels.FieldDefinition
	index := make(map[string]int)
	for _, t := range chain {
		for _, f := range t.Fields {
			if i, ok := index[f.Key]; ok {
				fields[i] = f
				continue
			}
			index[f.Key] = len(fields)
			fields = append(fields, f)
		}
	}
	return fields
}

// EffectiveFields returns the union of the effective fields of typeIDs in the
// given order. The first definition of a key wins across types.
func (r *Registry) EffectiveFields(ctx context.Context, tenant string, typeIDs []string) ([]storagemodels.FieldDefinition, error) {
	var fields []storagemodels.FieldDefinition
	seen := make(map[string]bool)
	for _, id := range typeIDs {
		view, err := r.Describe(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		for _, f := range view.Fields {
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			fields = append(fields, f)
		}
	}
	return fields, nil
}

// List returns every type visible to tenant, overrides replacing their SYSTEM
// counterpart, ordered by id.
func (r *Registry) List(ctx context.Context, tenant string) ([]storagemodels.EntityType, error) {
	system, err := r.store.ListTypes(ctx, storagemodels.SystemScope)
	if err != nil {
		return nil, err
	}
	if tenant == "" || tenant == storagemodels.SystemScope {
		return system, nil
	}

	own, err := r.store.ListTypes(ctx, tenant)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]storagemodels.EntityType, len(system)+len(own))
	for _, t := range system {
		byID[t.ID] = t
	}
	for _, t := range own {
		byID[t.ID] = t
	}

	out := make([]storagemodels.EntityType, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b storagemodels.EntityType) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// validate checks the record on its own, without consulting the store.
func validate(t storagemodels.EntityType) error {
	if t.ID == "" {
		return errors.NewValidationError("id", "entity type id is required")
	}
	if t.Name == "" {
		return errors.NewValidationError("name", "entity type name is required")
	}
	if t.ParentID == t.ID {
		return errors.NewCycleDetectedError([]string{t.ID, t.ID})
	}

	keys := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		field := fmt.Sprintf("fields[%d]", i)
		if f.Key == "" {
			return errors.NewValidationError(field, "field key is required")
		}
		if !f.Type.Valid() {
			return errors.NewValidationError(field, fmt.Sprintf("unknown field type %q", f.Type))
		}
		if keys[f.Key] {
			return errors.NewValidationError(field, fmt.Sprintf("duplicate field key %q", f.Key))
		}
		keys[f.Key] = true
	}

	for i, c := range t.AllowedChildTypes {
		if c == "" {
			return errors.NewValidationError(fmt.Sprintf("allowed_children[%d]", i), "child type id is required")
		}
	}
	return nil
}

// Upsert validates t and stores it in scope. An identical existing record is
// left untouched and reported with changed false.
func (r *Registry) Upsert(ctx context.Context, scope string, t storagemodels.EntityType) (bool, error) {
	if scope == "" {
		return false, errors.NewValidationError("scope", "scope is required")
	}
	t.Scope = scope

	if err := validate(t); err != nil {
		return false, err
	}

	if t.ParentID != "" {
		ancestors, err := r.chain(ctx, scope, t.ParentID)
		if err != nil {
			if errors.IsNotFound(err) {
				return false, errors.NewValidationError("parentId", fmt.Sprintf("unknown parent type %q", t.ParentID))
			}
			return false, err
		}
		for i, a := range ancestors {
			if a.ID == t.ID {
				path := []string{t.ID}
				for j := len(ancestors) - 1; j >= i; j-- {
					path = append(path, ancestors[j].ID)
				}
				return false, errors.NewCycleDetectedError(path)
			}
		}
	}

	existing, err := r.store.GetType(ctx, scope, t.ID)
	switch {
	case err == nil:
		if existing.Equal(t) {
			return false, nil
		}
	case !errors.IsNotFound(err):
		return false, err
	}

	if err := r.store.PutType(ctx, t); err != nil {
		return false, err
	}
	r.logger.Info("entity type stored", "scope", scope, "id", t.ID, "created", existing == nil)
	return true, nil
}

// Delete removes tenant's own definition of id. SYSTEM definitions are never
// deleted through this path, and a type that still has children in tenant's
// scope is refused.
func (r *Registry) Delete(ctx context.Context, tenant, id string) error {
	if tenant == "" {
		return errors.NewValidationError("tenant", "tenant is required")
	}
	if tenant == storagemodels.SystemScope {
		return errors.NewAuthorizationError(errors.ReasonSystemScope, fmt.Sprintf("SYSTEM type %q cannot be deleted", id))
	}

	if _, err := r.store.GetType(ctx, tenant, id); err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		if _, sysErr := r.store.GetType(ctx, storagemodels.SystemScope, id); sysErr == nil {
			return errors.NewAuthorizationError(errors.ReasonSystemScope, fmt.Sprintf("type %q is defined by SYSTEM", id))
		}
		return errors.NewNotFoundError("EntityType", id)
	}

	own, err := r.store.ListTypes(ctx, tenant)
	if err != nil {
		return err
	}
	for _, t := range own {
		if t.ParentID == id {
			return errors.NewValidationError("id", fmt.Sprintf("type %q still has child type %q", id, t.ID))
		}
	}

	if err := r.store.DeleteType(ctx, tenant, id); err != nil {
		return err
	}
	r.logger.Info("entity type deleted", "scope", tenant, "id", id)
	return nil
}

// CanContain reports whether an entity of childTypeID may be placed under one
// of parentTypeID. An empty allowed set places no restriction.
func (r *Registry) CanContain(ctx context.Context, tenant, parentTypeID, childTypeID string) (bool, error) {
	parent, err := r.Lookup(ctx, tenant, parentTypeID)
	if err != nil {
		return false, err
	}
	if len(parent.AllowedChildTypes) == 0 {
		return true, nil
	}
	return slices.Contains(parent.AllowedChildTypes, childTypeID), nil
}
