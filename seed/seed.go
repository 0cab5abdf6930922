/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package seed reconciles the SYSTEM entity type catalog on process start.
// Reconcile upserts by id, so concurrent or repeated runs only ever produce
// redundant identical writes.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

//go:embed system_types.yaml
var systemTypes []byte

// Catalog is the on-disk form of a type seed file.
type Catalog struct {
	Types []storagemodels.EntityType `yaml:"types"`
}

// Registry is the part of the entity type registry seeding needs.
type Registry interface {
	Lookup(ctx context.Context, tenant, id string) (*storagemodels.EntityType, error)
	Upsert(ctx context.Context, scope string, t storagemodels.EntityType) (bool, error)
}

// Report counts what a reconciliation pass did.
type Report struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func (r Report) String() string {
	return fmt.Sprintf("created=%d updated=%d unchanged=%d", r.Created, r.Updated, r.Unchanged)
}

// Load parses a seed file.
func Load(r io.Reader) ([]storagemodels.EntityType, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.NewValidationError("seed", err.Error())
	}

	seen := make(map[string]bool, len(c.Types))
	for i, t := range c.Types {
		if t.ID == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("types[%d].id", i), "entity type id is required")
		}
		if seen[t.ID] {
			return nil, errors.NewValidationError(fmt.Sprintf("types[%d].id", i), fmt.Sprintf("duplicate entity type %q", t.ID))
		}
		seen[t.ID] = true
	}
	return c.Types, nil
}

// SystemTypes returns the built-in SYSTEM catalog.
func SystemTypes() ([]storagemodels.EntityType, error) {
	return Load(bytes.NewReader(systemTypes))
}

// ordered returns types with every parent ahead of its children. Parents
// absent from the set are assumed to be stored already; an unresolvable
// remainder keeps its input order and fails in Upsert.
func ordered(types []storagemodels.EntityType) []storagemodels.EntityType {
	pending := make(map[string]bool, len(types))
	for _, t := range types {
		pending[t.ID] = true
	}

	out := make([]storagemodels.EntityType, 0, len(types))
	placed := make([]bool, len(types))
	for progress := true; progress; {
		progress = false
		for i, t := range types {
			if placed[i] || (t.ParentID != "" && pending[t.ParentID]) {
				continue
			}
			placed[i], progress = true, true
			pending[t.ID] = false
			out = append(out, t)
		}
	}
	for i, t := range types {
		if !placed[i] {
			out = append(out, t)
		}
	}
	return out
}

// Reconciler upserts a catalog into the SYSTEM scope.
type Reconciler struct {
	reg    Registry
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(reg Registry, opts ...Option) *Reconciler {
	r := &Reconciler{reg: reg, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile upserts types into SYSTEM, parents first. It stops at the first
// failure and returns the counts so far.
func (r *Reconciler) Reconcile(ctx context.Context, types []storagemodels.EntityType) (Report, error) {
	var report Report
	for _, t := range ordered(types) {
		_, err := r.reg.Lookup(ctx, storagemodels.SystemScope, t.ID)
		existed := err == nil
		if err != nil && !errors.IsNotFound(err) {
			return report, err
		}

		changed, err := r.reg.Upsert(ctx, storagemodels.SystemScope, t)
		if err != nil {
			return report, fmt.Errorf("seeding entity type %q: %w", t.ID, err)
		}
		switch {
		case !changed:
			report.Unchanged++
		case existed:
			report.Updated++
		default:
			report.Created++
		}
	}

	r.logger.Info("system entity types reconciled", "created", report.Created, "updated", report.Updated, "unchanged", report.Unchanged)
	return report, nil
}

// Reconcile is a convenience for NewReconciler(reg).Reconcile(ctx, types).
func Reconcile(ctx context.Context, reg Registry, types []storagemodels.EntityType) (Report, error) {
	return NewReconciler(reg).Reconcile(ctx, types)
}
