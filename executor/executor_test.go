/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package executor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/eserp/datastore/mock"
	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/executor"
	"github.com/suparena/eserp/registry"
	"github.com/suparena/eserp/storagemodels"
	"github.com/suparena/eserp/uquery"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func acme(actor string) executor.Scope {
	return executor.Scope{TenantID: "acme", CallerTenantID: "acme", Actor: actor}
}

func admin() executor.Scope {
	s := acme("root")
	s.Admin = true
	return s
}

func entity(tenant, id, typeID, parent string, attrs map[string]storagemodels.Value) storagemodels.Entity {
	return storagemodels.Entity{
		ID:           id,
		TenantID:     tenant,
		EntityTypeID: typeID,
		ParentID:     parent,
		Attributes:   attrs,
		Metadata:     storagemodels.Metadata{CreatedBy: "seed", CreatedAt: strfmt.DateTime(fixedNow.Add(-time.Hour))},
	}
}

type fixture struct {
	exec     *executor.Executor
	entities *mock.DataStore[storagemodels.Entity]
}

// newFixture builds a workspace that may hold contacts and assets, with a
// handful of rows in two tenants.
func newFixture(t *testing.T, opts ...executor.Option) *fixture {
	t.Helper()
	types := mock.New[storagemodels.EntityType]()
	types.SetData(
		storagemodels.EntityType{Scope: storagemodels.SystemScope, ID: "workspace", Name: "Workspace",
			AllowedChildTypes: []string{"contact", "asset"},
			Fields:            []storagemodels.FieldDefinition{{Key: "name", Label: "Name", Type: storagemodels.FieldTypeText, Required: true}}},
		storagemodels.EntityType{Scope: storagemodels.SystemScope, ID: "contact", Name: "Contact", ParentID: "workspace",
			Fields: []storagemodels.FieldDefinition{{Key: "email", Label: "Email", Type: storagemodels.FieldTypeText}}},
		storagemodels.EntityType{Scope: storagemodels.SystemScope, ID: "asset", Name: "Asset", ParentID: "workspace",
			AllowedChildTypes: []string{"asset"},
			Fields: []storagemodels.FieldDefinition{
				{Key: "serial_no", Label: "Serial", Type: storagemodels.FieldTypeText},
				{Key: "rate", Label: "Daily rate", Type: storagemodels.FieldTypeNumber},
			}},
	)

	entities := mock.New[storagemodels.Entity]()
	entities.SetData(
		entity("acme", "ws-1", "workspace", "", map[string]storagemodels.Value{"name": storagemodels.Text("Acme Rentals")}),
		entity("acme", "c-1", "contact", "ws-1", map[string]storagemodels.Value{"name": storagemodels.Text("Dana"), "email": storagemodels.Text("dana@acme.test")}),
		entity("acme", "a-1", "asset", "ws-1", map[string]storagemodels.Value{"name": storagemodels.Text("Crane"), "rate": storagemodels.Number(250)}),
		entity("globex", "ws-9", "workspace", "", map[string]storagemodels.Value{"name": storagemodels.Text("Globex")}),
		entity("globex", "a-9", "asset", "ws-9", map[string]storagemodels.Value{"name": storagemodels.Text("Secret"), "rate": storagemodels.Number(1)}),
	)

	n := 0
	opts = append([]executor.Option{
		executor.WithClock(func() time.Time { return fixedNow }),
		executor.WithIDGenerator(func() string { n++; return fmt.Sprintf("new-%d", n) }),
	}, opts...)

	reg := registry.New(registry.NewTypeStore(types))
	return &fixture{exec: executor.New(entities, reg, opts...), entities: entities}
}

func parse(t *testing.T, raw string) *uquery.Query {
	t.Helper()
	q, err := uquery.Parse(raw)
	require.NoError(t, err)
	return q
}

func rowIDs(res *executor.ListResult) []string {
	ids := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func columnKeys(res *executor.ListResult) []string {
	keys := make([]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestListEntities(t *testing.T) {
	ctx := context.Background()

	t.Run("ColumnUnionAcrossTypes", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.exec.ListEntities(ctx, acme("dana"), uquery.New())
		require.NoError(t, err)

		// Types sort as asset, contact, workspace.
		assert.Equal(t, []string{"name", "serial_no", "rate", "email"}, columnKeys(res))
		assert.Equal(t, []string{"a-1", "c-1", "ws-1"}, rowIDs(res))
		assert.Equal(t, int64(executor.DefaultMaxLimit), res.Limit)
	})

	t.Run("MissingValuesAreNull", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.type=asset&fields=rate&fields=serial_no&fields=bogus"))
		require.NoError(t, err)

		assert.Equal(t, []string{"rate", "serial_no"}, columnKeys(res), "unknown field keys are dropped")
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "asset", res.Rows[0].TypeID)
		assert.Equal(t, []storagemodels.Value{storagemodels.Number(250), storagemodels.Null()}, res.Rows[0].Values)
	})

	t.Run("InvalidSort", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "sort.bogus=1"))
		var ve *errors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "sort.bogus", ve.Field)

		_, err = f.exec.ListEntities(ctx, acme("dana"), parse(t, "sort.rate=-1&sort.created_at=1"))
		assert.NoError(t, err)
	})

	t.Run("SortOnEmptyResult", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.rate.gt=100000&sort.rate=1"))
		require.NoError(t, err)
		assert.Empty(t, res.Rows)

		res, err = f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.type=contact&sort.serial_no=-1"))
		require.NoError(t, err, "columns of types absent from the page stay sortable")
		assert.Equal(t, []string{"c-1"}, rowIDs(res))

		_, err = f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.rate.gt=100000&sort.bogus=1"))
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("TenantMismatch", func(t *testing.T) {
		f := newFixture(t)
		scope := acme("dana")
		scope.CallerTenantID = "globex"
		_, err := f.exec.ListEntities(ctx, scope, uquery.New())

		var ae *errors.AuthorizationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, errors.ReasonTenantMismatch, ae.Reason)
		assert.Zero(t, f.entities.Queries())
	})

	t.Run("ForgedParentStaysInTenant", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.parent_id=ws-9"))
		require.NoError(t, err)
		assert.Empty(t, res.Rows)

		res, err = f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.tenantId=globex"))
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
	})

	t.Run("UnknownTypeIsSkipped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.entities.Put(ctx, entity("acme", "g-1", "ghost", "", map[string]storagemodels.Value{"name": storagemodels.Text("Boo")})))

		res, err := f.exec.ListEntities(ctx, acme("dana"), uquery.New())
		require.NoError(t, err)
		assert.Contains(t, rowIDs(res), "g-1")
		assert.Equal(t, []string{"name", "serial_no", "rate", "email"}, columnKeys(res))
	})

	t.Run("LimitIsCapped", func(t *testing.T) {
		f := newFixture(t, executor.WithMaxLimit(2))
		res, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "options.limit=50"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Limit)
		assert.Len(t, res.Rows, 2)
	})
}

func TestPaginationStability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Equal rates force the tie-break on id.
	for i := range 9 {
		id := fmt.Sprintf("fleet-%02d", 9-i)
		require.NoError(t, f.entities.Put(ctx, entity("acme", id, "asset", "ws-1",
			map[string]storagemodels.Value{"rate": storagemodels.Number(100)})))
	}

	page := func(skip, limit int) []string {
		res, err := f.exec.ListEntities(ctx, acme("dana"),
			parse(t, fmt.Sprintf("filter.rate=100&sort.rate=1&options.skip=%d&options.limit=%d", skip, limit)))
		require.NoError(t, err)
		return rowIDs(res)
	}

	first, second, both := page(0, 4), page(4, 4), page(0, 8)
	require.Len(t, first, 4)
	require.Len(t, second, 4)
	assert.NotContains(t, second, first[0])
	assert.Equal(t, both, append(first, second...))
	assert.Equal(t, "fleet-01", first[0])
}

func TestGetEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.exec.GetEntity(ctx, acme("dana"), "a-1")
	require.NoError(t, err)
	assert.Equal(t, storagemodels.Number(250), got.Attributes["rate"])

	_, absent := f.exec.GetEntity(ctx, acme("dana"), "nope")
	_, foreign := f.exec.GetEntity(ctx, acme("dana"), "a-9")
	require.True(t, errors.IsNotFound(absent))
	require.True(t, errors.IsNotFound(foreign))
	assert.Equal(t, errors.NewNotFoundError("Entity", "nope").Error(), absent.Error())
	assert.Equal(t, errors.NewNotFoundError("Entity", "a-9").Error(), foreign.Error())

	t.Run("MutatingResultLeavesStoreIntact", func(t *testing.T) {
		got.Attributes["rate"] = storagemodels.Number(0)
		again, err := f.exec.GetEntity(ctx, acme("dana"), "a-1")
		require.NoError(t, err)
		assert.Equal(t, storagemodels.Number(250), again.Attributes["rate"])
	})
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.exec.SetHidden(ctx, acme("dana"), "a-1", true))

	res, err := f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.type=asset"))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	_, err = f.exec.GetEntity(ctx, acme("dana"), "a-1")
	assert.True(t, errors.IsNotFound(err))

	_, err = f.exec.ListEntities(ctx, acme("dana"), parse(t, "filter.type=asset&options.includeHidden=true"))
	assert.True(t, errors.IsUnauthorized(err))

	res, err = f.exec.ListEntities(ctx, admin(), parse(t, "filter.type=asset&options.includeHidden=true"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1"}, rowIDs(res))

	err = f.exec.SetHidden(ctx, acme("dana"), "a-1", false)
	assert.True(t, errors.IsUnauthorized(err))

	require.NoError(t, f.exec.SetHidden(ctx, admin(), "a-1", false))
	got, err := f.exec.GetEntity(ctx, acme("dana"), "a-1")
	require.NoError(t, err)
	assert.False(t, got.Hidden)
	assert.Equal(t, "root", got.Metadata.UpdatedBy)
}

func TestCreateEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("StampsMetadata", func(t *testing.T) {
		f := newFixture(t)
		ent, issues, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{
			TypeID:   "asset",
			ParentID: "ws-1",
			Attributes: map[string]storagemodels.Value{
				"name":      storagemodels.Text("Forklift"),
				"rate":      storagemodels.Number(80),
				"serial_no": storagemodels.Null(),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "new-1", ent.ID)
		assert.Equal(t, "acme", ent.TenantID)
		assert.Equal(t, "dana", ent.Metadata.CreatedBy)
		assert.Equal(t, strfmt.DateTime(fixedNow), ent.Metadata.CreatedAt)
		assert.NotContains(t, ent.Attributes, "serial_no")
		assert.Empty(t, issues)

		stored, err := f.exec.GetEntity(ctx, acme("dana"), "new-1")
		require.NoError(t, err)
		assert.Equal(t, "ws-1", stored.ParentID)
	})

	t.Run("ReportsIssues", func(t *testing.T) {
		f := newFixture(t)
		_, issues, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{
			TypeID:     "workspace",
			Attributes: map[string]storagemodels.Value{"colour": storagemodels.Text("red")},
		})
		require.NoError(t, err)
		assert.Equal(t, []executor.Issue{
			{Field: "name", Message: "required value is missing"},
			{Field: "colour", Message: "not declared by the entity type"},
		}, issues)
	})

	t.Run("ParentInOtherTenant", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{TypeID: "asset", ParentID: "ws-9"})
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, 5, f.entities.Count())
	})

	t.Run("ParentTypeDisallowsChild", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{TypeID: "contact", ParentID: "a-1"})
		var ve *errors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "parent_id", ve.Field)
	})

	t.Run("UnknownType", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{TypeID: "ghost"})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("ActorRequired", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.exec.CreateEntity(ctx, acme(""), executor.EntityInput{TypeID: "workspace"})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("MixedCaseIDRefused", func(t *testing.T) {
		f := newFixture(t, executor.WithIDGenerator(func() string { return "K-1" }))
		_, _, err := f.exec.CreateEntity(ctx, acme("dana"), executor.EntityInput{TypeID: "workspace"})
		var ve *errors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "id", ve.Field)
		assert.Equal(t, 5, f.entities.Count())
	})
}

func TestUpdateAttributes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ent, issues, err := f.exec.UpdateAttributes(ctx, acme("lee"), "a-1", map[string]storagemodels.Value{
		"rate":      storagemodels.Text("cheap"),
		"name":      storagemodels.Null(),
		"serial_no": storagemodels.Text("SN-1"),
	})
	require.NoError(t, err)
	assert.NotContains(t, ent.Attributes, "name")
	assert.Equal(t, storagemodels.Text("SN-1"), ent.Attributes["serial_no"])
	assert.Equal(t, "lee", ent.Metadata.UpdatedBy)
	assert.Equal(t, "seed", ent.Metadata.CreatedBy)
	assert.Equal(t, []executor.Issue{
		{Field: "name", Message: "required value is missing"},
		{Field: "rate", Message: "expected number, got text"},
	}, issues)

	_, _, err = f.exec.UpdateAttributes(ctx, acme("lee"), "a-9", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestValidateAttributes(t *testing.T) {
	fields := []storagemodels.FieldDefinition{
		{Key: "due", Type: storagemodels.FieldTypeDate, Required: true},
		{Key: "paid", Type: storagemodels.FieldTypeBoolean},
	}

	assert.Empty(t, executor.ValidateAttributes(fields, map[string]storagemodels.Value{
		"due": storagemodels.Text("2025-03-01T00:00:00Z"),
	}))
	assert.Equal(t, []executor.Issue{
		{Field: "due", Message: "required value is missing"},
		{Field: "paid", Message: "expected boolean, got number"},
	}, executor.ValidateAttributes(fields, map[string]storagemodels.Value{
		"due":  storagemodels.Null(),
		"paid": storagemodels.Number(1),
	}))
}

func TestScopeAuthorize(t *testing.T) {
	assert.NoError(t, acme("dana").Authorize())

	for _, tenant := range []string{"", "SYSTEM", "Acme", "-acme", "ac me"} {
		s := executor.Scope{TenantID: tenant, CallerTenantID: tenant}
		assert.True(t, errors.IsValidationError(s.Authorize()), "tenant %q", tenant)
	}
}

func TestValidEntityID(t *testing.T) {
	for _, id := range []string{"ws-1", "fleet-09", "3f2b8c1e-6a1d-4c1e-9b1a-0d2e4f6a8b9c"} {
		assert.True(t, executor.ValidEntityID(id), id)
	}
	for _, id := range []string{"", "K-1", "3F2B8C1E-6A1D-4C1E-9B1A-0D2E4F6A8B9C", "-x", "a b"} {
		assert.False(t, executor.ValidEntityID(id), id)
	}
}
