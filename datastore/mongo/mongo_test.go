/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/suparena/eserp/datastore"
	storeerrors "github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

var _ datastore.DataStore[storagemodels.Entity] = (*Store[storagemodels.Entity])(nil)

func TestToFilter(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, bson.D{}, ToFilter(nil))
	})

	t.Run("Operators", func(t *testing.T) {
		f := storagemodels.Filter{
			storagemodels.Eq(storagemodels.PathTenantID, storagemodels.Text("acme")),
			{Path: "attributes.rate", Op: storagemodels.OpGte, Value: storagemodels.Number(10)},
			{Path: "attributes.rate", Op: storagemodels.OpLt, Value: storagemodels.Number(20)},
			{Path: "attributes.status", Op: storagemodels.OpIn, Values: []storagemodels.Value{
				storagemodels.Text("on_rent"), storagemodels.Text("available"),
			}},
		}

		got := ToFilter(f)
		require.Len(t, got, 1)
		assert.Equal(t, "$and", got[0].Key)

		clauses, ok := got[0].Value.(bson.A)
		require.True(t, ok)
		require.Len(t, clauses, 4)

		assert.Equal(t, bson.D{{Key: "tenantId", Value: bson.D{{Key: "$eq", Value: storagemodels.Text("acme")}}}}, clauses[0])
		assert.Equal(t, bson.D{{Key: "attributes.rate", Value: bson.D{{Key: "$gte", Value: storagemodels.Number(10)}}}}, clauses[1])
		assert.Equal(t, bson.D{{Key: "attributes.rate", Value: bson.D{{Key: "$lt", Value: storagemodels.Number(20)}}}}, clauses[2])
		assert.Equal(t, bson.D{{Key: "attributes.status", Value: bson.D{{Key: "$in", Value: bson.A{
			storagemodels.Text("on_rent"), storagemodels.Text("available"),
		}}}}}, clauses[3])
	})

	t.Run("MarshalsToNativeTypes", func(t *testing.T) {
		raw, err := bson.Marshal(ToFilter(storagemodels.Filter{
			storagemodels.Eq(storagemodels.PathHidden, storagemodels.Bool(false)),
		}))
		require.NoError(t, err)

		v := bson.Raw(raw).Lookup("$and", "0", "hidden", "$eq")
		assert.Equal(t, bson.TypeBoolean, v.Type)
		assert.False(t, v.Boolean())
	})
}

func TestFindOptions(t *testing.T) {
	opts := FindOptions(&storagemodels.QueryParams{
		Sort: []storagemodels.SortKey{
			{Path: "attributes.name", Direction: storagemodels.Descending},
			{Path: storagemodels.PathID, Direction: storagemodels.Ascending},
		},
		Skip:       20,
		Limit:      10,
		Projection: []string{"attributes.name"},
		Collation:  &storagemodels.DefaultCollation,
	})

	assert.Equal(t, bson.D{{Key: "attributes.name", Value: -1}, {Key: "_id", Value: 1}}, opts.Sort)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(20), *opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(10), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "attributes.name", Value: 1}}, opts.Projection)
	require.NotNil(t, opts.Collation)
	assert.Equal(t, "en", opts.Collation.Locale)
	assert.Equal(t, 1, opts.Collation.Strength)

	t.Run("ZeroPaging", func(t *testing.T) {
		opts := FindOptions(&storagemodels.QueryParams{})
		assert.Nil(t, opts.Skip)
		assert.Nil(t, opts.Limit)
		assert.Nil(t, opts.Collation)
	})
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore[storagemodels.Entity](nil, storagemodels.EntityKeyPaths)
	assert.True(t, storeerrors.IsValidationError(err))
}

// TestMongoIntegration runs against a real server when MONGO_URI is set in the
// environment or a .env file.
func TestMongoIntegration(t *testing.T) {
	_ = godotenv.Load()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	coll := client.Database("eserp_test").Collection("entities_" + uuid.NewString()[:8])
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })

	store, err := NewStore[storagemodels.Entity](coll, storagemodels.EntityKeyPaths)
	require.NoError(t, err)
	require.NoError(t, store.EnsureIndexes(ctx, []string{storagemodels.PathTenantID, storagemodels.PathEntityTypeID}))

	for i, name := range []string{"bravo", "Alpha", "charlie"} {
		require.NoError(t, store.Put(ctx, storagemodels.Entity{
			ID:           uuid.NewString(),
			TenantID:     "acme",
			EntityTypeID: []string{"contact", "asset", "contact"}[i],
			Attributes:   map[string]storagemodels.Value{"name": storagemodels.Text(name)},
		}))
	}

	params := &storagemodels.QueryParams{
		Filter:    storagemodels.Filter{storagemodels.Eq(storagemodels.PathTenantID, storagemodels.Text("acme"))},
		Sort:      []storagemodels.SortKey{{Path: "attributes.name", Direction: storagemodels.Ascending}},
		Collation: &storagemodels.DefaultCollation,
	}
	results, err := store.Query(ctx, params)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Alpha", results[0].Attributes["name"].Text)

	types, err := store.Distinct(ctx, storagemodels.PathEntityTypeID, params)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"asset", "contact"}, types)

	got, err := store.GetOne(ctx, storagemodels.EntityKey("acme", results[0].ID))
	require.NoError(t, err)
	assert.Equal(t, results[0].ID, got.ID)

	require.NoError(t, store.Delete(ctx, storagemodels.EntityKey("acme", got.ID)))
	_, err = store.GetOne(ctx, storagemodels.EntityKey("acme", got.ID))
	assert.True(t, storeerrors.IsNotFound(err))
}
