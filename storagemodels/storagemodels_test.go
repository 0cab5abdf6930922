/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestValueJSON(t *testing.T) {
	attrs := map[string]Value{
		"name":  Text("Crane"),
		"rate":  Number(12.5),
		"paid":  Bool(true),
		"due":   Date(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		"empty": Null(),
	}
	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Crane","rate":12.5,"paid":true,"due":"2025-03-01T00:00:00Z","empty":null}`, string(data))

	var back map[string]Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Text("2025-03-01T00:00:00Z"), back["due"], "JSON strings always decode to text")
	assert.True(t, back["empty"].IsNull())
	assert.True(t, back["rate"].Equal(Number(12.5)))
}

func TestValueBSON(t *testing.T) {
	type doc struct {
		Attributes map[string]Value `bson:"attributes"`
	}
	due := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	in := doc{Attributes: map[string]Value{"due": Date(due), "rate": Number(3), "name": Text("x"), "paid": Bool(false)}}

	raw, err := bson.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, bson.TypeDateTime, bson.Raw(raw).Lookup("attributes", "due").Type)
	assert.Equal(t, bson.TypeDouble, bson.Raw(raw).Lookup("attributes", "rate").Type)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	for k, v := range in.Attributes {
		assert.True(t, v.Equal(out.Attributes[k]), k)
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(int64(7))
	require.NoError(t, err)
	assert.Equal(t, Number(7), v)

	v, err = FromAny(strfmt.DateTime(time.Unix(10, 0)))
	require.NoError(t, err)
	assert.Equal(t, KindDate, v.Kind)

	_, err = FromAny(math.Inf(1))
	assert.Error(t, err)
	_, err = FromAny([]int{1})
	assert.Error(t, err)
}

func TestFieldTypeAccepts(t *testing.T) {
	assert.True(t, FieldTypeDate.Accepts(Text("2025-03-01T00:00:00Z")))
	assert.False(t, FieldTypeDate.Accepts(Text("next tuesday")))
	assert.True(t, FieldTypeNumber.Accepts(Null()))
	assert.False(t, FieldTypeBoolean.Accepts(Text("true")))
	assert.False(t, FieldType("money").Valid())
}

func TestEntityLookup(t *testing.T) {
	e := Entity{
		ID: "a-1", TenantID: "acme", EntityTypeID: "asset",
		Attributes: map[string]Value{"rate": Number(1)},
		Metadata:   Metadata{CreatedBy: "dana", CreatedAt: strfmt.DateTime(time.Unix(100, 0))},
	}

	v, ok := e.Lookup("attributes.rate")
	assert.True(t, ok)
	assert.Equal(t, Number(1), v)

	_, ok = e.Lookup(PathParentID)
	assert.False(t, ok)
	_, ok = e.Lookup("metadata.updated_at")
	assert.False(t, ok)

	v, ok = e.Lookup("metadata.created_at")
	assert.True(t, ok)
	assert.Equal(t, KindDate, v.Kind)

	clone := e.Clone()
	clone.Attributes["rate"] = Number(2)
	assert.Equal(t, Number(1), e.Attributes["rate"])
	assert.Equal(t, "acme|a-1", e.DocumentKey())
}

func TestTypeView(t *testing.T) {
	v := TypeView{Type: EntityType{ID: "person"}, Lineage: []string{"workspace", "contact"}, Depth: 2}
	path := v.Path()
	assert.Equal(t, []string{"workspace", "contact", "person"}, path)
	path[0] = "x"
	assert.Equal(t, "workspace", v.Lineage[0])
}

func TestFilterEqualities(t *testing.T) {
	f := Filter{
		Eq("scope", Text("acme")),
		{Path: "id", Op: OpGt, Value: Text("a")},
		Eq("hidden", Bool(false)),
	}
	assert.Equal(t, map[string]string{"scope": "acme"}, f.Equalities())

	op, ok := ParseOperator("gte")
	assert.True(t, ok)
	assert.Equal(t, OpGte, op)
	_, ok = ParseOperator("like")
	assert.False(t, ok)
}
