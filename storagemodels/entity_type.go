/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import "slices"

// FieldType is the declared type of an attribute.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeBoolean FieldType = "boolean"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean:
		return true
	}
	return false
}

// Accepts reports whether a value is acceptable for the field type.
// Null is always accepted; requiredness is checked separately.
func (t FieldType) Accepts(v Value) bool {
	if v.IsNull() {
		return true
	}
	switch t {
	case FieldTypeText:
		return v.Kind == KindText
	case FieldTypeNumber:
		return v.Kind == KindNumber
	case FieldTypeBoolean:
		return v.Kind == KindBoolean
	case FieldTypeDate:
		if v.Kind == KindDate {
			return true
		}
		if v.Kind == KindText {
			_, err := parseDateText(v.Text)
			return err == nil
		}
	}
	return false
}

// FieldDefinition describes one attribute of an entity type.
type FieldDefinition struct {
	Key      string    `json:"key" bson:"key" yaml:"key" dynamodbav:"key"`
	Label    string    `json:"label" bson:"label" yaml:"label" dynamodbav:"label"`
	Type     FieldType `json:"type" bson:"type" yaml:"type" dynamodbav:"type"`
	Required bool      `json:"required" bson:"required" yaml:"required" dynamodbav:"required"`
}

// EntityType is one node of the content type hierarchy within a scope.
type EntityType struct {
	Scope             string            `json:"scope" bson:"scope" yaml:"-" dynamodbav:"scope"`
	ID                string            `json:"id" bson:"id" yaml:"id" dynamodbav:"id"`
	Name              string            `json:"name" bson:"name" yaml:"name" dynamodbav:"name"`
	Description       string            `json:"description" bson:"description" yaml:"description" dynamodbav:"description"`
	Icon              string            `json:"icon" bson:"icon" yaml:"icon" dynamodbav:"icon"`
	ParentID          string            `json:"parentId,omitempty" bson:"parentId,omitempty" yaml:"parent" dynamodbav:"parentId,omitempty"`
	AllowedChildTypes []string          `json:"allowed_children" bson:"allowedChildTypes" yaml:"allowed_children" dynamodbav:"allowedChildTypes"`
	Fields            []FieldDefinition `json:"fields" bson:"fields" yaml:"fields" dynamodbav:"fields"`
}

// TypeKeyPaths are the paths that together identify an entity type.
var TypeKeyPaths = []string{"scope", "id"}

// TypeKey builds the Key of one entity type.
func TypeKey(scope, id string) Key {
	return Key{"scope": scope, "id": id}
}

// DocumentKey returns the scope-qualified key of the type.
func (t EntityType) DocumentKey() string {
	return t.Scope + "|" + t.ID
}

// Lookup resolves a document path against the type record.
func (t EntityType) Lookup(path string) (Value, bool) {
	switch path {
	case "scope":
		return Text(t.Scope), true
	case "id":
		return Text(t.ID), true
	case "name":
		return Text(t.Name), true
	case PathParentID:
		if t.ParentID == "" {
			return Null(), false
		}
		return Text(t.ParentID), true
	}
	return Null(), false
}

// Equal reports whether two type records are identical, treating nil and
// empty slices alike.
func (t EntityType) Equal(o EntityType) bool {
	if t.Scope != o.Scope || t.ID != o.ID || t.Name != o.Name ||
		t.Description != o.Description || t.Icon != o.Icon || t.ParentID != o.ParentID {
		return false
	}
	if !slices.Equal(t.AllowedChildTypes, o.AllowedChildTypes) {
		return false
	}
	return slices.Equal(t.Fields, o.Fields)
}

// Field returns the field definition declared directly on the type.
func (t EntityType) Field(key string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// TypeView is the denormalized representation of a type within a tenant.
type TypeView struct {
	Type EntityType
	// Lineage holds ancestor ids, root first, excluding the type itself.
	Lineage []string
	// Depth is the distance from the root; it equals len(Lineage).
	Depth int
	// Fields is the effective field set along the path.
	Fields []FieldDefinition
}

// Path returns the lineage followed by the type's own id.
func (v TypeView) Path() []string {
	return append(append([]string(nil), v.Lineage...), v.Type.ID)
}
