/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// SystemScope is the scope holding process-seeded entity types.
const SystemScope = "SYSTEM"

// Document paths shared by the query layer and every backend.
const (
	PathID           = "_id"
	PathTenantID     = "tenantId"
	PathEntityTypeID = "entityTypeId"
	PathParentID     = "parentId"
	PathHidden       = "hidden"
	PathAttributes   = "attributes"
	PathMetadata     = "metadata"
)

// Document is a stored record addressable by dotted paths.
type Document interface {
	Lookup(path string) (Value, bool)
	DocumentKey() string
}

// Key identifies a single record by document path.
type Key map[string]string

// Metadata is provenance set by the query layer, never by clients.
type Metadata struct {
	CreatedBy string          `json:"created_by" bson:"created_by"`
	CreatedAt strfmt.DateTime `json:"created_at" bson:"created_at"`
	UpdatedBy string          `json:"updated_by" bson:"updated_by"`
	UpdatedAt strfmt.DateTime `json:"updated_at" bson:"updated_at"`
}

// Entity is a generic, loosely typed record in a tenant-scoped tree.
type Entity struct {
	ID           string           `json:"id" bson:"_id"`
	TenantID     string           `json:"tenantId" bson:"tenantId"`
	EntityTypeID string           `json:"entityTypeId" bson:"entityTypeId"`
	ParentID     string           `json:"parentId,omitempty" bson:"parentId,omitempty"`
	Attributes   map[string]Value `json:"attributes" bson:"attributes"`
	Metadata     Metadata         `json:"metadata" bson:"metadata"`
	Hidden       bool             `json:"hidden" bson:"hidden"`
}

// DocumentKey returns the tenant-qualified key of the entity.
func (e Entity) DocumentKey() string {
	return e.TenantID + "|" + e.ID
}

// EntityKeyPaths are the paths that together identify an entity.
var EntityKeyPaths = []string{PathTenantID, PathID}

// EntityKey builds the Key of one entity.
func EntityKey(tenantID, id string) Key {
	return Key{PathTenantID: tenantID, PathID: id}
}

// Lookup resolves a document path against the entity.
func (e Entity) Lookup(path string) (Value, bool) {
	switch path {
	case PathID:
		return Text(e.ID), true
	case PathTenantID:
		return Text(e.TenantID), true
	case PathEntityTypeID:
		return Text(e.EntityTypeID), true
	case PathParentID:
		if e.ParentID == "" {
			return Null(), false
		}
		return Text(e.ParentID), true
	case PathHidden:
		return Bool(e.Hidden), true
	}

	if key, ok := strings.CutPrefix(path, PathAttributes+"."); ok {
		v, found := e.Attributes[key]
		return v, found
	}

	if key, ok := strings.CutPrefix(path, PathMetadata+"."); ok {
		switch key {
		case "created_by":
			return Text(e.Metadata.CreatedBy), e.Metadata.CreatedBy != ""
		case "updated_by":
			return Text(e.Metadata.UpdatedBy), e.Metadata.UpdatedBy != ""
		case "created_at":
			return dateOf(e.Metadata.CreatedAt)
		case "updated_at":
			return dateOf(e.Metadata.UpdatedAt)
		}
	}

	return Null(), false
}

func dateOf(dt strfmt.DateTime) (Value, bool) {
	t := time.Time(dt)
	if t.IsZero() {
		return Null(), false
	}
	return Date(t), true
}

// Clone returns a copy whose attribute bag can be mutated independently.
func (e Entity) Clone() Entity {
	out := e
	out.Attributes = make(map[string]Value, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	return out
}
