/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"reflect"
	"sync"

	"github.com/suparena/eserp/storagemodels"
)

// EntityTypeIndexMap lays entity types out in a single DynamoDB table, one
// partition per scope so a scope's overrides list with one Query.
var EntityTypeIndexMap = map[string]string{
	"PK": "SCOPE#{scope}",
	"SK": "TYPE#{id}",
}

var (
	indexMapRegistry = make(map[reflect.Type]map[string]string)
	mu               sync.RWMutex
)

func init() {
	RegisterIndexMap[storagemodels.EntityType](EntityTypeIndexMap)
}

// RegisterIndexMap associates a Go type T with a DynamoDB index map (PK, SK).
// Templates reference attribute names in braces, e.g. "SCOPE#{scope}".
func RegisterIndexMap[T any](idxMap map[string]string) {
	var zero T
	t := reflect.TypeOf(zero)

	mu.Lock()
	defer mu.Unlock()
	indexMapRegistry[t] = idxMap
}

// GetIndexMap retrieves the index map for type T, if any.
func GetIndexMap[T any]() (map[string]string, bool) {
	var zero T
	t := reflect.TypeOf(zero)

	mu.RLock()
	defer mu.RUnlock()
	m, ok := indexMapRegistry[t]
	return m, ok
}
