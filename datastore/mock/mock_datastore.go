/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of the DataStore interface
// for tests and the "memory" backend.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/suparena/eserp/datastore/eval"
	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// DataStore is an in-memory implementation of datastore.DataStore[T]
type DataStore[T storagemodels.Document] struct {
	mu          sync.RWMutex
	data        map[string]T
	queryFunc   func(ctx context.Context, params *storagemodels.QueryParams) ([]T, error)
	putError    error
	deleteError error
	queryError  error
	queries     int
}

// New creates a new mock DataStore
func New[T storagemodels.Document]() *DataStore[T] {
	return &DataStore[T]{
		data: make(map[string]T),
	}
}

// WithQueryFunc sets a custom query function for testing
func (m *DataStore[T]) WithQueryFunc(f func(ctx context.Context, params *storagemodels.QueryParams) ([]T, error)) *DataStore[T] {
	m.queryFunc = f
	return m
}

// WithPutError makes Put operations return an error
func (m *DataStore[T]) WithPutError(err error) *DataStore[T] {
	m.putError = err
	return m
}

// WithDeleteError makes Delete operations return an error
func (m *DataStore[T]) WithDeleteError(err error) *DataStore[T] {
	m.deleteError = err
	return m
}

// WithQueryError makes Query and Distinct operations return an error
func (m *DataStore[T]) WithQueryError(err error) *DataStore[T] {
	m.queryError = err
	return m
}

// GetOne returns the record matching every path of key
func (m *DataStore[T]) GetOne(ctx context.Context, key storagemodels.Key) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := eval.NewComparator(nil)
	filter := storagemodels.KeyFilter(key)
	for _, k := range m.sortedKeys() {
		item := m.data[k]
		if c.Match(item, filter) {
			return &item, nil
		}
	}

	var zero T
	return nil, errors.NewNotFoundError(fmt.Sprintf("%T", zero), fmt.Sprint(map[string]string(key)))
}

// Put stores an entity, replacing any record with the same document key
func (m *DataStore[T]) Put(ctx context.Context, entity T) error {
	if m.putError != nil {
		return m.putError
	}

	key := entity.DocumentKey()
	if key == "" {
		return errors.NewValidationError("key", "unable to extract key from entity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entity
	return nil
}

// Query filters, sorts and pages the stored records
func (m *DataStore[T]) Query(ctx context.Context, params *storagemodels.QueryParams) ([]T, error) {
	if m.queryError != nil {
		return nil, m.queryError
	}
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params)
	}

	m.mu.Lock()
	m.queries++
	items := m.snapshot()
	m.mu.Unlock()

	return eval.Apply(items, params), nil
}

// Distinct returns distinct text values at path among matching records
func (m *DataStore[T]) Distinct(ctx context.Context, path string, params *storagemodels.QueryParams) ([]string, error) {
	if m.queryError != nil {
		return nil, m.queryError
	}

	m.mu.RLock()
	items := m.snapshot()
	m.mu.RUnlock()

	return eval.Distinct(items, path, params), nil
}

// Delete removes the record matching key
func (m *DataStore[T]) Delete(ctx context.Context, key storagemodels.Key) error {
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := eval.NewComparator(nil)
	filter := storagemodels.KeyFilter(key)
	for k, item := range m.data {
		if c.Match(item, filter) {
			delete(m.data, k)
			return nil
		}
	}

	var zero T
	return errors.NewNotFoundError(fmt.Sprintf("%T", zero), fmt.Sprint(map[string]string(key)))
}

// Helper methods for testing

// SetData directly replaces the stored records (for testing)
func (m *DataStore[T]) SetData(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]T, len(items))
	for _, item := range items {
		m.data[item.DocumentKey()] = item
	}
}

// GetData returns a copy of the internal data map (for testing)
func (m *DataStore[T]) GetData() map[string]T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]T, len(m.data))
	for k, v := range m.data {
		result[k] = v
	}
	return result
}

// Count returns the number of stored entities
func (m *DataStore[T]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Queries returns how many Query calls reached the store
func (m *DataStore[T]) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// Clear removes all data
func (m *DataStore[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]T)
}

// snapshot returns records in document-key order so results never depend on
// map iteration. Callers hold the lock.
func (m *DataStore[T]) snapshot() []T {
	keys := m.sortedKeys()
	items := make([]T, 0, len(keys))
	for _, k := range keys {
		items = append(items, m.data[k])
	}
	return items
}

func (m *DataStore[T]) sortedKeys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
