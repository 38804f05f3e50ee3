// Package registry provides a process-wide concurrent map with
// case-insensitive keys. Both the index-runtime registration and the
// index-status table are instances of it.
package registry

import (
	"strings"
	"sync"
)

// Registry is a concurrent map keyed by case-insensitive name.
// The zero value is not usable; construct with New.
type Registry[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{m: make(map[string]T)}
}

// Get returns the value registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[fold(name)]
	return v, ok
}

// Set registers value under name, replacing any existing entry.
func (r *Registry[T]) Set(name string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[fold(name)] = value
}

// SetIfAbsent registers value under name only when no entry exists.
// Returns false when the name was already taken.
func (r *Registry[T]) SetIfAbsent(name string, value T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[fold(name)]; ok {
		return false
	}
	r.m[fold(name)] = value
	return true
}

// Delete removes the entry for name. Removing an absent name is a no-op.
func (r *Registry[T]) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, fold(name))
}

// Contains reports whether name is registered.
func (r *Registry[T]) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[fold(name)]
	return ok
}

// Names returns a snapshot of all registered names (folded form).
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for k := range r.m {
		names = append(names, k)
	}
	return names
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

func fold(name string) string {
	return strings.ToLower(name)
}
