// Package script holds the resolver contract for named scripts: computed
// field sources and search-profile selectors. Script hosting itself is
// external; an embedding process registers plain Go functions under names
// that index definitions refer to.
package script

import (
	"fmt"
	"strings"
	"sync"
)

// ComputedField derives a field value from the other input fields of a
// document. Implementations must be pure and side-effect free.
type ComputedField func(fields map[string]string) (string, error)

// ProfileSelector picks a search-profile name from the request fields.
type ProfileSelector func(fields map[string]string) (string, error)

// Registry maps case-insensitive script names to functions.
type Registry struct {
	mu        sync.RWMutex
	computed  map[string]ComputedField
	selectors map[string]ProfileSelector
}

// NewRegistry creates an empty script registry.
func NewRegistry() *Registry {
	return &Registry{
		computed:  make(map[string]ComputedField),
		selectors: make(map[string]ProfileSelector),
	}
}

// RegisterComputed registers a computed-field script under name.
func (r *Registry) RegisterComputed(name string, fn ComputedField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.computed[strings.ToLower(name)] = fn
}

// RegisterSelector registers a profile-selector script under name.
func (r *Registry) RegisterSelector(name string, fn ProfileSelector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectors[strings.ToLower(name)] = fn
}

// Computed resolves a computed-field script by name.
func (r *Registry) Computed(name string) (ComputedField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.computed[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown computed-field script %q", name)
	}
	return fn, nil
}

// Selector resolves a profile-selector script by name.
func (r *Registry) Selector(name string) (ProfileSelector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.selectors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown profile-selector script %q", name)
	}
	return fn, nil
}
