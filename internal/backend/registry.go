package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is wrapped by Lookup when no backend has the requested name.
var ErrNotFound = errors.New("backend not registered")

// Registry is a name-indexed set of backend instances. It is populated at
// startup and read-only afterwards; Transcribers and Generators live in
// separate registries because the two capabilities are never interchangeable.
type Registry[T Info] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T Info]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register adds an instance under its own Name. Duplicate names are
// rejected so a misconfigured startup fails loudly instead of shadowing
// a backend.
func (r *Registry[T]) Register(b T) error {
	name := b.Name()
	if name == "" {
		return fmt.Errorf("backend: register: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("backend: register %q: already registered", name)
	}
	r.entries[name] = b
	return nil
}

// Lookup returns the instance registered under name.
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("backend: lookup %q: %w", name, ErrNotFound)
	}
	return b, nil
}

// Names returns the sorted names of all registered instances.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
