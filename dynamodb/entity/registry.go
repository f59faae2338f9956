package entity

import (
	"fmt"
	"sync"
)

// Registry holds the entities of an application so that relations can refer
// to their targets by name, including cyclic relation graphs.
type Registry struct {
	mu       sync.RWMutex
	entities []*Entity
	byName   map[string]*Entity
}

// NewRegistry creates a registry from the given entities.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Entity)}
	for _, e := range entities {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an entity. Names must be unique.
func (r *Registry) Register(e *Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[e.Name()]; ok {
		return fmt.Errorf("entity %q already registered", e.Name())
	}
	r.entities = append(r.entities, e)
	r.byName[e.Name()] = e
	return nil
}

// Get looks up an entity by name.
func (r *Registry) Get(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEntity, name)
	}
	return e, nil
}

// Entities returns all entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Validate checks that every relation target is registered and that mapped
// relation fields exist on the target when it declares attributes.
func (r *Registry) Validate() error {
	for _, e := range r.Entities() {
		for _, name := range e.Relations() {
			rel, _ := e.Relation(name)
			if _, err := r.Get(rel.Target); err != nil {
				return fmt.Errorf("entity %q relation %q: %w", e.Name(), name, err)
			}
		}
	}
	return nil
}
