package host

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Entity is something a platform exposes for a config entry.
type Entity interface {
	// EntityID is the unique id, e.g. "camera.front_door_live".
	EntityID() string

	// Name is the human readable name.
	Name() string

	// EntryID is the config entry that created the entity.
	EntryID() string

	// Attributes are extra display values. They must not contain secrets.
	Attributes() map[string]any
}

// Pressable is an entity with a press action, such as a relay button.
type Pressable interface {
	Entity
	Press(ctx context.Context) error
}

// Domain returns the part of an entity id before the first ".".
func Domain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}

// EntityRegistry tracks the entities of all loaded entries.
//
// Thread Safety: All methods are safe for concurrent use.
type EntityRegistry struct {
	mu       sync.RWMutex
	entities map[string]Entity
}

// NewEntityRegistry creates an empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{entities: make(map[string]Entity)}
}

// Add registers entities. Nothing is added if any id is taken.
func (r *EntityRegistry) Add(entities ...Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entities {
		if _, exists := r.entities[e.EntityID()]; exists {
			return fmt.Errorf("%w: %s", ErrEntityExists, e.EntityID())
		}
	}
	for _, e := range entities {
		r.entities[e.EntityID()] = e
	}
	return nil
}

// Remove drops entities by id. Unknown ids are ignored.
func (r *EntityRegistry) Remove(entityIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range entityIDs {
		delete(r.entities, id)
	}
}

// Get returns the entity with the given id.
func (r *EntityRegistry) Get(entityID string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return e, nil
}

// List returns all entities sorted by id.
func (r *EntityRegistry) List() []Entity {
	return r.filter(func(Entity) bool { return true })
}

// ForEntry returns the entities created by one config entry, sorted by id.
func (r *EntityRegistry) ForEntry(entryID string) []Entity {
	return r.filter(func(e Entity) bool { return e.EntryID() == entryID })
}

func (r *EntityRegistry) filter(keep func(Entity) bool) []Entity {
	r.mu.RLock()
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entity) int {
		return strings.Compare(a.EntityID(), b.EntityID())
	})
	return out
}

// Press triggers the press action of a Pressable entity.
func (r *EntityRegistry) Press(ctx context.Context, entityID string) error {
	e, err := r.Get(entityID)
	if err != nil {
		return err
	}
	p, ok := e.(Pressable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPressable, entityID)
	}
	if err := p.Press(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPressFailed, err)
	}
	return nil
}
