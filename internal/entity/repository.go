package entity

import (
	"context"
	"sync"
)

// Repository provides access to full person and group entities.
// Implementations must return copies; callers may mutate results freely.
type Repository interface {
	// GetPerson retrieves a person by ID, hydrated with interests, traits,
	// and blocks. Returns ErrNotFound if no such person exists.
	GetPerson(ctx context.Context, id string) (*Person, error)

	// GetGroup retrieves a group by ID, hydrated with tags.
	// Returns ErrNotFound if no such group exists.
	GetGroup(ctx context.Context, id string) (*Group, error)

	// ListPeople returns all people. Used by the full-scan proximity
	// reference implementation.
	ListPeople(ctx context.Context) ([]*Person, error)

	// ListGroups returns all groups. Used by the full-scan proximity
	// reference implementation.
	ListGroups(ctx context.Context) ([]*Group, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	people map[string]*Person
	groups map[string]*Group
}

// NewInMemoryRepository creates a new in-memory entity repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		people: make(map[string]*Person),
		groups: make(map[string]*Group),
	}
}

// PutPerson stores a person, replacing any existing entry with the same ID.
func (r *InMemoryRepository) PutPerson(p *Person) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.people[p.ID] = copyPerson(p)
}

// PutGroup stores a group, replacing any existing entry with the same ID.
func (r *InMemoryRepository) PutGroup(g *Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = copyGroup(g)
}

// GetPerson retrieves a person by ID.
func (r *InMemoryRepository) GetPerson(_ context.Context, id string) (*Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.people[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPerson(p), nil
}

// GetGroup retrieves a group by ID.
func (r *InMemoryRepository) GetGroup(_ context.Context, id string) (*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGroup(g), nil
}

// ListPeople returns all stored people.
func (r *InMemoryRepository) ListPeople(_ context.Context) ([]*Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Person, 0, len(r.people))
	for _, p := range r.people {
		out = append(out, copyPerson(p))
	}
	return out, nil
}

// ListGroups returns all stored groups.
func (r *InMemoryRepository) ListGroups(_ context.Context) ([]*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, copyGroup(g))
	}
	return out, nil
}

// copyPerson creates a deep copy to prevent external mutation of stored state.
func copyPerson(p *Person) *Person {
	if p == nil {
		return nil
	}
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.Interests != nil {
		c.Interests = make(map[string]Interest, len(p.Interests))
		for k, v := range p.Interests {
			c.Interests[k] = v
		}
	}
	if p.Traits != nil {
		c.Traits = make(map[string]float64, len(p.Traits))
		for k, v := range p.Traits {
			c.Traits[k] = v
		}
	}
	if p.Blocked != nil {
		c.Blocked = make(map[string]struct{}, len(p.Blocked))
		for k := range p.Blocked {
			c.Blocked[k] = struct{}{}
		}
	}
	if p.GroupSizePref != nil {
		pref := *p.GroupSizePref
		c.GroupSizePref = &pref
	}
	if p.PreferredTypes != nil {
		c.PreferredTypes = append([]string(nil), p.PreferredTypes...)
	}
	return &c
}

// copyGroup creates a deep copy to prevent external mutation of stored state.
func copyGroup(g *Group) *Group {
	if g == nil {
		return nil
	}
	c := *g
	if g.Location != nil {
		loc := *g.Location
		c.Location = &loc
	}
	if g.Tags != nil {
		c.Tags = make(map[string]Interest, len(g.Tags))
		for k, v := range g.Tags {
			c.Tags[k] = v
		}
	}
	return &c
}
