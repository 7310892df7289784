// Package entity provides models and repositories for the people and groups
// that participate in compatibility matching.
package entity

import (
	"errors"

	"github.com/onnwee/kindred/internal/geo"
)

// Kind identifies the type of entity a candidate pool is drawn from.
type Kind string

const (
	// KindPerson selects person candidates.
	KindPerson Kind = "person"
	// KindGroup selects group candidates.
	KindGroup Kind = "group"
)

// Valid reports whether k is a recognized entity kind.
func (k Kind) Valid() bool {
	return k == KindPerson || k == KindGroup
}

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ErrUnknownKind is returned when an operation receives an unrecognized kind.
var ErrUnknownKind = errors.New("unknown entity kind")

// Interest is a named interest belonging to a category.
// Set membership is by ID equality; names are for display and match reasons.
type Interest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// SizeRange is an inclusive [Min, Max] bound on group member count.
type SizeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Person represents a matchable person.
// Location and the personality trait vector are optional: a person with no
// coordinate scores 0 on proximity, and a person with no traits scores the
// neutral default on personality.
type Person struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Location *geo.Coordinate `json:"location,omitempty"`

	// Interests keyed by interest ID.
	Interests map[string]Interest `json:"interests,omitempty"`

	// Traits is the personality vector: trait name to value on a 1..10 scale.
	Traits map[string]float64 `json:"traits,omitempty"`

	// Blocked holds the IDs of people this person has blocked. Blocks are
	// enforced mutually at candidate pool level.
	Blocked map[string]struct{} `json:"-"`

	// Group matching preferences.
	GroupSizePref  *SizeRange `json:"group_size_pref,omitempty"`
	PreferredTypes []string   `json:"preferred_types,omitempty"`
}

// Group represents a matchable group.
type Group struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Location    *geo.Coordinate `json:"location,omitempty"`
	Type        string          `json:"type,omitempty"`
	MemberCount int             `json:"member_count"`

	// Tags keyed by tag ID, compared against person interest IDs; the shared
	// interests table makes the ID spaces line up. Names are display only.
	Tags map[string]Interest `json:"tags,omitempty"`
}

// HasBlocked reports whether the person has blocked the given ID.
func (p *Person) HasBlocked(id string) bool {
	if p == nil || p.Blocked == nil {
		return false
	}
	_, ok := p.Blocked[id]
	return ok
}

// CoarseGeohash returns a privacy-coarse geohash of the person's location,
// or the empty string when no location is stored.
func (p *Person) CoarseGeohash() string {
	if p.Location == nil {
		return ""
	}
	return geo.Encode(p.Location.Lat, p.Location.Lng, 5)
}

// CoarseGeohash returns a privacy-coarse geohash of the group's location,
// or the empty string when no location is stored.
func (g *Group) CoarseGeohash() string {
	if g.Location == nil {
		return ""
	}
	return geo.Encode(g.Location.Lat, g.Location.Lng, 5)
}

// InterestIDs returns the set of interest IDs as a map for set operations.
func (p *Person) InterestIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.Interests))
	for id := range p.Interests {
		ids[id] = struct{}{}
	}
	return ids
}

// TagIDs returns the set of tag IDs as a map for set operations.
func (g *Group) TagIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Tags))
	for id := range g.Tags {
		ids[id] = struct{}{}
	}
	return ids
}
