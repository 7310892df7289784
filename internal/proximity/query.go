// Package proximity provides geographic candidate retrieval for the matching
// engine. Two interchangeable implementations are provided: a Redis GEO-backed
// index for production and a pure haversine full scan that serves as the
// fallback and reference implementation. Both produce identical orderings for
// the same inputs: ascending distance, ties broken by candidate ID.
package proximity

import (
	"context"
	"sort"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/geo"
)

// Candidate is an entity ID annotated with its distance from the query origin.
type Candidate struct {
	ID         string      `json:"id"`
	Kind       entity.Kind `json:"kind"`
	DistanceKm float64     `json:"distance_km"`
}

// Filters narrows group candidates by declared attributes. Filters never
// change the relative distance ordering of the surviving candidates.
// The zero value applies no filtering. Person candidates are not affected;
// all filter fields describe group attributes.
type Filters struct {
	// GroupType, when non-empty, requires an exact group type match.
	GroupType string

	// Tags, when non-empty, requires the group to carry at least one of the
	// named tags.
	Tags []string

	// MinSize and MaxSize bound member count when > 0.
	MinSize int
	MaxSize int
}

// IsZero reports whether no filtering is requested.
func (f Filters) IsZero() bool {
	return f.GroupType == "" && len(f.Tags) == 0 && f.MinSize == 0 && f.MaxSize == 0
}

// MatchesGroup reports whether a group survives the filters.
func (f Filters) MatchesGroup(g *entity.Group) bool {
	if f.GroupType != "" && g.Type != f.GroupType {
		return false
	}
	if f.MinSize > 0 && g.MemberCount < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && g.MemberCount > f.MaxSize {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, tag := range g.Tags {
				if tag.Name == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Index retrieves candidates near an origin point.
type Index interface {
	// FindNearby returns candidates of the given kind within radiusKm of
	// origin, ascending by distance with ties broken by ID, capped at limit.
	// The entity identified by excludeID is never returned. Candidates with
	// no stored coordinate are never returned.
	FindNearby(ctx context.Context, origin geo.Coordinate, radiusKm float64, kind entity.Kind, filters Filters, excludeID string, limit int) ([]Candidate, error)
}

// sortCandidates orders by ascending distance, ties by ID ascending.
// Both implementations share this so their orderings agree.
func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DistanceKm != cs[j].DistanceKm {
			return cs[i].DistanceKm < cs[j].DistanceKm
		}
		return cs[i].ID < cs[j].ID
	})
}
