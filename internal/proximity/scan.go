package proximity

import (
	"context"
	"fmt"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/geo"
)

// ScanIndex implements Index with a pure haversine computation over a full
// entity scan. It is the reference implementation the Redis-backed index is
// validated against, and the fallback when no geospatial store is available.
type ScanIndex struct {
	entities entity.Repository
}

// NewScanIndex creates a full-scan proximity index over the given repository.
func NewScanIndex(entities entity.Repository) *ScanIndex {
	return &ScanIndex{entities: entities}
}

// FindNearby scans all entities of the requested kind and returns those
// within radiusKm, ascending by distance with ties broken by ID.
func (s *ScanIndex) FindNearby(ctx context.Context, origin geo.Coordinate, radiusKm float64, kind entity.Kind, filters Filters, excludeID string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []Candidate

	switch kind {
	case entity.KindPerson:
		people, err := s.entities.ListPeople(ctx)
		if err != nil {
			return nil, fmt.Errorf("list people: %w", err)
		}
		for _, p := range people {
			if p.ID == excludeID || p.Location == nil {
				continue
			}
			d := geo.DistanceKm(origin, *p.Location)
			if d > radiusKm {
				continue
			}
			out = append(out, Candidate{ID: p.ID, Kind: entity.KindPerson, DistanceKm: d})
		}

	case entity.KindGroup:
		groups, err := s.entities.ListGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			if g.ID == excludeID || g.Location == nil {
				continue
			}
			if !filters.MatchesGroup(g) {
				continue
			}
			d := geo.DistanceKm(origin, *g.Location)
			if d > radiusKm {
				continue
			}
			out = append(out, Candidate{ID: g.ID, Kind: entity.KindGroup, DistanceKm: d})
		}

	default:
		return nil, fmt.Errorf("find nearby: %w: %q", entity.ErrUnknownKind, kind)
	}

	sortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
