package proximity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/geo"
)

// Geo index key per entity kind.
const (
	personGeoKey = "kindred:geo:person"
	groupGeoKey  = "kindred:geo:group"
)

// RedisIndex implements Index backed by Redis GEO commands. Coordinates are
// registered with Add and queried with GEORADIUS. Group attribute filters are
// applied after the radius query by hydrating the surviving candidates from
// the entity repository, preserving distance order.
type RedisIndex struct {
	client   *redis.Client
	entities entity.Repository
}

// NewRedisIndex creates a Redis-backed proximity index.
func NewRedisIndex(client *redis.Client, entities entity.Repository) *RedisIndex {
	return &RedisIndex{client: client, entities: entities}
}

// geoKey returns the Redis key for a kind, or an error for unknown kinds.
func geoKey(kind entity.Kind) (string, error) {
	switch kind {
	case entity.KindPerson:
		return personGeoKey, nil
	case entity.KindGroup:
		return groupGeoKey, nil
	default:
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownKind, kind)
	}
}

// Add registers or updates an entity's coordinate in the geo index.
// Entities without coordinates are never added, which guarantees the index
// only ever returns locatable candidates.
func (r *RedisIndex) Add(ctx context.Context, kind entity.Kind, id string, loc geo.Coordinate) error {
	key, err := geoKey(kind)
	if err != nil {
		return err
	}
	if err := r.client.GeoAdd(ctx, key, &redis.GeoLocation{
		Name:      id,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd %s %s: %w", key, id, err)
	}
	return nil
}

// Remove deletes an entity from the geo index.
func (r *RedisIndex) Remove(ctx context.Context, kind entity.Kind, id string) error {
	key, err := geoKey(kind)
	if err != nil {
		return err
	}
	if err := r.client.ZRem(ctx, key, id).Err(); err != nil {
		return fmt.Errorf("zrem %s %s: %w", key, id, err)
	}
	return nil
}

// FindNearby queries the geo index for candidates within radiusKm of origin.
func (r *RedisIndex) FindNearby(ctx context.Context, origin geo.Coordinate, radiusKm float64, kind entity.Kind, filters Filters, excludeID string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	key, err := geoKey(kind)
	if err != nil {
		return nil, err
	}

	// No Count cap on the radius query itself: the exclusion and attribute
	// filters run after it, and capping first could starve the result.
	locs, err := r.client.GeoRadius(ctx, key, origin.Lng, origin.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius %s: %w", key, err)
	}

	out := make([]Candidate, 0, len(locs))
	for _, loc := range locs {
		if loc.Name == excludeID {
			continue
		}
		if kind == entity.KindGroup && !filters.IsZero() {
			g, err := r.entities.GetGroup(ctx, loc.Name)
			if err == entity.ErrNotFound {
				// Index entry with no backing row; skip rather than fail.
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("hydrate group %s: %w", loc.Name, err)
			}
			if !filters.MatchesGroup(g) {
				continue
			}
		}
		out = append(out, Candidate{ID: loc.Name, Kind: kind, DistanceKm: loc.Dist})
	}

	// Redis sorts ascending by distance but leaves equal distances in
	// unspecified order; re-sort so both implementations agree.
	sortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
