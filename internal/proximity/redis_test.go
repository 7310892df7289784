package proximity

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/kindred/internal/entity"
)

// newTestRedisIndex starts a miniredis server and returns an index seeded
// from the same repository as the scan tests.
func newTestRedisIndex(t *testing.T) (*RedisIndex, *entity.InMemoryRepository) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Errorf("close redis client: %v", err)
		}
	})

	repo := seedRepo()
	idx := NewRedisIndex(client, repo)

	ctx := context.Background()
	people, err := repo.ListPeople(ctx)
	if err != nil {
		t.Fatalf("list people: %v", err)
	}
	for _, p := range people {
		if p.Location == nil {
			continue
		}
		if err := idx.Add(ctx, entity.KindPerson, p.ID, *p.Location); err != nil {
			t.Fatalf("add person %s: %v", p.ID, err)
		}
	}
	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	for _, g := range groups {
		if g.Location == nil {
			continue
		}
		if err := idx.Add(ctx, entity.KindGroup, g.ID, *g.Location); err != nil {
			t.Fatalf("add group %s: %v", g.ID, err)
		}
	}

	return idx, repo
}

// TestRedisFindNearby verifies the GEO-backed query excludes the requester,
// respects the radius, and orders by ascending distance.
func TestRedisFindNearby(t *testing.T) {
	idx, _ := newTestRedisIndex(t)

	got, err := idx.FindNearby(context.Background(), calgary, 50, entity.KindPerson, Filters{}, "p-origin", 10)
	if err != nil {
		t.Fatalf("FindNearby() error = %v", err)
	}

	want := []string{"p-near", "p-mid"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

// TestRedisFindNearbyGroupFilters verifies attribute filters hydrate and
// narrow group candidates after the radius query.
func TestRedisFindNearbyGroupFilters(t *testing.T) {
	idx, _ := newTestRedisIndex(t)

	got, err := idx.FindNearby(context.Background(), calgary, 50, entity.KindGroup, Filters{GroupType: "games"}, "", 10)
	if err != nil {
		t.Fatalf("FindNearby() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "g-chess" {
		t.Errorf("got %+v, want only g-chess", got)
	}
}

// TestRedisMatchesScanOrdering verifies the two implementations produce the
// same candidate ordering for identical inputs.
func TestRedisMatchesScanOrdering(t *testing.T) {
	redisIdx, repo := newTestRedisIndex(t)
	scanIdx := NewScanIndex(repo)
	ctx := context.Background()

	for _, kind := range []entity.Kind{entity.KindPerson, entity.KindGroup} {
		fromRedis, err := redisIdx.FindNearby(ctx, calgary, 500, kind, Filters{}, "p-origin", 20)
		if err != nil {
			t.Fatalf("redis FindNearby(%s) error = %v", kind, err)
		}
		fromScan, err := scanIdx.FindNearby(ctx, calgary, 500, kind, Filters{}, "p-origin", 20)
		if err != nil {
			t.Fatalf("scan FindNearby(%s) error = %v", kind, err)
		}

		if len(fromRedis) != len(fromScan) {
			t.Fatalf("%s: redis returned %d, scan returned %d", kind, len(fromRedis), len(fromScan))
		}
		for i := range fromRedis {
			if fromRedis[i].ID != fromScan[i].ID {
				t.Errorf("%s position %d: redis %s, scan %s", kind, i, fromRedis[i].ID, fromScan[i].ID)
			}
		}
	}
}

// TestRedisRemove verifies removed entities stop appearing in results.
func TestRedisRemove(t *testing.T) {
	idx, _ := newTestRedisIndex(t)
	ctx := context.Background()

	if err := idx.Remove(ctx, entity.KindPerson, "p-near"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	got, err := idx.FindNearby(ctx, calgary, 50, entity.KindPerson, Filters{}, "p-origin", 10)
	if err != nil {
		t.Fatalf("FindNearby() error = %v", err)
	}
	for _, c := range got {
		if c.ID == "p-near" {
			t.Error("removed candidate still returned")
		}
	}
}
