package match

import (
	"context"
	"strings"
	"testing"

	"github.com/onnwee/kindred/internal/entity"
)

func named(pairs ...string) map[string]entity.Interest {
	m := make(map[string]entity.Interest, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = entity.Interest{ID: pairs[i], Name: pairs[i+1]}
	}
	return m
}

func TestSharedInterestNamesSortedAndCapped(t *testing.T) {
	a := named("d", "Drawing", "a", "Archery", "c", "Climbing", "b", "Baking")
	b := named("d", "Drawing", "a", "Archery", "c", "Climbing", "b", "Baking", "e", "Escape Rooms")

	got := sharedInterestNames(a, b, 3)
	want := []string{"Archery", "Baking", "Climbing"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestSharedInterestNamesDisjoint(t *testing.T) {
	got := sharedInterestNames(named("a", "Archery"), named("b", "Baking"), 3)
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

// TestReasonsSharedInterestsAndPersonality verifies the high-overlap path:
// identical interests and identical traits produce shared-interests and
// similar-personality reasons alongside close proximity.
func TestReasonsSharedInterestsAndPersonality(t *testing.T) {
	repo := entity.NewInMemoryRepository()
	traits := map[string]float64{"openness": 8, "extraversion": 4}
	repo.PutPerson(&entity.Person{
		ID: "alice", Location: &calgary,
		Interests: named("hiking", "Hiking", "chess", "Chess"),
		Traits:    traits,
	})
	repo.PutPerson(&entity.Person{
		ID: "bob", Location: &calgary,
		Interests: named("hiking", "Hiking", "chess", "Chess"),
		Traits:    traits,
	})

	e := newTestEngine(t, repo, newMemStore())
	got, err := e.Rank(context.Background(), "alice", entity.KindPerson, RankOptions{})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}

	byKind := map[ReasonKind]MatchReason{}
	for _, reason := range got[0].Reasons {
		byKind[reason.Kind] = reason
	}

	shared, ok := byKind[ReasonSharedInterests]
	if !ok {
		t.Fatal("missing shared_interests reason at similarity 1.0")
	}
	if shared.Value != "Chess, Hiking" {
		t.Errorf("shared interests value = %q, want sorted display names", shared.Value)
	}
	if shared.Score != 1.0 {
		t.Errorf("shared interests score = %f, want 1.0", shared.Score)
	}

	if _, ok := byKind[ReasonSimilarPersonality]; !ok {
		t.Error("missing similar_personality reason for identical traits")
	}

	prox, ok := byKind[ReasonCloseProximity]
	if !ok {
		t.Fatal("missing close_proximity reason at distance 0")
	}
	if !strings.HasSuffix(prox.Value, "km away") {
		t.Errorf("proximity value = %q, want distance description", prox.Value)
	}
}

// TestReasonsNoSizeFitOnPartialCredit verifies a group outside the preferred
// size range gets partial credit but no size-fit reason.
func TestReasonsNoSizeFitOnPartialCredit(t *testing.T) {
	repo := entity.NewInMemoryRepository()
	repo.PutPerson(&entity.Person{
		ID: "alice", Location: &calgary,
		Interests:     named("hiking", "Hiking"),
		GroupSizePref: &entity.SizeRange{Min: 5, Max: 20},
	})
	repo.PutGroup(&entity.Group{
		ID: "megagroup", Location: &calgary, Type: "outdoors", MemberCount: 500,
		Tags: named("hiking", "Hiking"),
	})

	e := newTestEngine(t, repo, newMemStore())
	got, err := e.Rank(context.Background(), "alice", entity.KindGroup, RankOptions{})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}

	if got[0].Factors.Size != 0.5 {
		t.Errorf("size factor = %f, want partial credit 0.5", got[0].Factors.Size)
	}
	for _, reason := range got[0].Reasons {
		if reason.Kind == ReasonSizeFit {
			t.Error("size_fit reason present for out-of-range member count")
		}
	}
}
