package cache

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/match"
)

func result(subject, candidate string, overall float64, expiresAt time.Time) match.CompatibilityResult {
	return match.CompatibilityResult{
		SubjectID:     subject,
		CandidateID:   candidate,
		CandidateKind: entity.KindPerson,
		Overall:       overall,
		ComputedAt:    expiresAt.Add(-24 * time.Hour),
		ExpiresAt:     expiresAt,
	}
}

// TestUpsertIfAbsentIdempotent verifies a second store for the same pair
// leaves exactly one row with the first call's values preserved.
func TestUpsertIfAbsentIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	first := result("alice", "bob", 0.65, expires)
	n, err := store.UpsertIfAbsent(ctx, []match.CompatibilityResult{first})
	if err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("first insert count = %d, want 1", n)
	}

	// Second write with a different score must be discarded, not merged.
	second := result("alice", "bob", 0.99, expires.Add(time.Hour))
	n, err = store.UpsertIfAbsent(ctx, []match.CompatibilityResult{second})
	if err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second insert count = %d, want 0", n)
	}

	rows, err := store.QueryValid(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("QueryValid() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Overall != 0.65 {
		t.Errorf("overall = %f, want first write's 0.65", rows[0].Overall)
	}
}

// TestUpsertIfAbsentSkipsEvenWhenExpired verifies the skip applies regardless
// of expiry state: a physically present expired row still blocks new writes.
func TestUpsertIfAbsentSkipsEvenWhenExpired(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	expired := result("alice", "bob", 0.5, time.Now().Add(-time.Hour))
	if _, err := store.UpsertIfAbsent(ctx, []match.CompatibilityResult{expired}); err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}

	fresh := result("alice", "bob", 0.9, time.Now().Add(time.Hour))
	n, err := store.UpsertIfAbsent(ctx, []match.CompatibilityResult{fresh})
	if err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}
	if n != 0 {
		t.Errorf("insert over expired row count = %d, want 0 (skip regardless of expiry)", n)
	}
}

// TestQueryValidExcludesExpired verifies an expired row never appears even
// though it is still physically present in storage.
func TestQueryValidExcludesExpired(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rows := []match.CompatibilityResult{
		result("alice", "bob", 0.8, time.Now().Add(time.Hour)),
		result("alice", "carol", 0.9, time.Now().Add(-time.Minute)),
	}
	if _, err := store.UpsertIfAbsent(ctx, rows); err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}

	valid, err := store.QueryValid(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("QueryValid() error = %v", err)
	}
	if len(valid) != 1 || valid[0].CandidateID != "bob" {
		t.Errorf("got %+v, want only unexpired bob row", valid)
	}
}

// TestQueryValidOrderingAndLimit verifies descending score order with ID
// tie-break and limit truncation.
func TestQueryValidOrderingAndLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	rows := []match.CompatibilityResult{
		result("alice", "dan", 0.5, expires),
		result("alice", "bob", 0.9, expires),
		result("alice", "carol", 0.9, expires),
		result("alice", "eve", 0.4, expires),
	}
	if _, err := store.UpsertIfAbsent(ctx, rows); err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}

	valid, err := store.QueryValid(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("QueryValid() error = %v", err)
	}

	want := []string{"bob", "carol", "dan"}
	if len(valid) != len(want) {
		t.Fatalf("got %d rows, want %d", len(valid), len(want))
	}
	for i, id := range want {
		if valid[i].CandidateID != id {
			t.Errorf("position %d = %s, want %s", i, valid[i].CandidateID, id)
		}
	}
}

// TestQueryValidEmptyIsNotError verifies an empty cache yields an empty
// result, signaling recompute, never an error.
func TestQueryValidEmptyIsNotError(t *testing.T) {
	store := NewInMemoryStore()

	valid, err := store.QueryValid(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("QueryValid() error = %v, want nil", err)
	}
	if len(valid) != 0 {
		t.Errorf("got %d rows, want 0", len(valid))
	}
}

// TestSweepExpired verifies the hygiene sweep removes only expired rows.
func TestSweepExpired(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rows := []match.CompatibilityResult{
		result("alice", "bob", 0.8, time.Now().Add(time.Hour)),
		result("alice", "carol", 0.9, time.Now().Add(-time.Minute)),
		result("dan", "eve", 0.7, time.Now().Add(-time.Minute)),
	}
	if _, err := store.UpsertIfAbsent(ctx, rows); err != nil {
		t.Fatalf("UpsertIfAbsent() error = %v", err)
	}

	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	valid, err := store.QueryValid(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("QueryValid() error = %v", err)
	}
	if len(valid) != 1 || valid[0].CandidateID != "bob" {
		t.Errorf("got %+v, want only bob row surviving", valid)
	}
}
