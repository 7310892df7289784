// Package match implements the compatibility matching engine: weighted
// aggregation of factor scores, match reason generation, ranked retrieval,
// and the TTL-bounded score cache contract.
package match

import (
	"context"
	"time"

	"github.com/onnwee/kindred/internal/entity"
)

// FactorScores holds the named per-factor scores contributing to an overall
// compatibility score. All values lie in [0, 1]. Person candidates populate
// Interest, Proximity, and Personality; group candidates populate Interest,
// Proximity, Size, and Type.
type FactorScores struct {
	Interest    float64 `json:"interest"`
	Proximity   float64 `json:"proximity"`
	Personality float64 `json:"personality,omitempty"`
	Size        float64 `json:"size,omitempty"`
	Type        float64 `json:"type,omitempty"`
}

// ReasonKind tags a match reason category.
type ReasonKind string

const (
	// ReasonSharedInterests lists interests both parties hold.
	ReasonSharedInterests ReasonKind = "shared_interests"
	// ReasonCloseProximity marks candidates within the close-distance cutoff.
	ReasonCloseProximity ReasonKind = "close_proximity"
	// ReasonSimilarPersonality marks high personality closeness.
	ReasonSimilarPersonality ReasonKind = "similar_personality"
	// ReasonSizeFit marks an exact group size preference match.
	ReasonSizeFit ReasonKind = "size_fit"
)

// MatchReason is a human-readable, threshold-triggered explanation attached
// to a result. Reasons are advisory only and never feed back into scoring.
type MatchReason struct {
	Kind  ReasonKind `json:"kind"`
	Value string     `json:"value"`
	Score float64    `json:"score"`
}

// CompatibilityResult is one scored subject/candidate pairing.
// It is readable from the cache only while now < ExpiresAt.
type CompatibilityResult struct {
	ID            string        `json:"id,omitempty"`
	SubjectID     string        `json:"subject_id"`
	CandidateID   string        `json:"candidate_id"`
	CandidateKind entity.Kind   `json:"candidate_kind"`
	DistanceKm    float64       `json:"distance_km"`
	Factors       FactorScores  `json:"factors"`
	Overall       float64       `json:"overall"`
	Reasons       []MatchReason `json:"reasons,omitempty"`
	ComputedAt    time.Time     `json:"computed_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// Valid reports whether the result is still readable at the given time.
func (r *CompatibilityResult) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// ScoreStore persists computed compatibility results under a TTL.
type ScoreStore interface {
	// UpsertIfAbsent inserts rows idempotently-by-skip: a row whose
	// (subject_id, candidate_id) pair already exists is discarded regardless
	// of its expiry state, never merged or overwritten. A repeated refresh
	// while an old entry is physically present therefore does not update it;
	// this is the chosen policy, trading freshness for lock-free concurrent
	// refreshes. Returns the number of rows actually inserted.
	UpsertIfAbsent(ctx context.Context, rows []CompatibilityResult) (int, error)

	// QueryValid returns rows with expires_at > now for the subject, ordered
	// by overall score descending, up to limit. An empty result is not an
	// error; it signals the caller to recompute. Expiry is enforced by this
	// read-time predicate, never by relying on physical deletion.
	QueryValid(ctx context.Context, subjectID string, limit int) ([]CompatibilityResult, error)
}
