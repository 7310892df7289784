// Package scoring provides the pure factor score calculations used by
// compatibility matching. All functions are side-effect free, deterministic,
// and return values in the closed interval [0, 1]; out-of-range upstream data
// is clamped rather than rejected.
package scoring

import "math"

// Default tuning constants. These are product-tuned policy values; the
// matching configuration carries them explicitly so no call site depends on
// these literals directly.
const (
	// DefaultMaxDistanceKm is the distance at which proximity score reaches 0.
	DefaultMaxDistanceKm = 50.0

	// DefaultTraitNormalizer is the maximum possible difference on the
	// personality trait scale (values range 1..10).
	DefaultTraitNormalizer = 9.0

	// NeutralPersonality is the score used when either side has no
	// personality data.
	NeutralPersonality = 0.5

	// PartialCredit is the score for size/type preference mismatches.
	// A mismatch is penalized, not disqualifying.
	PartialCredit = 0.5
)

// Clamp bounds v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InterestSimilarity computes the Jaccard index |A∩B| / |A∪B| over two ID
// sets. Defined as 0 when the union is empty. Symmetric in its arguments.
func InterestSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ProximityScore converts a distance into a linear closeness score:
// clamp(1 - distanceKm/maxKm, 0, 1). Callers must score 0 directly when
// either coordinate is absent; this function only handles known distances.
func ProximityScore(distanceKm, maxKm float64) float64 {
	if maxKm <= 0 {
		return 0
	}
	return Clamp(1-distanceKm/maxKm, 0, 1)
}

// PersonalityMatch computes trait closeness between two personality vectors:
// the mean of 1 - |a-b|/normalizer over traits present in both vectors.
// Returns NeutralPersonality when either side has no traits or the vectors
// share no traits.
func PersonalityMatch(traitsA, traitsB map[string]float64, normalizer float64) float64 {
	if len(traitsA) == 0 || len(traitsB) == 0 || normalizer <= 0 {
		return NeutralPersonality
	}

	var sum float64
	shared := 0
	for trait, a := range traitsA {
		b, ok := traitsB[trait]
		if !ok {
			continue
		}
		sum += Clamp(1-math.Abs(a-b)/normalizer, 0, 1)
		shared++
	}
	if shared == 0 {
		return NeutralPersonality
	}
	return sum / float64(shared)
}

// SizeMatch scores how a group's current size fits an inclusive preferred
// range: 1 inside the range, PartialCredit outside it. A nil preference
// means no constraint and scores 1.
func SizeMatch(currentSize int, pref *[2]int) float64 {
	if pref == nil {
		return 1
	}
	if currentSize >= pref[0] && currentSize <= pref[1] {
		return 1
	}
	return PartialCredit
}

// TypeMatch scores a candidate group type against preferred types: 1 when no
// preference is declared or the type is preferred, PartialCredit otherwise.
func TypeMatch(candidateType string, preferredTypes []string) float64 {
	if len(preferredTypes) == 0 {
		return 1
	}
	for _, t := range preferredTypes {
		if t == candidateType {
			return 1
		}
	}
	return PartialCredit
}
