package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/kindred/internal/entity"
)

// sharedInterestNames returns the display names of interests present in both
// sets, sorted for deterministic output, capped at max.
func sharedInterestNames(a, b map[string]entity.Interest, max int) []string {
	var names []string
	for id, interest := range a {
		if _, ok := b[id]; ok {
			names = append(names, interest.Name)
		}
	}
	sort.Strings(names)
	if len(names) > max {
		names = names[:max]
	}
	return names
}

// buildReasons generates the advisory reason list for a scored pairing.
// Thresholds come from tuning, not from the scoring weights, and reasons
// never feed back into the overall score.
func (e *Engine) buildReasons(subject *entity.Person, r *CompatibilityResult, candPerson *entity.Person, candGroup *entity.Group) []MatchReason {
	var reasons []MatchReason

	// Shared interests: requires both a non-empty intersection and the
	// similarity threshold to be exceeded.
	var candidateSet map[string]entity.Interest
	if candPerson != nil {
		candidateSet = candPerson.Interests
	} else if candGroup != nil {
		candidateSet = candGroup.Tags
	}
	if r.Factors.Interest > e.tuning.InterestReasonThreshold {
		shared := sharedInterestNames(subject.Interests, candidateSet, e.tuning.MaxSharedInterestReasons)
		if len(shared) > 0 {
			reasons = append(reasons, MatchReason{
				Kind:  ReasonSharedInterests,
				Value: strings.Join(shared, ", "),
				Score: r.Factors.Interest,
			})
		}
	}

	// Close proximity keys off raw distance, not the normalized score.
	if r.DistanceKm < e.tuning.ProximityReasonKm {
		reasons = append(reasons, MatchReason{
			Kind:  ReasonCloseProximity,
			Value: fmt.Sprintf("%.1f km away", r.DistanceKm),
			Score: r.Factors.Proximity,
		})
	}

	if candPerson != nil && r.Factors.Personality > e.tuning.PersonalityReasonThreshold {
		reasons = append(reasons, MatchReason{
			Kind:  ReasonSimilarPersonality,
			Value: "similar personality",
			Score: r.Factors.Personality,
		})
	}

	// Size fit only on an exact preference range match, never on the
	// partial-credit fallback.
	if candGroup != nil && r.Factors.Size == 1 && subject.GroupSizePref != nil {
		reasons = append(reasons, MatchReason{
			Kind:  ReasonSizeFit,
			Value: fmt.Sprintf("%d members fits your preferred group size", candGroup.MemberCount),
			Score: r.Factors.Size,
		})
	}

	return reasons
}
