package match

import (
	"errors"
	"fmt"
	"math"
)

// WeightEpsilon is the tolerance when validating that a weight set sums to 1.
const WeightEpsilon = 1e-6

// ErrInvalidWeights is returned when a configured weight set does not sum to
// 1.0 within WeightEpsilon. Weight configuration errors abort engine
// construction; weights are never silently renormalized.
var ErrInvalidWeights = errors.New("weights must sum to 1.0")

// PersonWeights are the factor weights for person↔person scoring.
type PersonWeights struct {
	Interest    float64 `json:"interest" koanf:"interest"`
	Proximity   float64 `json:"proximity" koanf:"proximity"`
	Personality float64 `json:"personality" koanf:"personality"`
}

// GroupWeights are the factor weights for person↔group scoring.
type GroupWeights struct {
	Interest  float64 `json:"interest" koanf:"interest"`
	Proximity float64 `json:"proximity" koanf:"proximity"`
	Size      float64 `json:"size" koanf:"size"`
	Type      float64 `json:"type" koanf:"type"`
}

// Weights holds both scoring mode weight sets.
type Weights struct {
	Person PersonWeights `json:"person" koanf:"person"`
	Group  GroupWeights  `json:"group" koanf:"group"`
}

// DefaultWeights returns the product-tuned default weight configuration.
//
// Person formula: overall = interest*0.5 + proximity*0.3 + personality*0.2
// Group formula:  overall = interest*0.4 + proximity*0.3 + size*0.2 + type*0.1
func DefaultWeights() Weights {
	return Weights{
		Person: PersonWeights{
			Interest:    0.5,
			Proximity:   0.3,
			Personality: 0.2,
		},
		Group: GroupWeights{
			Interest:  0.4,
			Proximity: 0.3,
			Size:      0.2,
			Type:      0.1,
		},
	}
}

// Validate checks that both weight sets sum to 1.0 within WeightEpsilon.
func (w Weights) Validate() error {
	personSum := w.Person.Interest + w.Person.Proximity + w.Person.Personality
	if math.Abs(personSum-1.0) > WeightEpsilon {
		return fmt.Errorf("%w: person weights sum to %f", ErrInvalidWeights, personSum)
	}

	groupSum := w.Group.Interest + w.Group.Proximity + w.Group.Size + w.Group.Type
	if math.Abs(groupSum-1.0) > WeightEpsilon {
		return fmt.Errorf("%w: group weights sum to %f", ErrInvalidWeights, groupSum)
	}

	return nil
}

// OverallPerson aggregates person↔person factor scores.
func (w Weights) OverallPerson(f FactorScores) float64 {
	return f.Interest*w.Person.Interest +
		f.Proximity*w.Person.Proximity +
		f.Personality*w.Person.Personality
}

// OverallGroup aggregates person↔group factor scores.
func (w Weights) OverallGroup(f FactorScores) float64 {
	return f.Interest*w.Group.Interest +
		f.Proximity*w.Group.Proximity +
		f.Size*w.Group.Size +
		f.Type*w.Group.Type
}
