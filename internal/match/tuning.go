package match

import (
	"errors"
	"fmt"
	"time"
)

// Tuning errors.
var (
	// ErrInvalidTuning is returned when a tuning value is out of range.
	ErrInvalidTuning = errors.New("invalid tuning value")
)

// Tuning holds the named, product-tuned matching constants. The apparent
// inconsistencies here — partial credit of 0.5 for size/type mismatch, the
// proximity reason keying off raw distance while the score uses the
// normalized value — are deliberate policy carried as configuration; do not
// "correct" them without product confirmation.
type Tuning struct {
	// MaxDistanceKm is the distance at which the proximity score reaches 0.
	// A single value is shared by both scoring modes; splitting it per mode
	// is an open product question.
	MaxDistanceKm float64 `koanf:"max_distance_km"`

	// TraitNormalizer is the maximum possible difference on the personality
	// trait scale.
	TraitNormalizer float64 `koanf:"trait_normalizer"`

	// MinScore is the default minimum overall score for ranked output.
	MinScore float64 `koanf:"min_score"`

	// Limit is the default maximum number of ranked results returned.
	Limit int `koanf:"limit"`

	// PoolSize caps the candidate superset fetched before scoring. This
	// bounds compute cost and can exclude a true top-K match outside the
	// pool; the tradeoff is intentional.
	PoolSize int `koanf:"pool_size"`

	// CacheTTL is how long cached results stay readable.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// InterestReasonThreshold is the interest similarity a pair must exceed
	// for a shared-interests reason.
	InterestReasonThreshold float64 `koanf:"interest_reason_threshold"`

	// ProximityReasonKm is the raw distance below which a close-proximity
	// reason is attached. Raw distance, not the normalized proximity score.
	ProximityReasonKm float64 `koanf:"proximity_reason_km"`

	// PersonalityReasonThreshold is the personality match a pair must exceed
	// for a similar-personality reason.
	PersonalityReasonThreshold float64 `koanf:"personality_reason_threshold"`

	// MaxSharedInterestReasons caps the number of shared interest names
	// listed in a shared-interests reason.
	MaxSharedInterestReasons int `koanf:"max_shared_interest_reasons"`
}

// DefaultTuning returns the default matching constants.
func DefaultTuning() Tuning {
	return Tuning{
		MaxDistanceKm:              50,
		TraitNormalizer:            9,
		MinScore:                   0.3,
		Limit:                      20,
		PoolSize:                   200,
		CacheTTL:                   24 * time.Hour,
		InterestReasonThreshold:    0.6,
		ProximityReasonKm:          10,
		PersonalityReasonThreshold: 0.7,
		MaxSharedInterestReasons:   3,
	}
}

// Validate checks tuning values are in range. Configuration errors fail
// fast at engine construction rather than degrading silently.
func (t Tuning) Validate() error {
	if t.MaxDistanceKm <= 0 {
		return fmt.Errorf("%w: max_distance_km must be > 0 (got %f)", ErrInvalidTuning, t.MaxDistanceKm)
	}
	if t.TraitNormalizer <= 0 {
		return fmt.Errorf("%w: trait_normalizer must be > 0 (got %f)", ErrInvalidTuning, t.TraitNormalizer)
	}
	if t.MinScore < 0 || t.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0,1] (got %f)", ErrInvalidTuning, t.MinScore)
	}
	if t.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0 (got %d)", ErrInvalidTuning, t.Limit)
	}
	if t.PoolSize <= 0 {
		return fmt.Errorf("%w: pool_size must be > 0 (got %d)", ErrInvalidTuning, t.PoolSize)
	}
	if t.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl must be > 0 (got %s)", ErrInvalidTuning, t.CacheTTL)
	}
	if t.InterestReasonThreshold < 0 || t.InterestReasonThreshold > 1 {
		return fmt.Errorf("%w: interest_reason_threshold must be in [0,1] (got %f)", ErrInvalidTuning, t.InterestReasonThreshold)
	}
	if t.ProximityReasonKm <= 0 {
		return fmt.Errorf("%w: proximity_reason_km must be > 0 (got %f)", ErrInvalidTuning, t.ProximityReasonKm)
	}
	if t.PersonalityReasonThreshold < 0 || t.PersonalityReasonThreshold > 1 {
		return fmt.Errorf("%w: personality_reason_threshold must be in [0,1] (got %f)", ErrInvalidTuning, t.PersonalityReasonThreshold)
	}
	if t.MaxSharedInterestReasons <= 0 {
		return fmt.Errorf("%w: max_shared_interest_reasons must be > 0 (got %d)", ErrInvalidTuning, t.MaxSharedInterestReasons)
	}
	return nil
}
