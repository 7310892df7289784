package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/proximity"
	"github.com/onnwee/kindred/internal/scoring"
	"github.com/onnwee/kindred/internal/tracing"
)

// EngineConfig holds the dependencies and policy for an Engine.
type EngineConfig struct {
	// Entities hydrates full entities before scoring.
	Entities entity.Repository
	// Index retrieves the bounded geographic candidate pool.
	Index proximity.Index
	// Store persists and serves cached results.
	Store ScoreStore
	// Weights for both scoring modes. Zero value uses DefaultWeights.
	Weights Weights
	// Tuning constants. Zero value uses DefaultTuning.
	Tuning Tuning
	// Logger for engine activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
}

// Engine computes, ranks, and caches compatibility results. Scoring is pure
// and deterministic: identical inputs produce identical scores and ordering.
type Engine struct {
	entities entity.Repository
	index    proximity.Index
	store    ScoreStore
	weights  Weights
	tuning   Tuning
	logger   *slog.Logger
	metrics  *Metrics

	// now is injectable for tests; scoring itself never reads the clock.
	now func() time.Time
}

// NewEngine creates a matching engine, failing fast on invalid weight or
// tuning configuration.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Entities == nil {
		return nil, errors.New("entity repository is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("proximity index is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("score store is required")
	}

	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}

	if cfg.Tuning == (Tuning{}) {
		cfg.Tuning = DefaultTuning()
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	return &Engine{
		entities: cfg.Entities,
		index:    cfg.Index,
		store:    cfg.Store,
		weights:  cfg.Weights,
		tuning:   cfg.Tuning,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}, nil
}

// RankOptions controls a Rank call. Zero values fall back to the configured
// tuning defaults.
type RankOptions struct {
	// Limit caps the ranked output (default: Tuning.Limit).
	Limit int
	// MinScore filters out pairs below this overall score
	// (default: Tuning.MinScore; a negative value disables the floor).
	MinScore float64
	// RadiusKm bounds the candidate search radius
	// (default: Tuning.MaxDistanceKm).
	RadiusKm float64
}

// normalize fills zero options from tuning defaults. A negative MinScore is
// an explicit request for an unfiltered ranking and becomes a floor of 0.
func (o RankOptions) normalize(t Tuning) RankOptions {
	if o.Limit <= 0 {
		o.Limit = t.Limit
	}
	if o.MinScore == 0 {
		o.MinScore = t.MinScore
	} else if o.MinScore < 0 {
		o.MinScore = 0
	}
	if o.RadiusKm <= 0 {
		o.RadiusKm = t.MaxDistanceKm
	}
	return o
}

// Rank returns ranked compatibility results for a subject. Valid cached
// results are served first; on a cache miss the pool is fetched, scored,
// persisted, and returned. A subject with no coordinate yields an empty
// list, not an error.
func (e *Engine) Rank(ctx context.Context, subjectID string, kind entity.Kind, opts RankOptions) ([]CompatibilityResult, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "match.rank")
	var err error
	defer func() { endSpan(err) }()

	start := e.now()
	if !kind.Valid() {
		err = fmt.Errorf("rank: %w: %q", entity.ErrUnknownKind, kind)
		return nil, err
	}
	opts = opts.normalize(e.tuning)

	// Cache rows are keyed per pair, not per kind, so a subject's valid rows
	// can mix person and group candidates. Fetch enough to cover both kinds,
	// keep only the requested kind, and treat an empty remainder as a miss.
	cached, err := e.store.QueryValid(ctx, subjectID, 2*opts.Limit)
	if err != nil {
		err = fmt.Errorf("query cached scores: %w", err)
		return nil, err
	}
	matched := cached[:0]
	for _, r := range cached {
		if r.CandidateKind == kind {
			matched = append(matched, r)
		}
	}
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	if len(matched) > 0 {
		e.metrics.ObserveRank(string(kind), SourceCache, e.now().Sub(start).Seconds())
		return matched, nil
	}

	results, err := e.compute(ctx, subjectID, kind, opts)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		inserted, storeErr := e.store.UpsertIfAbsent(ctx, results)
		if storeErr != nil {
			err = fmt.Errorf("persist scores: %w", storeErr)
			return nil, err
		}
		e.metrics.AddCacheInserts(inserted)
	}

	e.metrics.ObserveRank(string(kind), SourceComputed, e.now().Sub(start).Seconds())
	return results, nil
}

// RefreshCache recomputes and persists results for a subject using default
// options. Pairs already present in the cache are skipped by the idempotent
// store, so refreshing a still-cached subject is a no-op for those rows.
func (e *Engine) RefreshCache(ctx context.Context, subjectID string, kind entity.Kind) error {
	ctx, endSpan := tracing.StartSpan(ctx, "match.refresh_cache")
	var err error
	defer func() { endSpan(err) }()

	if !kind.Valid() {
		err = fmt.Errorf("refresh cache: %w: %q", entity.ErrUnknownKind, kind)
		return err
	}

	results, err := e.compute(ctx, subjectID, kind, RankOptions{}.normalize(e.tuning))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	inserted, err := e.store.UpsertIfAbsent(ctx, results)
	if err != nil {
		err = fmt.Errorf("persist scores: %w", err)
		return err
	}
	e.metrics.AddCacheInserts(inserted)

	e.logger.Debug("cache refreshed",
		"subject_id", subjectID,
		"kind", string(kind),
		"computed", len(results),
		"inserted", inserted,
	)
	return nil
}

// compute runs the full scoring pipeline: pool fetch, parallel scoring,
// filtering, sorting, truncation.
func (e *Engine) compute(ctx context.Context, subjectID string, kind entity.Kind, opts RankOptions) ([]CompatibilityResult, error) {
	subject, err := e.entities.GetPerson(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject %s: %w", subjectID, err)
	}

	// Defined business rule, not error suppression: a subject with no
	// coordinate cannot anchor a proximity query.
	if subject.Location == nil {
		e.logger.Debug("subject has no location, returning empty result", "subject_id", subjectID)
		return nil, nil
	}

	pool, err := e.index.FindNearby(ctx, *subject.Location, opts.RadiusKm, kind, proximity.Filters{}, subjectID, e.tuning.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate pool: %w", err)
	}
	// Coarse geohash only; precise coordinates stay out of logs.
	e.logger.Debug("candidate pool fetched",
		"subject_id", subjectID,
		"area", subject.CoarseGeohash(),
		"kind", string(kind),
		"pool", len(pool),
	)
	if len(pool) == 0 {
		return nil, nil
	}

	scored, err := e.scorePool(ctx, subject, pool, kind)
	if err != nil {
		return nil, err
	}

	filtered := scored[:0]
	for _, r := range scored {
		if r.Overall >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Overall != filtered[j].Overall {
			return filtered[i].Overall > filtered[j].Overall
		}
		return filtered[i].CandidateID < filtered[j].CandidateID
	})

	if len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// scorePool scores each pool candidate in parallel. Each candidate is
// independent with no shared mutable state; results land in an indexed slice
// so the output order does not depend on goroutine scheduling.
func (e *Engine) scorePool(ctx context.Context, subject *entity.Person, pool []proximity.Candidate, kind entity.Kind) ([]CompatibilityResult, error) {
	now := e.now()
	slots := make([]*CompatibilityResult, len(pool))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, cand := range pool {
		i, cand := i, cand
		g.Go(func() error {
			r, err := e.scoreCandidate(ctx, subject, cand, kind, now)
			if err != nil {
				return err
			}
			slots[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]CompatibilityResult, 0, len(pool))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// scoreCandidate hydrates one candidate and computes its factor scores.
// Returns (nil, nil) for candidates that must be excluded: stale index
// entries and mutual blocks.
func (e *Engine) scoreCandidate(ctx context.Context, subject *entity.Person, cand proximity.Candidate, kind entity.Kind, now time.Time) (*CompatibilityResult, error) {
	r := &CompatibilityResult{
		SubjectID:     subject.ID,
		CandidateID:   cand.ID,
		CandidateKind: kind,
		DistanceKm:    cand.DistanceKm,
		ComputedAt:    now,
		ExpiresAt:     now.Add(e.tuning.CacheTTL),
	}

	switch kind {
	case entity.KindPerson:
		candidate, err := e.entities.GetPerson(ctx, cand.ID)
		if err == entity.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get candidate %s: %w", cand.ID, err)
		}

		// Blocks exclude mutually at pool level, never as a score penalty.
		if subject.HasBlocked(candidate.ID) || candidate.HasBlocked(subject.ID) {
			return nil, nil
		}

		r.Factors = FactorScores{
			Interest:    scoring.InterestSimilarity(subject.InterestIDs(), candidate.InterestIDs()),
			Proximity:   scoring.ProximityScore(cand.DistanceKm, e.tuning.MaxDistanceKm),
			Personality: scoring.PersonalityMatch(subject.Traits, candidate.Traits, e.tuning.TraitNormalizer),
		}
		r.Overall = scoring.Clamp(e.weights.OverallPerson(r.Factors), 0, 1)
		r.Reasons = e.buildReasons(subject, r, candidate, nil)
		return r, nil

	case entity.KindGroup:
		group, err := e.entities.GetGroup(ctx, cand.ID)
		if err == entity.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get candidate group %s: %w", cand.ID, err)
		}

		var sizePref *[2]int
		if subject.GroupSizePref != nil {
			sizePref = &[2]int{subject.GroupSizePref.Min, subject.GroupSizePref.Max}
		}

		r.Factors = FactorScores{
			Interest:  scoring.InterestSimilarity(subject.InterestIDs(), group.TagIDs()),
			Proximity: scoring.ProximityScore(cand.DistanceKm, e.tuning.MaxDistanceKm),
			Size:      scoring.SizeMatch(group.MemberCount, sizePref),
			Type:      scoring.TypeMatch(group.Type, subject.PreferredTypes),
		}
		r.Overall = scoring.Clamp(e.weights.OverallGroup(r.Factors), 0, 1)
		r.Reasons = e.buildReasons(subject, r, nil, group)
		return r, nil

	default:
		return nil, fmt.Errorf("score candidate: %w: %q", entity.ErrUnknownKind, kind)
	}
}
