// Package cache provides score persistence implementations for the matching
// engine: an in-memory store for tests and development, and a Postgres store
// for production. Both enforce the idempotent-by-skip write policy and
// read-time TTL validity of match.ScoreStore.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/kindred/internal/match"
)

// InMemoryStore implements match.ScoreStore with in-memory storage.
type InMemoryStore struct {
	mu sync.RWMutex
	// rows keyed by subject ID, then candidate ID.
	rows map[string]map[string]match.CompatibilityResult

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewInMemoryStore creates a new in-memory score store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows: make(map[string]map[string]match.CompatibilityResult),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock. Test use only.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// UpsertIfAbsent inserts rows whose (subject, candidate) pair is not already
// present. Existing rows are left untouched regardless of expiry state; the
// first write wins until the row is physically removed.
func (s *InMemoryStore) UpsertIfAbsent(_ context.Context, rows []match.CompatibilityResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range rows {
		bySubject, ok := s.rows[r.SubjectID]
		if !ok {
			bySubject = make(map[string]match.CompatibilityResult)
			s.rows[r.SubjectID] = bySubject
		}
		if _, exists := bySubject[r.CandidateID]; exists {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		bySubject[r.CandidateID] = r
		inserted++
	}
	return inserted, nil
}

// QueryValid returns unexpired rows for the subject ordered by overall score
// descending with ties broken by candidate ID, up to limit.
func (s *InMemoryStore) QueryValid(_ context.Context, subjectID string, limit int) ([]match.CompatibilityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []match.CompatibilityResult
	for _, r := range s.rows[subjectID] {
		if r.Valid(now) {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].CandidateID < out[j].CandidateID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SweepExpired deletes physically expired rows and returns the count removed.
// Purely a storage hygiene helper: correctness never depends on it, since
// QueryValid enforces expiry at read time.
func (s *InMemoryStore) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for subjectID, bySubject := range s.rows {
		for candidateID, r := range bySubject {
			if !r.Valid(now) {
				delete(bySubject, candidateID)
				removed++
			}
		}
		if len(bySubject) == 0 {
			delete(s.rows, subjectID)
		}
	}
	return removed, nil
}
