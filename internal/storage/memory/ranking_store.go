package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// RankingStore is an in-memory append-only observation log.
type RankingStore struct {
	mu           sync.RWMutex
	observations map[string][]ranking.RankingObservation
	ids          map[string]struct{}
}

// NewRankingStore constructs a RankingStore.
func NewRankingStore() *RankingStore {
	return &RankingStore{
		observations: make(map[string][]ranking.RankingObservation),
		ids:          make(map[string]struct{}),
	}
}

// Append records a new observation. Observations are immutable once created.
func (s *RankingStore) Append(_ context.Context, obs ranking.RankingObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[obs.ID]; exists {
		return errors.New("observation already exists")
	}
	s.ids[obs.ID] = struct{}{}
	obs.Competitors = append([]ranking.CompetitorResult(nil), obs.Competitors...)
	obs.Metadata.ValidationWarnings = append([]string(nil), obs.Metadata.ValidationWarnings...)
	s.observations[obs.KeywordID] = append(s.observations[obs.KeywordID], obs)
	return nil
}

// LatestForKeyword returns the most recently appended observation for the
// keyword, if any.
func (s *RankingStore) LatestForKeyword(_ context.Context, keywordID string) (ranking.RankingObservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.observations[keywordID]
	if len(log) == 0 {
		return ranking.RankingObservation{}, false, nil
	}
	return log[len(log)-1], true, nil
}

// All returns every observation for a keyword in append order. Used by tests
// and the one-off check surface.
func (s *RankingStore) All(keywordID string) []ranking.RankingObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ranking.RankingObservation, len(s.observations[keywordID]))
	copy(out, s.observations[keywordID])
	return out
}
