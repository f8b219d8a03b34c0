// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sync"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// KeywordStore is an in-memory ranking.KeywordStore. Keywords are seeded at
// startup (or by tests); the core never mutates them.
type KeywordStore struct {
	mu       sync.RWMutex
	order    []string
	keywords map[string]ranking.Keyword
}

// NewKeywordStore constructs a KeywordStore seeded with the given keywords.
func NewKeywordStore(keywords ...ranking.Keyword) *KeywordStore {
	s := &KeywordStore{keywords: make(map[string]ranking.Keyword)}
	for _, kw := range keywords {
		s.Put(kw)
	}
	return s
}

// Put inserts or replaces a keyword.
func (s *KeywordStore) Put(kw ranking.Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keywords[kw.ID]; !exists {
		s.order = append(s.order, kw.ID)
	}
	s.keywords[kw.ID] = kw
}

// Delete removes a keyword, if present.
func (s *KeywordStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keywords[id]; !exists {
		return
	}
	delete(s.keywords, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ListActive returns the active keywords in insertion order.
func (s *KeywordStore) ListActive(_ context.Context) ([]ranking.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ranking.Keyword, 0, len(s.order))
	for _, id := range s.order {
		if kw := s.keywords[id]; kw.IsActive {
			out = append(out, kw)
		}
	}
	return out, nil
}

// Get fetches a keyword by ID.
func (s *KeywordStore) Get(_ context.Context, id string) (ranking.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kw, ok := s.keywords[id]
	if !ok {
		return ranking.Keyword{}, ranking.ErrKeywordNotFound
	}
	return kw, nil
}
