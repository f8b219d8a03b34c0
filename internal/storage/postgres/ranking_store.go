package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// RankingStore implements the append-only observation log on Postgres.
// Competitors and metadata are stored as JSONB; observations are never
// updated or deleted.
type RankingStore struct {
	db DB
}

// NewRankingStore creates a RankingStore.
func NewRankingStore(db DB) *RankingStore {
	return &RankingStore{db: db}
}

// Append inserts a new observation row.
func (s *RankingStore) Append(ctx context.Context, obs ranking.RankingObservation) error {
	competitors, err := json.Marshal(obs.Competitors)
	if err != nil {
		return fmt.Errorf("marshal competitors: %w", err)
	}
	metadata, err := json.Marshal(obs.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		INSERT INTO ranking_observations
			(id, keyword_id, keyword_text, observed_at, position, resolved_url, competitors, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = s.db.Exec(ctx, query,
		obs.ID,
		obs.KeywordID,
		obs.KeywordText,
		obs.ObservedAt,
		obs.Position,
		obs.ResolvedURL,
		competitors,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// LatestForKeyword returns the most recent observation for the keyword.
func (s *RankingStore) LatestForKeyword(ctx context.Context, keywordID string) (ranking.RankingObservation, bool, error) {
	query := `
		SELECT id, keyword_id, keyword_text, observed_at, position, resolved_url, competitors, metadata
		FROM ranking_observations
		WHERE keyword_id = $1
		ORDER BY observed_at DESC
		LIMIT 1;
	`
	var (
		obs         ranking.RankingObservation
		competitors []byte
		metadata    []byte
	)
	err := s.db.QueryRow(ctx, query, keywordID).Scan(
		&obs.ID,
		&obs.KeywordID,
		&obs.KeywordText,
		&obs.ObservedAt,
		&obs.Position,
		&obs.ResolvedURL,
		&competitors,
		&metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ranking.RankingObservation{}, false, nil
		}
		return ranking.RankingObservation{}, false, fmt.Errorf("query latest observation: %w", err)
	}
	if len(competitors) > 0 {
		if err := json.Unmarshal(competitors, &obs.Competitors); err != nil {
			return ranking.RankingObservation{}, false, fmt.Errorf("unmarshal competitors: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &obs.Metadata); err != nil {
			return ranking.RankingObservation{}, false, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return obs, true, nil
}
