package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// KeywordStore reads tracked keywords. The admin surface that writes them is
// outside this service.
type KeywordStore struct {
	db DB
}

// NewKeywordStore creates a KeywordStore.
func NewKeywordStore(db DB) *KeywordStore {
	return &KeywordStore{db: db}
}

// ListActive returns all active keywords, oldest first.
func (s *KeywordStore) ListActive(ctx context.Context) ([]ranking.Keyword, error) {
	query := `
		SELECT id, text, is_active
		FROM keywords
		WHERE is_active
		ORDER BY created_at ASC, id ASC;
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active keywords: %w", err)
	}
	defer rows.Close()

	var keywords []ranking.Keyword
	for rows.Next() {
		var kw ranking.Keyword
		if err := rows.Scan(&kw.ID, &kw.Text, &kw.IsActive); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}
	return keywords, nil
}

// Get fetches a keyword by ID.
func (s *KeywordStore) Get(ctx context.Context, id string) (ranking.Keyword, error) {
	query := `SELECT id, text, is_active FROM keywords WHERE id = $1;`
	var kw ranking.Keyword
	err := s.db.QueryRow(ctx, query, id).Scan(&kw.ID, &kw.Text, &kw.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ranking.Keyword{}, ranking.ErrKeywordNotFound
		}
		return ranking.Keyword{}, fmt.Errorf("query keyword: %w", err)
	}
	return kw, nil
}
