package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// DefaultLease matches the assumed external invocation ceiling.
const DefaultLease = 60 * time.Second

// UnitStore implements ranking.UnitStore on Postgres. The claim uses a
// conditional update with FOR UPDATE SKIP LOCKED plus a lease column so
// overlapping invocations never hold the same unit.
type UnitStore struct {
	db    DB
	lease time.Duration
}

// NewUnitStore creates a UnitStore with the default claim lease.
func NewUnitStore(db DB) *UnitStore {
	return &UnitStore{db: db, lease: DefaultLease}
}

// Create inserts a new pending unit.
func (s *UnitStore) Create(ctx context.Context, unit ranking.ProcessingUnit) error {
	query := `
		INSERT INTO ranking_units
			(id, keyword_ids, status, processed_count, error_count, total_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := s.db.Exec(ctx, query,
		unit.ID,
		unit.KeywordIDs,
		unit.Status,
		unit.ProcessedCount,
		unit.ErrorCount,
		unit.TotalCount,
		unit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

// ClaimOldest atomically claims the oldest claimable pending/processing unit.
func (s *UnitStore) ClaimOldest(ctx context.Context, now time.Time) (ranking.ProcessingUnit, bool, error) {
	query := `
		UPDATE ranking_units
		SET status = 'processing',
		    started_at = COALESCE(started_at, $1),
		    lease_expires_at = $2
		WHERE id = (
			SELECT id FROM ranking_units
			WHERE status IN ('pending', 'processing')
			  AND (lease_expires_at IS NULL OR lease_expires_at <= $1)
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, keyword_ids, status, processed_count, error_count,
		          total_count, created_at, started_at, completed_at;
	`
	var unit ranking.ProcessingUnit
	err := s.db.QueryRow(ctx, query, now, now.Add(s.lease)).Scan(
		&unit.ID,
		&unit.KeywordIDs,
		&unit.Status,
		&unit.ProcessedCount,
		&unit.ErrorCount,
		&unit.TotalCount,
		&unit.CreatedAt,
		&unit.StartedAt,
		&unit.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ranking.ProcessingUnit{}, false, nil
		}
		return ranking.ProcessingUnit{}, false, fmt.Errorf("claim unit: %w", err)
	}
	return unit, true, nil
}

// SaveProgress persists the counters for a claimed unit.
func (s *UnitStore) SaveProgress(ctx context.Context, id string, processed, errored int) error {
	query := `
		UPDATE ranking_units
		SET processed_count = $2, error_count = $3
		WHERE id = $1 AND processed_count <= total_count;
	`
	tag, err := s.db.Exec(ctx, query, id, processed, errored)
	if err != nil {
		return fmt.Errorf("save unit progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("unit not found")
	}
	return nil
}

// Release clears the claim lease so the unit is claimable again.
func (s *UnitStore) Release(ctx context.Context, id string) error {
	query := `UPDATE ranking_units SET lease_expires_at = NULL WHERE id = $1;`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release unit: %w", err)
	}
	return nil
}

// Complete transitions a unit to its terminal completed state.
func (s *UnitStore) Complete(ctx context.Context, id string, at time.Time) error {
	return s.finish(ctx, id, ranking.UnitStatusCompleted, at)
}

// Fail transitions a unit to its terminal failed state.
func (s *UnitStore) Fail(ctx context.Context, id string, at time.Time) error {
	return s.finish(ctx, id, ranking.UnitStatusFailed, at)
}

func (s *UnitStore) finish(ctx context.Context, id string, status ranking.UnitStatus, at time.Time) error {
	query := `
		UPDATE ranking_units
		SET status = $2, completed_at = $3, lease_expires_at = NULL
		WHERE id = $1 AND status IN ('pending', 'processing');
	`
	tag, err := s.db.Exec(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("finish unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("unit not found or already terminal")
	}
	return nil
}

// DeleteNonTerminal removes all pending and processing units.
func (s *UnitStore) DeleteNonTerminal(ctx context.Context) (int, error) {
	query := `DELETE FROM ranking_units WHERE status IN ('pending', 'processing');`
	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete non-terminal units: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountRemaining returns how many units are still pending or processing.
func (s *UnitStore) CountRemaining(ctx context.Context) (int, error) {
	query := `SELECT count(*) FROM ranking_units WHERE status IN ('pending', 'processing');`
	var n int
	if err := s.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count remaining units: %w", err)
	}
	return n, nil
}

// ListSince returns non-terminal units plus terminal units completed at or
// after the cutoff, oldest first.
func (s *UnitStore) ListSince(ctx context.Context, completedSince time.Time) ([]ranking.ProcessingUnit, error) {
	query := `
		SELECT id, keyword_ids, status, processed_count, error_count,
		       total_count, created_at, started_at, completed_at
		FROM ranking_units
		WHERE status IN ('pending', 'processing') OR completed_at >= $1
		ORDER BY created_at ASC, id ASC;
	`
	rows, err := s.db.Query(ctx, query, completedSince)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []ranking.ProcessingUnit
	for rows.Next() {
		var unit ranking.ProcessingUnit
		if err := rows.Scan(
			&unit.ID,
			&unit.KeywordIDs,
			&unit.Status,
			&unit.ProcessedCount,
			&unit.ErrorCount,
			&unit.TotalCount,
			&unit.CreatedAt,
			&unit.StartedAt,
			&unit.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan unit row: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unit rows: %w", err)
	}
	return units, nil
}

// DeleteCompletedBefore removes completed units older than the cutoff.
func (s *UnitStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM ranking_units WHERE status = 'completed' AND completed_at < $1;`
	tag, err := s.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed units: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
