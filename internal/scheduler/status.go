package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// UnitDetail is a per-unit line in a status report.
type UnitDetail struct {
	ID          string             `json:"id"`
	Status      ranking.UnitStatus `json:"status"`
	Processed   int                `json:"processed"`
	Errors      int                `json:"errors"`
	Total       int                `json:"total"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Status is a point-in-time snapshot of the current generation of work.
// Terminal units only count toward the report within the status window, so a
// long-idle system converges back to an all-clear report.
type Status struct {
	GeneratedAt       time.Time    `json:"generated_at"`
	TotalUnits        int          `json:"total_units"`
	PendingUnits      int          `json:"pending_units"`
	ProcessingUnits   int          `json:"processing_units"`
	CompletedUnits    int          `json:"completed_units"`
	FailedUnits       int          `json:"failed_units"`
	TotalKeywords     int          `json:"total_keywords"`
	ProcessedKeywords int          `json:"processed_keywords"`
	ErroredKeywords   int          `json:"errored_keywords"`
	ProgressPercent   float64      `json:"progress_percent"`
	EstimatedTimeLeft string       `json:"estimated_time_left,omitempty"`
	AllDone           bool         `json:"all_done"`
	Units             []UnitDetail `json:"units,omitempty"`
}

// GetStatus aggregates every non-terminal unit plus all terminal units that
// finished within the status window.
func (s *Scheduler) GetStatus(ctx context.Context) (Status, error) {
	now := s.clock.Now()
	units, err := s.units.ListSince(ctx, now.Add(-s.cfg.StatusWindow))
	if err != nil {
		return Status{}, fmt.Errorf("list units: %w", err)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].CreatedAt.Before(units[j].CreatedAt)
	})

	st := Status{GeneratedAt: now, Units: make([]UnitDetail, 0, len(units))}
	var remainingKeywords int
	for _, u := range units {
		st.TotalUnits++
		st.TotalKeywords += u.TotalCount
		st.ProcessedKeywords += u.ProcessedCount
		st.ErroredKeywords += u.ErrorCount
		switch u.Status {
		case ranking.UnitStatusPending:
			st.PendingUnits++
			remainingKeywords += u.TotalCount - u.ProcessedCount
		case ranking.UnitStatusProcessing:
			st.ProcessingUnits++
			remainingKeywords += u.TotalCount - u.ProcessedCount
		case ranking.UnitStatusCompleted:
			st.CompletedUnits++
		case ranking.UnitStatusFailed:
			st.FailedUnits++
		}
		st.Units = append(st.Units, UnitDetail{
			ID:          u.ID,
			Status:      u.Status,
			Processed:   u.ProcessedCount,
			Errors:      u.ErrorCount,
			Total:       u.TotalCount,
			CreatedAt:   u.CreatedAt,
			CompletedAt: u.CompletedAt,
		})
	}

	if st.TotalKeywords > 0 {
		st.ProgressPercent = 100 * float64(st.ProcessedKeywords) / float64(st.TotalKeywords)
	}
	st.AllDone = st.PendingUnits == 0 && st.ProcessingUnits == 0
	if !st.AllDone && remainingKeywords > 0 {
		st.EstimatedTimeLeft = estimateRemaining(units, remainingKeywords, now, s.cfg.AvgPerKeyword).Truncate(time.Second).String()
	}
	return st, nil
}

// estimateRemaining extrapolates from the observed pace of the unit currently
// in flight. Without an in-flight unit that has made progress, it falls back
// to the configured average per keyword.
func estimateRemaining(units []ranking.ProcessingUnit, remainingKeywords int, now time.Time, avgPerKeyword time.Duration) time.Duration {
	pace := avgPerKeyword
	for _, u := range units {
		if u.Status != ranking.UnitStatusProcessing || u.StartedAt == nil || u.ProcessedCount == 0 {
			continue
		}
		elapsed := now.Sub(*u.StartedAt)
		if elapsed <= 0 {
			continue
		}
		pace = elapsed / time.Duration(u.ProcessedCount)
		break
	}
	return pace * time.Duration(remainingKeywords)
}
