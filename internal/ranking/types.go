// Package ranking defines core types shared across subsystems.
package ranking

import "time"

// UnitStatus represents the lifecycle state of a processing unit.
type UnitStatus string

// Unit status values persisted in the unit store. Transitions only move
// forward: pending -> processing -> completed or failed.
const (
	UnitStatusPending    UnitStatus = "pending"
	UnitStatusProcessing UnitStatus = "processing"
	UnitStatusCompleted  UnitStatus = "completed"
	UnitStatusFailed     UnitStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s UnitStatus) IsTerminal() bool {
	return s == UnitStatusCompleted || s == UnitStatusFailed
}

// PositionNotFound is the sentinel recorded when the target domain does not
// appear within the examined search depth.
const PositionNotFound = 0

// NotFoundRank is the effective rank used for delta arithmetic when a keyword
// was not found. It is worse than any rank the deep check can examine.
const NotFoundRank = 101

// Keyword is a tracked search term. Keywords are administered outside this
// service; the core only ever reads them.
type Keyword struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	IsActive bool   `json:"is_active"`
}

// CompetitorResult is one non-target search result, in rank order.
type CompetitorResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
}

// ObservationMetadata records how an observation was produced, for auditing
// and for estimating external-service cost.
type ObservationMetadata struct {
	TotalResultsReported int64         `json:"total_results_reported"`
	SearchLatency        time.Duration `json:"search_latency"`
	ResultsExamined      int           `json:"results_examined"`
	ValidationPassed     bool          `json:"validation_passed"`
	ValidationWarnings   []string      `json:"validation_warnings,omitempty"`
	APICallsUsed         int           `json:"api_calls_used"`
	SearchDepthRequested int           `json:"search_depth_requested"`
	MaxPositionExamined  int           `json:"max_position_examined"`
}

// RankingObservation is one immutable record of where the target domain
// ranked for a keyword at a point in time. Exactly one is appended per
// successful keyword check; the store is an append-only log.
type RankingObservation struct {
	ID          string              `json:"id"`
	KeywordID   string              `json:"keyword_id"`
	KeywordText string              `json:"keyword_text"`
	ObservedAt  time.Time           `json:"observed_at"`
	Position    int                 `json:"position"`
	ResolvedURL string              `json:"resolved_url"`
	Competitors []CompetitorResult  `json:"competitors,omitempty"`
	Metadata    ObservationMetadata `json:"metadata"`
}

// RankingResult is what the resolver returns before an observation is built
// and persisted.
type RankingResult struct {
	Keyword     string              `json:"keyword"`
	Position    int                 `json:"position"`
	ResolvedURL string              `json:"resolved_url"`
	Competitors []CompetitorResult  `json:"competitors,omitempty"`
	Metadata    ObservationMetadata `json:"metadata"`
}

// Found reports whether the target domain appeared within the examined depth.
func (r RankingResult) Found() bool {
	return r.Position != PositionNotFound
}

// ProcessingUnit is a bounded slice of keyword-checking work sized to finish
// inside one invocation's time budget, or be resumed across several.
// KeywordIDs is fixed at creation and never mutated.
type ProcessingUnit struct {
	ID             string     `json:"id"`
	KeywordIDs     []string   `json:"keyword_ids"`
	Status         UnitStatus `json:"status"`
	ProcessedCount int        `json:"processed_count"`
	ErrorCount     int        `json:"error_count"`
	TotalCount     int        `json:"total_count"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SignificantChange describes a position delta large enough to alert on.
/// Ephemeral: computed per processing unit and handed to the Notifier,
// never persisted.
type SignificantChange struct {
	KeywordText      string    `json:"keyword_text"`
	PreviousPosition int       `json:"previous_position"`
	CurrentPosition  int       `json:"current_position"`
	Delta            int       `json:"delta"`
	ObservedAt       time.Time `json:"observed_at"`
	ResolvedURL      string    `json:"resolved_url"`
}

// SearchItem is a single result row returned by the search collaborator.
type SearchItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchPage is one page of results from the search collaborator.
type SearchPage struct {
	Items                []SearchItem  `json:"items"`
	TotalResultsReported int64         `json:"total_results_reported"`
	SearchLatency        time.Duration `json:"search_latency"`
}
