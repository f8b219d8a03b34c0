// Package progress defines the event stream emitted by the batch scheduler.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageGenerationCreated Stage = "GENERATION_CREATED"
	StageUnitClaimed       Stage = "UNIT_CLAIMED"
	StageUnitYielded       Stage = "UNIT_YIELDED"
	StageUnitCompleted     Stage = "UNIT_COMPLETED"
	StageUnitFailed        Stage = "UNIT_FAILED"
	StageKeywordChecked    Stage = "KEYWORD_CHECKED"
	StageKeywordError      Stage = "KEYWORD_ERROR"
	StageKeywordSkipped    Stage = "KEYWORD_SKIPPED"
	StageChangesNotified   Stage = "CHANGES_NOTIFIED"
)

// Event captures a single milestone of scheduler progress. Tests assert on
// these instead of parsing log output.
type Event struct {
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or keyword milestone occurred.
	Stage Stage
	// UnitID scopes unit and keyword events to a processing unit.
	UnitID string
	// Keyword is the checked search term, for keyword-level stages.
	Keyword string
	// Position is the resolved rank; zero means not found.
	Position int
	// Found reports whether the target domain appeared.
	Found bool
	// Count carries stage-specific cardinality (units created, changes sent).
	Count int
	// Dur captures execution latency for keyword checks and unit completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageGenerationCreated, StageChangesNotified:
	case StageUnitClaimed, StageUnitYielded, StageUnitCompleted, StageUnitFailed:
		if e.UnitID == "" {
			return errors.New("unit events require a unit id")
		}
	case StageKeywordChecked, StageKeywordError, StageKeywordSkipped:
		if e.Keyword == "" {
			return errors.New("keyword events require a keyword")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
