package ranking

import (
	"context"
	"errors"
	"time"
)

// ErrKeywordNotFound is returned by KeywordStore.Get when the keyword has
// been removed since the generation of work was created.
var ErrKeywordNotFound = errors.New("keyword not found")

// SearchProvider issues one page of keyword search results. The offset is the
// 1-based global index of the first requested row. Rate-limit and transport
// failures surface as errors; callers decide what a failed page costs them.
type SearchProvider interface {
	Search(ctx context.Context, query string, offset, pageSize int) (SearchPage, error)
}

// KeywordStore lists tracked keywords. Read-only from this core.
type KeywordStore interface {
	ListActive(ctx context.Context) ([]Keyword, error)
	Get(ctx context.Context, id string) (Keyword, error)
}

// RankingStore is the append-only observation log. Observations are never
// updated or deleted by this core.
type RankingStore interface {
	Append(ctx context.Context, obs RankingObservation) error
	LatestForKeyword(ctx context.Context, keywordID string) (RankingObservation, bool, error)
}

// UnitStore persists processing units between scheduler invocations.
//
// ClaimOldest must atomically hand the oldest pending or processing unit to
// exactly one caller: the claim takes a lease so overlapping invocations
// cannot process the same unit, and the lease expires on its own if the
// holder is killed. Release returns a still-unfinished unit to the claimable
// pool without touching its status.
type UnitStore interface {
	Create(ctx context.Context, unit ProcessingUnit) error
	ClaimOldest(ctx context.Context, now time.Time) (ProcessingUnit, bool, error)
	SaveProgress(ctx context.Context, id string, processed, errored int) error
	Release(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, at time.Time) error
	Fail(ctx context.Context, id string, at time.Time) error
	DeleteNonTerminal(ctx context.Context) (int, error)
	CountRemaining(ctx context.Context) (int, error)
	ListSince(ctx context.Context, completedSince time.Time) ([]ProcessingUnit, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Notifier delivers a batch of significant changes as a single alert.
// Delivery failures must not affect already-persisted ranking data.
type Notifier interface {
	Notify(ctx context.Context, changes []SignificantChange) error
}

// SnapshotStore archives raw observation payloads and returns a URI.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unit and observation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
