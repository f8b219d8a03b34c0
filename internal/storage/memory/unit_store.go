package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// DefaultLease matches the assumed external invocation ceiling: a claim that
// is never released becomes claimable again after this long.
const DefaultLease = 60 * time.Second

// UnitStore is an in-memory ranking.UnitStore. Units are kept in creation
// order so the oldest-first claim contract falls out of the slice order.
type UnitStore struct {
	mu     sync.Mutex
	units  []*ranking.ProcessingUnit
	leases map[string]time.Time
	lease  time.Duration
}

// NewUnitStore constructs a UnitStore with the default claim lease.
func NewUnitStore() *UnitStore {
	return NewUnitStoreWithLease(DefaultLease)
}

// NewUnitStoreWithLease constructs a UnitStore with a custom claim lease.
func NewUnitStoreWithLease(lease time.Duration) *UnitStore {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &UnitStore{leases: make(map[string]time.Time), lease: lease}
}

// Create stores a new pending unit.
func (s *UnitStore) Create(_ context.Context, unit ranking.ProcessingUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.ID == unit.ID {
			return errors.New("unit already exists")
		}
	}
	cp := cloneUnit(unit)
	s.units = append(s.units, &cp)
	return nil
}

// ClaimOldest hands the oldest claimable pending/processing unit to the
// caller, marking it processing and taking a lease so an overlapping
// invocation cannot claim it again before the lease expires.
func (s *UnitStore) ClaimOldest(_ context.Context, now time.Time) (ranking.ProcessingUnit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.Status != ranking.UnitStatusPending && u.Status != ranking.UnitStatusProcessing {
			continue
		}
		if until, held := s.leases[u.ID]; held && now.Before(until) {
			continue
		}
		u.Status = ranking.UnitStatusProcessing
		if u.StartedAt == nil {
			ts := now
			u.StartedAt = &ts
		}
		s.leases[u.ID] = now.Add(s.lease)
		return cloneUnit(*u), true, nil
	}
	return ranking.ProcessingUnit{}, false, nil
}

// SaveProgress persists the counters for a claimed unit.
func (s *UnitStore) SaveProgress(_ context.Context, id string, processed, errored int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.find(id)
	if err != nil {
		return err
	}
	if processed > u.TotalCount {
		return errors.New("processed count exceeds total count")
	}
	u.ProcessedCount = processed
	u.ErrorCount = errored
	return nil
}

// Release makes a still-unfinished unit claimable again.
func (s *UnitStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.find(id); err != nil {
		return err
	}
	delete(s.leases, id)
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

func (s *UnitStore) finish(_ context.Context, id string, status ranking.UnitStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.find(id)
	if err != nil {
		return err
	}
	if u.Status.IsTerminal() {
		return errors.New("unit already terminal")
	}
	u.Status = status
	ts := at
	u.CompletedAt = &ts
	delete(s.leases, id)
	return nil
}

// DeleteNonTerminal removes all pending and processing units, returning how
// many were dropped. Called at the start of a fresh generation so at most
// one partition of work is ever active.
func (s *UnitStore) DeleteNonTerminal(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.units[:0]
	removed := 0
	for _, u := range s.units {
		if u.Status.IsTerminal() {
			kept = append(kept, u)
			continue
		}
		delete(s.leases, u.ID)
		removed++
	}
	s.units = kept
	return removed, nil
}

// CountRemaining returns how many units are still pending or processing.
func (s *UnitStore) CountRemaining(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.units {
		if !u.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

// ListSince returns all non-terminal units plus terminal units completed at
// or after the cutoff, in creation order.
func (s *UnitStore) ListSince(_ context.Context, completedSince time.Time) ([]ranking.ProcessingUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ranking.ProcessingUnit
	for _, u := range s.units {
		if u.Status.IsTerminal() {
			if u.CompletedAt == nil || u.CompletedAt.Before(completedSince) {
				continue
			}
		}
		out = append(out, cloneUnit(*u))
	}
	return out, nil
}

// DeleteCompletedBefore removes completed units older than the cutoff.
func (s *UnitStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.units[:0]
	removed := 0
	for _, u := range s.units {
		if u.Status == ranking.UnitStatusCompleted && u.CompletedAt != nil && u.CompletedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, u)
	}
	s.units = kept
	return removed, nil
}

// Get fetches a unit by ID. Used by tests.
func (s *UnitStore) Get(id string) (ranking.ProcessingUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.find(id)
	if err != nil {
		return ranking.ProcessingUnit{}, false
	}
	return cloneUnit(*u), true
}

func (s *UnitStore) find(id string) (*ranking.ProcessingUnit, error) {
	for _, u := range s.units {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("unit not found")
}

func cloneUnit(u ranking.ProcessingUnit) ranking.ProcessingUnit {
	cp := u
	cp.KeywordIDs = append([]string(nil), u.KeywordIDs...)
	if u.StartedAt != nil {
		ts := *u.StartedAt
		cp.StartedAt = &ts
	}
	if u.CompletedAt != nil {
		ts := *u.CompletedAt
		cp.CompletedAt = &ts
	}
	return cp
}
