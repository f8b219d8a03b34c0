// Package scheduler implements the time-boxed batch processing state machine.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/progress"
	"github.com/ranktrack/ranktrack/internal/ranking"
)

// Config controls partitioning, pacing and alerting. The zero value is
// filled with the validated defaults.
type Config struct {
	// TargetDomain is the site whose rankings are tracked. Required.
	TargetDomain string
	// ChunkSize is the number of keywords per processing unit.
	ChunkSize int
	// KeywordDelay is the pause after a successful keyword check.
	KeywordDelay time.Duration
	// ErrorDelay is the longer backoff after a failed keyword check.
	ErrorDelay time.Duration
	// TimeBudget is the wall-clock guard within the host's hard timeout.
	TimeBudget time.Duration
	// SignificanceThreshold is the position delta that warrants an alert.
	SignificanceThreshold int
	// BatchMaxPosition bounds per-keyword search depth in batch mode.
	BatchMaxPosition int
	// FirstPageSize is how many leading results feed the validator.
	FirstPageSize int
	// StatusWindow bounds how far back completed units count toward status.
	StatusWindow time.Duration
	// AvgPerKeyword is the fallback time estimate per remaining keyword.
	AvgPerKeyword time.Duration
	// SnapshotPrefix is the object path prefix for raw observation archives.
	SnapshotPrefix string
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 6
	}
	if c.KeywordDelay <= 0 {
		c.KeywordDelay = 8 * time.Second
	}
	if c.ErrorDelay <= 0 {
		c.ErrorDelay = 15 * time.Second
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 50 * time.Second
	}
	if c.SignificanceThreshold <= 0 {
		c.SignificanceThreshold = ranking.DefaultSignificanceThreshold
	}
	if c.BatchMaxPosition <= 0 {
		c.BatchMaxPosition = 30
	}
	if c.FirstPageSize <= 0 {
		c.FirstPageSize = 10
	}
	if c.StatusWindow <= 0 {
		c.StatusWindow = 2 * time.Hour
	}
	if c.AvgPerKeyword <= 0 {
		c.AvgPerKeyword = 10 * time.Second
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = "observations"
	}
	return c
}

// PositionResolver is the slice of the ranking resolver the scheduler needs.
type PositionResolver interface {
	ResolvePosition(ctx context.Context, keyword, targetDomain string, maxPosition int) (ranking.RankingResult, error)
}

// Deps collects the scheduler's collaborators. Notifier, Snapshots and
// Emitter are optional.
type Deps struct {
	Keywords     ranking.KeywordStore
	Units        ranking.UnitStore
	Observations ranking.RankingStore
	Resolver     PositionResolver
	Notifier     ranking.Notifier
	Snapshots    ranking.SnapshotStore
	Emitter      progress.Emitter
	Clock        ranking.Clock
	IDs          ranking.IDGenerator
	Logger       *zap.Logger
}

// Scheduler partitions the active keyword set into fixed-size units,
// processes one unit at a time under a wall-clock budget, and persists
// progress so interrupted units resume where they stopped.
type Scheduler struct {
	keywords     ranking.KeywordStore
	units        ranking.UnitStore
	observations ranking.RankingStore
	resolver     PositionResolver
	notifier     ranking.Notifier
	snapshots    ranking.SnapshotStore
	emitter      progress.Emitter
	clock        ranking.Clock
	ids          ranking.IDGenerator
	cfg          Config
	logger       *zap.Logger
	sleep        func(ctx context.Context, d time.Duration)
}

// New constructs a Scheduler. TargetDomain is a fatal configuration error
// when missing.
func New(deps Deps, cfg Config) (*Scheduler, error) {
	if strings.TrimSpace(cfg.TargetDomain) == "" {
		return nil, errors.New("target domain is required")
	}
	if deps.Keywords == nil || deps.Units == nil || deps.Observations == nil ||
		deps.Resolver == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("keyword store, unit store, observation store, resolver, clock and id generator are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		keywords:     deps.Keywords,
		units:        deps.Units,
		observations: deps.Observations,
		resolver:     deps.Resolver,
		notifier:     deps.Notifier,
		snapshots:    deps.Snapshots,
		emitter:      deps.Emitter,
		clock:        deps.Clock,
		ids:          deps.IDs,
		cfg:          cfg.withDefaults(),
		logger:       logger,
		sleep:        sleepContext,
	}, nil
}

// CreateResult summarizes a CreateBatches call.
type CreateResult struct {
	UnitsCreated int `json:"units_created"`
	KeywordCount int `json:"keyword_count"`
	StaleDeleted int `json:"stale_deleted"`
}

// CreateBatches partitions all active keywords into pending units. Any
// leftover non-terminal units from a previous generation are deleted first,
// so at most one partition of work is ever active. A no-op when there are no
// active keywords.
func (s *Scheduler) CreateBatches(ctx context.Context) (CreateResult, error) {
	keywords, err := s.keywords.ListActive(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("list active keywords: %w", err)
	}
	if len(keywords) == 0 {
		s.logger.Info("no active keywords; nothing to schedule")
		return CreateResult{}, nil
	}

	stale, err := s.units.DeleteNonTerminal(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("clear stale units: %w", err)
	}
	if stale > 0 {
		s.logger.Info("cleared stale units from previous generation", zap.Int("count", stale))
	}

	now := s.clock.Now()
	created := 0
	for start := 0; start < len(keywords); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(keywords))
		ids := make([]string, 0, end-start)
		for _, kw := range keywords[start:end] {
			ids = append(ids, kw.ID)
		}
		unitID, err := s.ids.NewID()
		if err != nil {
			return CreateResult{}, fmt.Errorf("generate unit id: %w", err)
		}
		unit := ranking.ProcessingUnit{
			ID:         unitID,
			KeywordIDs: ids,
			Status:     ranking.UnitStatusPending,
			TotalCount: len(ids),
			CreatedAt:  now,
		}
		if err := s.units.Create(ctx, unit); err != nil {
			return CreateResult{}, fmt.Errorf("create unit: %w", err)
		}
		created++
	}

	s.logger.Info("batch generation created",
		zap.Int("units", created),
		zap.Int("keywords", len(keywords)),
	)
	s.emit(progress.Event{Stage: progress.StageGenerationCreated, Count: created})
	return CreateResult{UnitsCreated: created, KeywordCount: len(keywords), StaleDeleted: stale}, nil
}

// ProcessResult summarizes one ProcessNextUnit invocation.
type ProcessResult struct {
	UnitID       string `json:"unit_id,omitempty"`
	Processed    int    `json:"processed"`
	Errors       int    `json:"errors"`
	Completed    bool   `json:"completed"`
	Failed       bool   `json:"failed"`
	TimeBoxed    bool   `json:"time_boxed"`
	ChangesFound int    `json:"changes_found"`
	Remaining    bool   `json:"remaining"`
	Idle         bool   `json:"idle"`
}

// ProcessNextUnit claims the oldest outstanding unit and works through its
// remaining keywords until the unit is done or the time budget runs out.
// Designed to be invoked repeatedly by an external trigger; safe to call when
// there is nothing to do.
func (s *Scheduler) ProcessNextUnit(ctx context.Context) (ProcessResult, error) {
	start := s.clock.Now()
	unit, ok, err := s.units.ClaimOldest(ctx, start)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("claim unit: %w", err)
	}
	if !ok {
		return ProcessResult{Idle: true}, nil
	}
	s.logger.Info("unit claimed",
		zap.String("unit_id", unit.ID),
		zap.Int("processed", unit.ProcessedCount),
		zap.Int("total", unit.TotalCount),
	)
	s.emit(progress.Event{Stage: progress.StageUnitClaimed, UnitID: unit.ID})

	res := ProcessResult{UnitID: unit.ID}
	var changes []ranking.SignificantChange

	// Resume from processedCount, never from the start of the unit.
	for i := unit.ProcessedCount; i < len(unit.KeywordIDs); i++ {
		if s.clock.Now().Sub(start) >= s.cfg.TimeBudget {
			res.TimeBoxed = true
			s.logger.Info("time budget reached; yielding unit",
				zap.String("unit_id", unit.ID),
				zap.Int("processed", unit.ProcessedCount),
			)
			s.emit(progress.Event{Stage: progress.StageUnitYielded, UnitID: unit.ID, Count: unit.ProcessedCount})
			break
		}

		kwErr := s.checkKeyword(ctx, unit.ID, unit.KeywordIDs[i], &changes)
		unit.ProcessedCount++
		res.Processed++
		if kwErr != nil {
			unit.ErrorCount++
			res.Errors++
			s.logger.Warn("keyword check failed",
				zap.String("unit_id", unit.ID),
				zap.String("keyword_id", unit.KeywordIDs[i]),
				zap.Error(kwErr),
			)
		}

		// Flush counters after every keyword so a hard kill loses at
		// most one keyword's worth of work.
		if err := s.units.SaveProgress(ctx, unit.ID, unit.ProcessedCount, unit.ErrorCount); err != nil {
			return res, fmt.Errorf("save unit progress: %w", err)
		}

		if unit.ProcessedCount < unit.TotalCount {
			if kwErr != nil {
				s.sleep(ctx, s.cfg.ErrorDelay)
			} else {
				s.sleep(ctx, s.cfg.KeywordDelay)
			}
		}
		if ctx.Err() != nil {
			res.TimeBoxed = true
			break
		}
	}

	if unit.ProcessedCount >= unit.TotalCount {
		failed, err := s.finishUnit(ctx, unit)
		if err != nil {
			return res, err
		}
		res.Completed = !failed
		res.Failed = failed
	} else if err := s.units.Release(ctx, unit.ID); err != nil {
		s.logger.Warn("release unit failed", zap.String("unit_id", unit.ID), zap.Error(err))
	}

	if len(changes) > 0 {
		res.ChangesFound = len(changes)
		s.notify(ctx, changes)
	}

	remaining, err := s.units.CountRemaining(ctx)
	if err != nil {
		return res, fmt.Errorf("count remaining units: %w", err)
	}
	res.Remaining = remaining > 0
	return res, nil
}

// finishUnit picks the terminal state: failed when every keyword errored,
// completed otherwise.
func (s *Scheduler) finishUnit(ctx context.Context, unit ranking.ProcessingUnit) (failed bool, err error) {
	now := s.clock.Now()
	if unit.TotalCount > 0 && unit.ErrorCount >= unit.TotalCount {
		if err := s.units.Fail(ctx, unit.ID, now); err != nil {
			return false, fmt.Errorf("fail unit: %w", err)
		}
		s.logger.Warn("unit failed; every keyword errored", zap.String("unit_id", unit.ID))
		s.emit(progress.Event{Stage: progress.StageUnitFailed, UnitID: unit.ID, Count: unit.ErrorCount})
		return true, nil
	}
	if err := s.units.Complete(ctx, unit.ID, now); err != nil {
		return false, fmt.Errorf("complete unit: %w", err)
	}
	var dur time.Duration
	if unit.StartedAt != nil {
		dur = now.Sub(*unit.StartedAt)
	}
	s.logger.Info("unit completed",
		zap.String("unit_id", unit.ID),
		zap.Int("errors", unit.ErrorCount),
		zap.Duration("dur", dur),
	)
	s.emit(progress.Event{Stage: progress.StageUnitCompleted, UnitID: unit.ID, Count: unit.ErrorCount, Dur: dur})
	return false, nil
}

// checkKeyword runs one full keyword check: resolve, validate, persist,
// compare against the prior observation. A missing or deactivated keyword is
// skipped without error; anything else that fails is a transient per-keyword
// error for the unit.
func (s *Scheduler) checkKeyword(ctx context.Context, unitID, keywordID string, changes *[]ranking.SignificantChange) error {
	kw, err := s.keywords.Get(ctx, keywordID)
	if err != nil {
		if errors.Is(err, ranking.ErrKeywordNotFound) {
			s.emit(progress.Event{Stage: progress.StageKeywordSkipped, UnitID: unitID, Keyword: keywordID, Note: "removed"})
			return nil
		}
		return fmt.Errorf("load keyword: %w", err)
	}
	if !kw.IsActive {
		s.emit(progress.Event{Stage: progress.StageKeywordSkipped, UnitID: unitID, Keyword: kw.Text, Note: "inactive"})
		return nil
	}

	checkStart := s.clock.Now()
	result, err := s.resolver.ResolvePosition(ctx, kw.Text, s.cfg.TargetDomain, s.cfg.BatchMaxPosition)
	if err != nil {
		s.emit(progress.Event{Stage: progress.StageKeywordError, UnitID: unitID, Keyword: kw.Text, Note: err.Error()})
		return fmt.Errorf("resolve position: %w", err)
	}

	validation := ranking.ValidateResult(
		result.Position,
		ranking.FirstPage(result.Competitors, s.cfg.FirstPageSize),
		s.cfg.TargetDomain,
		kw.Text,
	)
	result.Metadata.ValidationPassed = validation.IsValid
	result.Metadata.ValidationWarnings = validation.Warnings
	if !validation.IsValid {
		s.logger.Warn("search response validation flagged",
			zap.String("keyword", kw.Text),
			zap.Strings("warnings", validation.Warnings),
		)
	}

	obsID, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate observation id: %w", err)
	}
	obs := ranking.RankingObservation{
		ID:          obsID,
		KeywordID:   kw.ID,
		KeywordText: kw.Text,
		ObservedAt:  s.clock.Now(),
		Position:    result.Position,
		ResolvedURL: result.ResolvedURL,
		Competitors: result.Competitors,
		Metadata:    result.Metadata,
	}

	prev, hasPrev, err := s.observations.LatestForKeyword(ctx, kw.ID)
	if err != nil {
		return fmt.Errorf("load previous observation: %w", err)
	}
	if err := s.observations.Append(ctx, obs); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	s.archive(ctx, obs)

	var prevPtr *ranking.RankingObservation
	if hasPrev {
		prevPtr = &prev
	}
	if change := ranking.Classify(obs, prevPtr, s.cfg.SignificanceThreshold); change != nil {
		*changes = append(*changes, *change)
	}

	s.emit(progress.Event{
		Stage:    progress.StageKeywordChecked,
		UnitID:   unitID,
		Keyword:  kw.Text,
		Position: obs.Position,
		Found:    result.Found(),
		Dur:      s.clock.Now().Sub(checkStart),
	})
	return nil
}

// notify hands the accumulated changes to the notifier in one call. Failures
// are logged and swallowed: persisted observations are never rolled back for
// a lost alert.
func (s *Scheduler) notify(ctx context.Context, changes []ranking.SignificantChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, changes); err != nil {
		s.logger.Warn("change notification failed", zap.Int("changes", len(changes)), zap.Error(err))
		return
	}
	s.emit(progress.Event{Stage: progress.StageChangesNotified, Count: len(changes)})
}

// archive writes the raw observation to the snapshot store, best effort.
func (s *Scheduler) archive(ctx context.Context, obs ranking.RankingObservation) {
	if s.snapshots == nil {
		return
	}
	data, err := json.Marshal(obs)
	if err != nil {
		s.logger.Warn("marshal observation snapshot failed", zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%s.json", strings.Trim(s.cfg.SnapshotPrefix, "/"), obs.KeywordID, obs.ID)
	if _, err := s.snapshots.PutObject(ctx, path, "application/json", data); err != nil {
		s.logger.Warn("observation snapshot failed", zap.String("path", path), zap.Error(err))
	}
}

// CleanupOldUnits deletes completed units older than maxAgeDays. Pure
// housekeeping, run opportunistically.
func (s *Scheduler) CleanupOldUnits(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := s.clock.Now().AddDate(0, 0, -maxAgeDays)
	n, err := s.units.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed units: %w", err)
	}
	if n > 0 {
		s.logger.Info("old units removed", zap.Int("count", n))
	}
	return n, nil
}

func (s *Scheduler) emit(evt progress.Event) {
	if s.emitter == nil {
		return
	}
	evt.TS = s.clock.Now()
	s.emitter.Emit(evt)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
