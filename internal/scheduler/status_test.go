package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

func TestGetStatusEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	st, err := f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalUnits)
	require.True(t, st.AllDone)
	require.Empty(t, st.EstimatedTimeLeft)
}

func TestGetStatusAggregatesUnits(t *testing.T) {
	t.Parallel()

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("keyword %d", i+1)
	}
	f := newFixture(t, Config{ChunkSize: 6, TimeBudget: time.Hour}, texts...)

	_, err := f.sched.CreateBatches(context.Background())
	require.NoError(t, err)

	// Finish the first unit, leave the second pending.
	res, err := f.sched.ProcessNextUnit(context.Background())
	require.NoError(t, err)
	require.True(t, res.Completed)

	st, err := f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.TotalUnits)
	require.Equal(t, 1, st.CompletedUnits)
	require.Equal(t, 1, st.PendingUnits)
	require.Equal(t, 12, st.TotalKeywords)
	require.Equal(t, 6, st.ProcessedKeywords)
	require.InDelta(t, 50.0, st.ProgressPercent, 0.01)
	require.False(t, st.AllDone)
	require.NotEmpty(t, st.EstimatedTimeLeft)
	require.Len(t, st.Units, 2)

	// Finish everything: progress hits 100 and the estimate disappears.
	_, err = f.sched.ProcessNextUnit(context.Background())
	require.NoError(t, err)
	st, err = f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.True(t, st.AllDone)
	require.InDelta(t, 100.0, st.ProgressPercent, 0.01)
	require.Empty(t, st.EstimatedTimeLeft)
}

func TestGetStatusWindowHidesOldTerminalUnits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{ChunkSize: 1, StatusWindow: 2 * time.Hour}, "k1")
	_, err := f.sched.CreateBatches(context.Background())
	require.NoError(t, err)
	_, err = f.sched.ProcessNextUnit(context.Background())
	require.NoError(t, err)

	st, err := f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, st.CompletedUnits)

	// Once the completion ages out of the window the report is empty again.
	f.clock.Advance(3 * time.Hour)
	st, err = f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalUnits)
	require.True(t, st.AllDone)
}

func TestGetStatusEstimateUsesObservedPace(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{
		ChunkSize:  4,
		TimeBudget: 50 * time.Second,
	}, "k1", "k2", "k3", "k4")
	f.resolver.checkCost = 20 * time.Second

	_, err := f.sched.CreateBatches(context.Background())
	require.NoError(t, err)

	// Two keywords fit in the budget, so the unit yields mid-flight.
	res, err := f.sched.ProcessNextUnit(context.Background())
	require.NoError(t, err)
	require.True(t, res.TimeBoxed)
	require.Equal(t, 2, res.Processed)

	st, err := f.sched.GetStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, st.ProcessingUnits)
	require.NotEmpty(t, st.EstimatedTimeLeft)

	// 56s elapsed for 2 keywords leaves 2 keywords at 28s each.
	est, err := time.ParseDuration(st.EstimatedTimeLeft)
	require.NoError(t, err)
	require.Equal(t, 56*time.Second, est)
}

func TestEstimateRemainingFallback(t *testing.T) {
	t.Parallel()

	units := []ranking.ProcessingUnit{{Status: ranking.UnitStatusPending, TotalCount: 4}}
	got := estimateRemaining(units, 4, time.Now(), 10*time.Second)
	require.Equal(t, 40*time.Second, got)
}
