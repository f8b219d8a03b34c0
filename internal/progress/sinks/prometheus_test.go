package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ranktrack/ranktrack/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	batch := []progress.Event{
		{TS: now, Stage: progress.StageUnitClaimed, UnitID: "unit-1"},
		{
			TS:       now.Add(10 * time.Second),
			Stage:    progress.StageKeywordChecked,
			UnitID:   "unit-1",
			Keyword:  "garden tools",
			Position: 7,
			Found:    true,
			Dur:      800 * time.Millisecond,
		},
		{
			TS:      now.Add(20 * time.Second),
			Stage:   progress.StageKeywordChecked,
			UnitID:  "unit-1",
			Keyword: "lawn aerator",
		},
		{TS: now.Add(25 * time.Second), Stage: progress.StageKeywordError, UnitID: "unit-1", Keyword: "hedge trimmer"},
		{TS: now.Add(30 * time.Second), Stage: progress.StageUnitCompleted, UnitID: "unit-1"},
		{TS: now.Add(31 * time.Second), Stage: progress.StageChangesNotified, Count: 2},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsClaimed))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.unitsYielded))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("failed")))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.keywordChecks.WithLabelValues("found")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.keywordChecks.WithLabelValues("not_found")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.keywordChecks.WithLabelValues("error")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.changesSent))
	require.Equal(t, 1, testutil.CollectAndCount(sink.checkDuration, "ranktrack_keyword_check_duration_seconds"))
}

// TestPrometheusSinkYieldAndFailure covers the remaining unit lifecycle stages.
func TestPrometheusSinkYieldAndFailure(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	batch := []progress.Event{
		{TS: now, Stage: progress.StageUnitYielded, UnitID: "unit-2"},
		{TS: now.Add(time.Minute), Stage: progress.StageUnitFailed, UnitID: "unit-2"},
		{TS: now.Add(time.Minute), Stage: progress.StageKeywordSkipped, UnitID: "unit-2", Keyword: "retired term"},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsYielded))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.keywordChecks.WithLabelValues("skipped")))
}

// TestPrometheusSinkDoubleRegistration verifies a second sink on the same registry fails cleanly.
func TestPrometheusSinkDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
