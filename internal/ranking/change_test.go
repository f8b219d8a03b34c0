package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func obsAt(position int) RankingObservation {
	return RankingObservation{
		KeywordText: "best coffee grinder",
		Position:    position,
		ResolvedURL: "https://example.com/grinders",
		ObservedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEffectiveRank(t *testing.T) {
	t.Parallel()

	require.Equal(t, 5, EffectiveRank(5))
	require.Equal(t, NotFoundRank, EffectiveRank(PositionNotFound))
}

func TestClassifyFirstObservationIsBaseline(t *testing.T) {
	t.Parallel()

	require.Nil(t, Classify(obsAt(4), nil, DefaultSignificanceThreshold))
}

func TestClassifyBelowThreshold(t *testing.T) {
	t.Parallel()

	prev := obsAt(7)
	require.Nil(t, Classify(obsAt(6), &prev, 3))
	require.Nil(t, Classify(obsAt(9), &prev, 3))
	require.Nil(t, Classify(obsAt(7), &prev, 3))
}

func TestClassifyImprovement(t *testing.T) {
	t.Parallel()

	prev := obsAt(9)
	change := Classify(obsAt(4), &prev, 3)
	require.NotNil(t, change)
	require.Equal(t, 9, change.PreviousPosition)
	require.Equal(t, 4, change.CurrentPosition)
	require.Equal(t, 5, change.Delta)
}

func TestClassifyDecline(t *testing.T) {
	t.Parallel()

	prev := obsAt(3)
	change := Classify(obsAt(8), &prev, 3)
	require.NotNil(t, change)
	require.Equal(t, -5, change.Delta)
}

func TestClassifyDroppedOutOfResults(t *testing.T) {
	t.Parallel()

	prev := obsAt(5)
	change := Classify(obsAt(PositionNotFound), &prev, 3)
	require.NotNil(t, change)
	require.Equal(t, 5-NotFoundRank, change.Delta)
	require.Equal(t, PositionNotFound, change.CurrentPosition)
}

func TestClassifyReenteredResults(t *testing.T) {
	t.Parallel()

	prev := obsAt(PositionNotFound)
	change := Classify(obsAt(12), &prev, 3)
	require.NotNil(t, change)
	require.Equal(t, NotFoundRank-12, change.Delta)
}

func TestClassifyZeroThresholdUsesDefault(t *testing.T) {
	t.Parallel()

	prev := obsAt(5)
	require.Nil(t, Classify(obsAt(7), &prev, 0))
	require.NotNil(t, Classify(obsAt(8), &prev, 0))
}
