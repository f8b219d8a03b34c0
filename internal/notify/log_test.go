package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

func TestLogNotifierEmitsPerChangeAndSummary(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	changes := []ranking.SignificantChange{
		{
			KeywordText:      "garden tools",
			PreviousPosition: 12,
			CurrentPosition:  5,
			Delta:            7,
			ObservedAt:       time.Now().UTC(),
			ResolvedURL:      "https://shop.example.com/tools",
		},
		{
			KeywordText:      "lawn aerator",
			PreviousPosition: 8,
			CurrentPosition:  101,
			Delta:            -93,
			ObservedAt:       time.Now().UTC(),
		},
	}
	require.NoError(t, n.Notify(context.Background(), changes))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, "significant ranking change", entries[0].Message)
	require.Equal(t, "ranking change batch", entries[2].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "garden tools", fields["keyword"])
	require.EqualValues(t, 7, fields["delta"])
}

func TestLogNotifierEmptyBatchIsSilent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), nil))
	require.Zero(t, logs.Len())
}
