// Package notify delivers significant ranking change alerts.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// LogNotifier writes alerts to the structured log. The default sink for
// local runs and environments without a message broker.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier wraps the provided logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs one entry per change plus a batch summary.
func (n *LogNotifier) Notify(_ context.Context, changes []ranking.SignificantChange) error {
	if len(changes) == 0 {
		return nil
	}
	for _, ch := range changes {
		n.logger.Info("significant ranking change",
			zap.String("keyword", ch.KeywordText),
			zap.Int("previous_position", ch.PreviousPosition),
			zap.Int("current_position", ch.CurrentPosition),
			zap.Int("delta", ch.Delta),
			zap.String("url", ch.ResolvedURL),
		)
	}
	n.logger.Info("ranking change batch", zap.Int("changes", len(changes)))
	return nil
}
