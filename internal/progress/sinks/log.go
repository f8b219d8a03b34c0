// Package sinks provides Sink implementations for the progress stream.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/progress"
)

// LogSink emits structured logs for debugging progress streams.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.String("stage", string(evt.Stage)),
			zap.String("unit_id", evt.UnitID),
			zap.String("keyword", evt.Keyword),
			zap.Int("position", evt.Position),
			zap.Bool("found", evt.Found),
			zap.Int("count", evt.Count),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
