package logging

import (
	"testing"

	"go.uber.org/zap"
)

// TestNewBuildsBothModes checks the development and production configurations
// both produce usable loggers.
func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		if err != nil {
			t.Fatalf("New(%v) error = %v", development, err)
		}
		if logger == nil {
			t.Fatalf("New(%v) returned nil logger", development)
		}
		logger.Info("logger ready")
		_ = logger.Sync()
	}
}

// TestNewNamesLogger verifies log entries carry the service name.
func TestNewNamesLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	ce := logger.Check(zap.InfoLevel, "name probe")
	if ce == nil {
		t.Fatal("expected info level to be enabled")
	}
	if ce.LoggerName != "ranktrack" {
		t.Fatalf("logger name = %q, want %q", ce.LoggerName, "ranktrack")
	}
	ce.Write()
}
