package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/catalog/internal/platform/config"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}

	logger, err = NewLogger(config.LoggingConfig{Development: true})
	if err != nil {
		t.Fatalf("NewLogger development: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected info default for development logger")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(config.LoggingConfig{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
