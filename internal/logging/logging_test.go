package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewProductionLevel(t *testing.T) {
	logger := New("production")
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("production logger should not emit debug")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("production logger should emit info")
	}
}

func TestNewDevelopmentLevel(t *testing.T) {
	logger := New("development")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("development logger should emit debug")
	}
}
