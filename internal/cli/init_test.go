package cli

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		enabled slog.Level
	}{
		{"debug", true, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"bogus", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level)
			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if !logger.Enabled(ctx, tt.enabled) {
				t.Errorf("level %v not enabled", tt.enabled)
			}
			if slog.Default().Handler() != logger.Handler() {
				t.Error("logger not installed as default")
			}
		})
	}
}
