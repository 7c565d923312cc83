package logging

import (
	"context"
	"log/slog"
	"testing"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"streaming": "debug",
			"announce":  "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"streaming", true, true, true},
		{"announce", false, false, true},
		{"server", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestLateInitializeRelevelsExistingLoggers(t *testing.T) {
	resetState()

	// Logger created before Initialize defaults to info.
	handler := GetLogger("scene").Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("pre-init logger should not be debug-enabled")
	}

	Initialize(Config{Level: "debug", Format: "text"})

	handler = GetLogger("scene").Handler()
	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should be debug-enabled after Initialize with debug level")
	}
}
