package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "console", false},
		{"DEBUG", "json", false},
		{"warn", "", false},
		{"loud", "console", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			continue
		}
		if logger != nil {
			_ = logger.Sync()
		}
	}
}

func TestForCLILevels(t *testing.T) {
	verbose, err := ForCLI(true)
	if err != nil {
		t.Fatal(err)
	}
	if ce := verbose.Check(zapcore.DebugLevel, "debug"); ce == nil {
		t.Error("verbose logger should enable debug")
	}

	quiet, err := ForCLI(false)
	if err != nil {
		t.Fatal(err)
	}
	if ce := quiet.Check(zapcore.InfoLevel, "info"); ce != nil {
		t.Error("quiet logger should drop info")
	}
}
