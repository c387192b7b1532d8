// Package logging builds the zap loggers used across scout.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds a logger writing to stderr. level is a zap level name such as
// "debug" or "warn"; format is FormatConsole or FormatJSON.
func New(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var enc zapcore.EncoderConfig
	switch strings.ToLower(format) {
	case "", FormatConsole:
		format = FormatConsole
		enc = zap.NewDevelopmentEncoderConfig()
	case FormatJSON:
		enc = zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         strings.ToLower(format),
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// ForCLI returns a console logger at debug level when verbose and at warn
// level otherwise, so progress output stays readable.
func ForCLI(verbose bool) (*zap.Logger, error) {
	if verbose {
		return New("debug", FormatConsole)
	}
	return New("warn", FormatConsole)
}
