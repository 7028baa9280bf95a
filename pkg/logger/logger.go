// Package logger provides opinionated logging capabilities for parley
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a console logger at Info, or Debug when debug is set. It
// writes to stderr so that command output on stdout stays machine readable.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerAt(zap.InfoLevel, debug)
}

// NewLoggerAt is NewLogger with base level instead of Info.
func NewLoggerAt(level zapcore.Level, debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	return zap.New(core, zap.AddCaller())
}

// Truncate shortens s for log previews, flattening newlines.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	flat := make([]rune, 0, len(runes))
	for _, r := range runes {
		if r == '\n' {
			r = ' '
		}
		flat = append(flat, r)
	}
	if len(flat) <= maxLen {
		return string(flat)
	}
	return string(flat[:maxLen]) + "..."
}
