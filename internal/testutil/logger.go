// Package testutil provides shared helpers for tests.
package testutil

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger for tests. The level defaults to warn so
// test output stays quiet, and can be raised via the LOG_LEVEL environment
// variable:
//
//	LOG_LEVEL=debug go test ./...
func NewLogger() *zap.Logger {
	level := zapcore.WarnLevel
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		level = zapcore.DebugLevel
	case "INFO":
		level = zapcore.InfoLevel
	case "WARN":
		level = zapcore.WarnLevel
	case "ERROR":
		level = zapcore.ErrorLevel
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
