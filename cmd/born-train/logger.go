package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a zap logger ("json" or "console") and adapts it to logr.
// verbosity n enables logr V(n) messages.
func newLogger(format string, verbosity int) (logr.Logger, func(), error) {
	var zc zap.Config
	switch format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return logr.Discard(), func() {}, fmt.Errorf("unknown log format %q (want json or console)", format)
	}
	if verbosity < 0 {
		verbosity = 0
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}
