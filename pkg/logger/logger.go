// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger is the process-wide zap logger.
//
// The package-level functions keep call sites terse; code that wants an
// injected logger can take the *zap.SugaredLogger from [Get]. Initialize
// configures output once flags are parsed, and an init default means early
// callers never hit a nil logger.
package logger

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(build(unstructuredLogs(), false))
}

func get() *zap.SugaredLogger { return singleton.Load() }

// Get returns the underlying *zap.SugaredLogger for injection into structs.
func Get() *zap.SugaredLogger { return get() }

// Set replaces the process logger. Intended for tests that capture output;
// production code configures logging through [Initialize].
func Set(l *zap.SugaredLogger) { singleton.Store(l) }

// Debug logs at debug level.
func Debug(msg string) { get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(msg string, args ...any) { get().Debugf(msg, args...) }

// Debugw logs at debug level with structured key-value pairs.
func Debugw(msg string, keysAndValues ...any) { get().Debugw(msg, keysAndValues...) }

// Info logs at info level.
func Info(msg string) { get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(msg string, args ...any) { get().Infof(msg, args...) }

// Infow logs at info level with structured key-value pairs.
func Infow(msg string, keysAndValues ...any) { get().Infow(msg, keysAndValues...) }

// Warn logs at warning level.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs a formatted message at warning level.
func Warnf(msg string, args ...any) { get().Warnf(msg, args...) }

// Warnw logs at warning level with structured key-value pairs.
func Warnw(msg string, keysAndValues ...any) { get().Warnw(msg, keysAndValues...) }

// Error logs at error level.
func Error(msg string) { get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(msg string, args ...any) { get().Errorf(msg, args...) }

// Errorw logs at error level with structured key-value pairs.
func Errorw(msg string, keysAndValues ...any) { get().Errorw(msg, keysAndValues...) }

// Panicf logs a formatted message at panic level, then panics.
func Panicf(msg string, args ...any) { get().Panicf(msg, args...) }

// Fatalf logs a formatted message at fatal level, then exits.
func Fatalf(msg string, args ...any) { get().Fatalf(msg, args...) }

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	// Syncing a terminal fails on some platforms; nothing useful to do.
	_ = get().Sync()
}

// Initialize configures the process logger: JSON output by default, console
// output when UNSTRUCTURED_LOGS=true, debug level when the debug flag is set.
// Call after flags are bound.
func Initialize() {
	singleton.Store(build(unstructuredLogs(), viper.GetBool("debug")))
}

func build(unstructured bool, debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if unstructured {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Never fail startup over logger construction.
		l = zap.NewNop()
	}
	return l.Sugar()
}

func unstructuredLogs() bool {
	unstructured, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		// Unset or unparseable means the human-readable default.
		return true
	}
	return unstructured
}
