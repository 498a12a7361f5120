// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the process-wide structured logger. It wraps
// zap the way the ambient stack of this codebase always has: severities
// ordered TRACE < DEBUG < INFO < WARNING < ERROR < OFF, a text or JSON
// encoding, and a *log.Logger shim for collaborators (the fuse bridge's
// debug/error loggers) that only know about the standard library logger.
package logger

import (
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Severity int

const (
	LevelTrace Severity = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelOff
)

func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case LevelTrace, LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

var (
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	fsName  string
	minimum Severity
)

func init() {
	_ = Init("text", LevelInfo, "")
}

// Init (re)configures the default logger. format is "text" or "json".
func Init(format string, severity Severity, name string) error {
	mu.Lock()
	defer mu.Unlock()

	minimum = severity
	fsName = name

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(severity.zapLevel()))
	sugar = zap.New(core).Sugar()
	return nil
}

// UpdateDefaultLogger reconfigures format/name without changing severity.
func UpdateDefaultLogger(format, name string) {
	mu.RLock()
	sev := minimum
	mu.RUnlock()
	_ = Init(format, sev, name)
}

func enabled(s Severity) bool {
	mu.RLock()
	defer mu.RUnlock()
	return s >= minimum
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Tracef(format string, args ...any) {
	if enabled(LevelTrace) {
		get().Debugf(format, args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		get().Debugf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		get().Infof(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarning) {
		get().Warnf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		get().Errorf(format, args...)
	}
}

// legacyWriter adapts the severity-gated sugared logger to the
// io.Writer-based *log.Logger interface the fuse bridge's MountConfig
// expects for its ErrorLogger/DebugLogger fields.
type legacyWriter struct {
	level  Severity
	prefix string
}

func (w *legacyWriter) Write(p []byte) (int, error) {
	if enabled(w.level) {
		get().Desugar().WithOptions(zap.AddCallerSkip(2)).Sugar().
			Logf(w.level.zapLevel(), "%s%s", w.prefix, string(p))
	}
	return len(p), nil
}

// NewLegacyLogger returns a *log.Logger backed by the structured logger,
// for collaborators that only accept the standard library type.
func NewLegacyLogger(level Severity, prefix, name string) *log.Logger {
	return log.New(&legacyWriter{level: level, prefix: prefix + name + ": "}, "", 0)
}
