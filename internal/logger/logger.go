// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger holds the process-wide zap logger.
//
// The TUI owns the terminal, so log output goes to a file. Until Init is
// called every package logs to a no-op logger, which keeps tests quiet.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// L returns the current logger. Safe for concurrent use.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Set replaces the global logger. Passing nil restores the no-op logger.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	global = l
}

// ParseLevel maps a config level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Init builds a JSON file logger at path and installs it globally.
// The returned function flushes, restores the no-op logger and closes the
// file; it should be deferred by main.
func Init(level, path string) (func(), error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return func() {}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return func() {}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return func() {}, fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl)
	l := zap.New(core).With(zap.Int("pid", os.Getpid()))
	Set(l)

	return func() {
		_ = l.Sync()
		Set(nil)
		_ = f.Close()
	}, nil
}
