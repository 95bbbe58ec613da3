// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/logger"
)

// DefaultWatchDebounce collapses the burst of events an editor produces on save.
const DefaultWatchDebounce = 250 * time.Millisecond

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// Watch reloads the config file at path whenever it changes on disk and
// passes each successfully validated result to onChange. Invalid edits are
// logged and skipped so a half-written file never replaces a good config.
//
// The parent directory is watched rather than the file itself, because
// SaveTOML and most editors replace the file through a rename.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, DefaultWatchDebounce, onChange)
}

func watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.L().Warn("config watcher error", zap.Error(err))

		case <-timer.C:
			cfg, err := LoadFromPath(path)
			if err != nil {
				logger.L().Warn("ignoring invalid config edit", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.L().Info("config reloaded", zap.String("path", path))
			onChange(cfg)
		}
	}
}
