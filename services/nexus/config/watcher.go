// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the config file whenever it changes and calls onReload with
// the new traversal limits. Only the limits are hot-reloadable; everything
// else requires a restart. Watch blocks until ctx is cancelled.
//
// Inputs:
//   - ctx: Cancels the watch loop.
//   - path: Config file to watch. The parent directory is watched so
//     atomic rename-style rewrites are caught.
//   - onReload: Called with the new TraversalConfig after a valid reload.
//   - logger: Logger for watch events. nil uses slog.Default().
//
// Outputs:
//   - error: Non-nil if the watcher cannot be established.
func Watch(ctx context.Context, path string, onReload func(TraversalConfig), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "config_watcher"))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)

	// Editors and config maps fire several events per rewrite; a short
	// debounce collapses them into one reload.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", slog.String("error", err.Error()))

		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed, keeping previous limits",
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("config reloaded",
				slog.Int("max_depth", cfg.Traversal.MaxDepth),
				slog.Int("node_budget", cfg.Traversal.NodeBudget))
			onReload(cfg.Traversal)
		}
	}
}
