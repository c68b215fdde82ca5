// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog.Logger used by the nexus binaries.
//
// The service logs JSON to stdout for collection; the CLI logs
// human-readable text to stderr so piped command output stays clean.
// Optional file logging writes JSON alongside whichever default applies.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls the logger construction.
//
// The zero value produces an Info-level text logger on stderr.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	// Unrecognized values fall back to info.
	Level string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches the primary output to JSON. File output is always
	// JSON regardless.
	JSON bool

	// Output is the primary destination. Nil means os.Stderr.
	Output io.Writer

	// LogDir, when set, adds a JSON file handler writing to
	// {Service}_{YYYY-MM-DD}.log inside the directory. The directory is
	// created if missing. A leading ~ expands to the home directory.
	LogDir string
}

// Logger wraps slog.Logger so the file handle (if any) can be closed on
// shutdown.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New builds a Logger from cfg. File-handler setup failures are reported
// so the caller can decide whether to continue without file logging.
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	if cfg.JSON {
		handlers = append(handlers, slog.NewJSONHandler(out, opts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(out, opts))
	}

	l := &Logger{}
	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
		name := cfg.Service
		if name == "" {
			name = "nexus"
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02")))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		l.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &teeHandler{handlers: handlers}
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// Close syncs and closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// teeHandler fans every record out to all handlers, so the primary
// stream and the log file can use different formats.
type teeHandler struct {
	handlers []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}
