// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorindex

import (
	"log/slog"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Degradation Handler Interface
// -----------------------------------------------------------------------------

// DegradationHandler is notified of vector index availability changes.
//
// Components that depend on the index should implement this interface to
// handle degradation gracefully: switch to fallback behavior on OnDegraded,
// restore normal behavior on OnRecovered.
//
// Thread Safety: Implementations must be safe for concurrent use.
type DegradationHandler interface {
	// OnDegraded is called when the index becomes unavailable.
	OnDegraded(reason string)

	// OnRecovered is called when the index becomes available again.
	OnRecovered()
}

// -----------------------------------------------------------------------------
// Logging Handler
// -----------------------------------------------------------------------------

// LoggingDegradationHandler logs availability transitions and tracks whether
// the index is currently degraded. Useful as a default handler and in health
// reporting.
//
// Thread Safety: Safe for concurrent use.
type LoggingDegradationHandler struct {
	logger   *slog.Logger
	degraded atomic.Bool
}

// NewLoggingDegradationHandler creates a handler that logs transitions.
func NewLoggingDegradationHandler(logger *slog.Logger) *LoggingDegradationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingDegradationHandler{
		logger: logger.With(slog.String("component", "vectorindex_degradation")),
	}
}

// OnDegraded records the degraded state and logs the reason.
func (h *LoggingDegradationHandler) OnDegraded(reason string) {
	h.degraded.Store(true)
	h.logger.Warn("vector index degraded", slog.String("reason", reason))
}

// OnRecovered clears the degraded state.
func (h *LoggingDegradationHandler) OnRecovered() {
	h.degraded.Store(false)
	h.logger.Info("vector index recovered")
}

// IsDegraded reports the last observed availability state.
func (h *LoggingDegradationHandler) IsDegraded() bool {
	return h.degraded.Load()
}
