// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

// Builder is the entrypoint facade: it validates a raw network request,
// confirms the seed exists, runs the traversal and assembles the wire graph.
type Builder struct {
	index      Index
	engine     *Engine
	summarizer Summarizer
	logger     *slog.Logger
}

// NewBuilder creates the facade. Summarizer is optional; nil disables
// summary backfill.
func NewBuilder(index Index, engine *Engine, summarizer Summarizer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		index:      index,
		engine:     engine,
		summarizer: summarizer,
		logger:     logger.With(slog.String("component", "network_builder")),
	}
}

// Build validates the request and produces the semantic network graph.
//
// Validation order: seed type, then depth, then index availability, then
// seed existence (type-checked, since ids are not globally unique across
// types). Client input errors report immediately with no partial work.
//
// Inputs:
//   - ctx: Context for cancellation. Cancellation mid-traversal yields a
//     truncated graph, not an error.
//   - req: Raw wire request.
//
// Outputs:
//   - *datatypes.NetworkGraph: The assembled graph.
//   - error: ErrInvalidType, ErrInvalidDepth, ErrSeedNotFound or
//     ErrUpstreamUnavailable.
//
// Thread Safety: Safe for concurrent use.
func (b *Builder) Build(ctx context.Context, req datatypes.NetworkRequest) (*datatypes.NetworkGraph, error) {
	ctx, span := networkTracer.Start(ctx, "network.Build",
		trace.WithAttributes(
			attribute.String("seed.type", req.Type),
			attribute.String("seed.id", req.ID),
			attribute.Int("depth", req.Depth),
		),
	)
	defer span.End()

	start := time.Now()

	seedType, err := datatypes.ParseObjectType(req.Type)
	if err != nil {
		span.SetStatus(codes.Error, "invalid type")
		traversalsTotal.WithLabelValues(req.Type, "invalid_type").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, req.Type)
	}

	limits := b.engine.Limits()
	if req.Depth < 0 || req.Depth > limits.MaxDepth {
		span.SetStatus(codes.Error, "invalid depth")
		traversalsTotal.WithLabelValues(req.Type, "invalid_depth").Inc()
		return nil, fmt.Errorf("%w: %d (allowed 0-%d)", ErrInvalidDepth, req.Depth, limits.MaxDepth)
	}

	if !b.index.IsAvailable() {
		span.SetStatus(codes.Error, "index unavailable")
		traversalsTotal.WithLabelValues(req.Type, "unavailable").Inc()
		return nil, ErrUpstreamUnavailable
	}

	seed := datatypes.KnowledgeObjectRef{Type: seedType, ID: req.ID}
	if _, err := b.index.FetchByRef(ctx, seed); err != nil {
		if errors.Is(err, vectorindex.ErrNotFound) {
			span.SetStatus(codes.Error, "seed not found")
			traversalsTotal.WithLabelValues(req.Type, "seed_not_found").Inc()
			return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, seed.Key())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed lookup failed")
		traversalsTotal.WithLabelValues(req.Type, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	result := b.engine.Expand(ctx, datatypes.TraversalRequest{
		Seed:             seed,
		MaxDepth:         req.Depth,
		MaxFanout:        req.MaxFanout,
		IncludeSummaries: req.IncludeSummaries,
	})

	if req.IncludeSummaries && b.summarizer != nil {
		backfillSummaries(ctx, b.summarizer, b.index, result, b.logger)
	}

	graph := Assemble(result, req.IncludeSummaries)

	traversalsTotal.WithLabelValues(req.Type, "ok").Inc()
	traversalDuration.WithLabelValues(req.Type).Observe(time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "built")

	return graph, nil
}
