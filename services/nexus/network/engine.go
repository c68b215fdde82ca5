// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package network builds semantic networks: given one knowledge object and a
// traversal depth, it expands hop by hop through type-filtered
// nearest-neighbor queries against the vector index and stitches the results
// into a deduplicated, weighted graph.
package network

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

var networkTracer = otel.Tracer("nexus.network")

// -----------------------------------------------------------------------------
// Engine Configuration
// -----------------------------------------------------------------------------

// Limits are the traversal work bounds. They are hot-reloadable through
// Engine.UpdateLimits.
type Limits struct {
	// MaxDepth is the largest depth a request may ask for.
	// Default: 5
	MaxDepth int

	// DefaultFanout is the per-node candidate cap when the request does
	// not specify one.
	// Default: 8
	DefaultFanout int

	// NodeBudget is the global ceiling on nodes visited per traversal.
	// Hitting it truncates the traversal instead of failing it.
	// Default: 250
	NodeBudget int
}

// EngineConfig configures the traversal engine.
type EngineConfig struct {
	Limits Limits

	// Workers bounds concurrent per-node expansion within a hop. Hops
	// themselves remain sequential.
	// Default: 8
	Workers int

	// Logger for engine operations. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultLimits returns the default traversal work bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:      5,
		DefaultFanout: 8,
		NodeBudget:    250,
	}
}

func (c *EngineConfig) applyDefaults() {
	defaults := DefaultLimits()
	if c.Limits.MaxDepth == 0 {
		c.Limits.MaxDepth = defaults.MaxDepth
	}
	if c.Limits.DefaultFanout == 0 {
		c.Limits.DefaultFanout = defaults.DefaultFanout
	}
	if c.Limits.NodeBudget == 0 {
		c.Limits.NodeBudget = defaults.NodeBudget
	}
	if c.Workers == 0 {
		c.Workers = 8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine performs breadth-limited, type-aware graph expansion from a seed.
//
// Expansion is hop-synchronous: all frontier nodes of hop k are expanded
// (concurrently, into per-node buffers) before any hop k+1 work begins, and
// the buffers are merged into the shared accumulators once per hop. Hop k+1
// cannot start earlier because fan-out limits and the visited set are
// evaluated at the hop boundary.
//
// Thread Safety: Safe for concurrent use; each Expand call owns its state.
type Engine struct {
	index    Index
	resolver *Resolver
	workers  int
	logger   *slog.Logger

	limitsMu sync.RWMutex
	limits   Limits
}

// NewEngine creates a traversal engine.
func NewEngine(index Index, resolver *Resolver, config EngineConfig) *Engine {
	config.applyDefaults()
	return &Engine{
		index:    index,
		resolver: resolver,
		workers:  config.Workers,
		logger:   config.Logger.With(slog.String("component", "traversal_engine")),
		limits:   config.Limits,
	}
}

// Limits returns the current traversal work bounds.
func (e *Engine) Limits() Limits {
	e.limitsMu.RLock()
	defer e.limitsMu.RUnlock()
	return e.limits
}

// UpdateLimits replaces the traversal work bounds. Requests already in
// flight keep the bounds they started with.
func (e *Engine) UpdateLimits(limits Limits) {
	e.limitsMu.Lock()
	e.limits = limits
	e.limitsMu.Unlock()
	e.logger.Info("traversal limits updated",
		slog.Int("max_depth", limits.MaxDepth),
		slog.Int("default_fanout", limits.DefaultFanout),
		slog.Int("node_budget", limits.NodeBudget))
}

// frontierEntry is one queued node awaiting expansion.
type frontierEntry struct {
	ref datatypes.KnowledgeObjectRef
	hop int
}

// hopExpansion is the per-node buffer filled by a worker during a hop. It is
// merged into the shared accumulators at the hop boundary, so workers never
// touch shared state.
type hopExpansion struct {
	node      datatypes.GraphNode
	neighbors []vectorindex.Neighbor
}

// Expand runs the traversal and returns the accumulated graph.
//
// Cancellation and budget exhaustion are not errors: the engine returns
// whatever has been accumulated with Truncated set, so a caller always gets
// a usable partial graph. The seed is assumed validated (see Builder).
//
// Inputs:
//   - ctx: Context for cancellation. Honored at hop boundaries and inside
//     every I/O call.
//   - req: Traversal parameters. MaxFanout 0 means the configured default.
//
// Outputs:
//   - *datatypes.TraversalResult: The deduplicated node and edge sets.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Expand(ctx context.Context, req datatypes.TraversalRequest) *datatypes.TraversalResult {
	limits := e.Limits()
	fanout := req.MaxFanout
	if fanout <= 0 {
		fanout = limits.DefaultFanout
	}

	ctx, span := networkTracer.Start(ctx, "network.Expand",
		trace.WithAttributes(
			attribute.String("seed", req.Seed.Key()),
			attribute.Int("max_depth", req.MaxDepth),
			attribute.Int("fanout", fanout),
		),
	)
	defer span.End()

	start := time.Now()

	t := &traversal{
		engine:  e,
		fanout:  fanout,
		budget:  limits.NodeBudget,
		visited: map[datatypes.KnowledgeObjectRef]struct{}{req.Seed: {}},
		nodes:   make(map[datatypes.KnowledgeObjectRef]datatypes.GraphNode),
		edges:   make(map[string]datatypes.GraphEdge),
	}

	frontier := []frontierEntry{{ref: req.Seed, hop: 0}}

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			truncationsTotal.WithLabelValues("cancelled").Inc()
			t.truncated = true
			// Resolution of the remaining frontier would need the very
			// I/O the caller just cancelled; emit placeholders instead.
			for _, entry := range frontier {
				t.recordNode(datatypes.GraphNode{
					Ref:         entry.ref,
					Title:       entry.ref.ID,
					State:       "unknown",
					HopDistance: entry.hop,
				})
			}
			break
		}

		// Budget is evaluated at the hop boundary. Once exhausted, nodes
		// already queued are still resolved and included, but nothing
		// expands further.
		expand := !t.truncated
		if len(t.visited) > t.budget && expand {
			truncationsTotal.WithLabelValues("budget").Inc()
			t.truncated = true
			expand = false
		}

		expansions := e.expandHop(ctx, frontier, req.MaxDepth, fanout, expand)
		frontier = t.merge(frontier, expansions)
	}

	// Cancellation can also land while a hop's workers are in flight: the
	// neighbor queries all fail, the next frontier comes back empty and the
	// loop exits normally. The result is still partial and must say so.
	if ctx.Err() != nil && !t.truncated {
		truncationsTotal.WithLabelValues("cancelled").Inc()
		t.truncated = true
	}

	e.logger.Info("traversal complete",
		slog.String("seed", req.Seed.Key()),
		slog.Int("nodes", len(t.nodes)),
		slog.Int("edges", len(t.edges)),
		slog.Bool("truncated", t.truncated),
		slog.Duration("elapsed", time.Since(start)))

	graphNodes.Observe(float64(len(t.nodes)))
	span.SetAttributes(
		attribute.Int("nodes", len(t.nodes)),
		attribute.Int("edges", len(t.edges)),
		attribute.Bool("truncated", t.truncated),
	)

	return t.result()
}

// expandHop resolves and expands every frontier entry of one hop
// concurrently, each worker writing only to its own buffer slot.
func (e *Engine) expandHop(ctx context.Context, frontier []frontierEntry, maxDepth, fanout int, expand bool) []hopExpansion {
	expansions := make([]hopExpansion, len(frontier))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range frontier {
		g.Go(func() error {
			expansions[i].node = e.resolver.Resolve(ctx, entry.ref, entry.hop)

			if !expand || entry.hop >= maxDepth {
				return nil
			}

			neighbors, err := e.index.NearestNeighbors(ctx, entry.ref, fanout)
			if err != nil {
				// No retry inside a hop: the node simply stops
				// expanding and the rest of the traversal proceeds.
				neighborQueriesTotal.WithLabelValues("error").Inc()
				e.logger.Warn("neighbor query failed, node will not expand",
					slog.String("ref", entry.ref.Key()),
					slog.String("error", err.Error()))
				return nil
			}
			neighborQueriesTotal.WithLabelValues("ok").Inc()
			expansions[i].neighbors = neighbors
			return nil
		})
	}
	_ = g.Wait() // Workers record failures in their buffers, never return them.

	return expansions
}

// -----------------------------------------------------------------------------
// Per-request accumulators
// -----------------------------------------------------------------------------

// traversal holds the accumulators of one Expand call. It is touched only
// by the hop loop goroutine; workers hand their buffers back through
// expandHop's return value.
type traversal struct {
	engine    *Engine
	fanout    int
	budget    int
	truncated bool

	// visited marks refs at enqueue time, so a ref queued by two nodes of
	// the same hop still enters the frontier exactly once.
	visited map[datatypes.KnowledgeObjectRef]struct{}
	nodes   map[datatypes.KnowledgeObjectRef]datatypes.GraphNode
	edges   map[string]datatypes.GraphEdge
}

// merge folds one hop's expansion buffers into the accumulators and returns
// the next frontier.
func (t *traversal) merge(frontier []frontierEntry, expansions []hopExpansion) []frontierEntry {
	var next []frontierEntry

	for i, entry := range frontier {
		exp := expansions[i]
		t.recordNode(exp.node)

		if len(exp.neighbors) == 0 {
			continue
		}

		// Candidates are ordered by descending score with ref-key
		// tie-break before the fan-out cap applies, so graphs are
		// deterministic for a fixed index state.
		candidates := make([]vectorindex.Neighbor, len(exp.neighbors))
		copy(candidates, exp.neighbors)
		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].Score != candidates[b].Score {
				return candidates[a].Score > candidates[b].Score
			}
			return candidates[a].Ref.Compare(candidates[b].Ref) < 0
		})
		if len(candidates) > t.fanout {
			candidates = candidates[:t.fanout]
		}

		for _, cand := range candidates {
			if cand.Ref == entry.ref {
				continue // self-similarity
			}

			// Edges to already-visited nodes are recorded, not
			// dropped: rediscovery back-edges carry real similarity
			// signal and render as cycles.
			t.recordEdge(datatypes.GraphEdge{
				From:        entry.ref,
				To:          cand.Ref,
				Score:       cand.Score,
				HopDistance: entry.hop + 1,
			})

			if _, seen := t.visited[cand.Ref]; !seen {
				t.visited[cand.Ref] = struct{}{}
				next = append(next, frontierEntry{ref: cand.Ref, hop: entry.hop + 1})
			}
		}
	}

	return next
}

// recordNode stores a node, keeping the first (shallowest) discovery. The
// frontier never queues a ref twice, so a collision only happens for
// placeholder re-emission on cancellation.
func (t *traversal) recordNode(node datatypes.GraphNode) {
	if existing, ok := t.nodes[node.Ref]; ok && existing.HopDistance <= node.HopDistance {
		return
	}
	t.nodes[node.Ref] = node
}

// recordEdge merges by unordered pair, keeping the highest similarity score
// and the smallest hop distance observed.
func (t *traversal) recordEdge(edge datatypes.GraphEdge) {
	key := edge.PairKey()
	existing, ok := t.edges[key]
	if !ok {
		t.edges[key] = edge
		return
	}
	if edge.Score > existing.Score {
		existing.Score = edge.Score
	}
	if edge.HopDistance < existing.HopDistance {
		existing.HopDistance = edge.HopDistance
	}
	t.edges[key] = existing
}

func (t *traversal) result() *datatypes.TraversalResult {
	res := &datatypes.TraversalResult{
		Nodes:     make([]*datatypes.GraphNode, 0, len(t.nodes)),
		Edges:     make([]*datatypes.GraphEdge, 0, len(t.edges)),
		Truncated: t.truncated,
	}
	for _, n := range t.nodes {
		node := n
		res.Nodes = append(res.Nodes, &node)
	}
	for _, e := range t.edges {
		edge := e
		res.Edges = append(res.Edges, &edge)
	}
	return res
}
