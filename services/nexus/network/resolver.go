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

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/metacache"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
)

// ResolverConfig configures the object resolver.
type ResolverConfig struct {
	// LiveLookupTimeout bounds the best-effort authoritative state lookup.
	// A slow tracker degrades to cached state instead of stalling the hop.
	// Default: 2s
	LiveLookupTimeout time.Duration

	// PatchTimeout bounds the detached index patch-back write.
	// Default: 10s
	PatchTimeout time.Duration

	// PatchEnabled controls whether stale index metadata is repaired.
	// Default: true when a tracker client is present.
	PatchEnabled bool

	// Logger for resolver operations. Default: slog.Default()
	Logger *slog.Logger
}

// Resolver maps a knowledge object reference to its display metadata.
//
// Resolution order: warm cache, then the type's record store, then the
// indexed copy, then a placeholder. For issue objects it additionally
// performs a best-effort live tracker lookup; a live state that disagrees
// with the indexed copy wins for the returned node and triggers a detached
// patch of the index metadata.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	index   Index
	stores  *stores.Registry
	tracker *stores.TrackerClient
	cache   *metacache.Cache

	liveLookupTimeout time.Duration
	patchTimeout      time.Duration
	patchEnabled      bool

	group  singleflight.Group
	logger *slog.Logger

	// patchHook, when set, observes completed patch-back attempts. Tests
	// use it to synchronize with the detached write.
	patchHook func(ref datatypes.KnowledgeObjectRef, err error)
}

// NewResolver creates a resolver. Tracker and cache are optional; a nil
// tracker disables live state lookups, a nil cache disables the warm tier.
func NewResolver(index Index, registry *stores.Registry, tracker *stores.TrackerClient, cache *metacache.Cache, config ResolverConfig) *Resolver {
	if config.LiveLookupTimeout == 0 {
		config.LiveLookupTimeout = 2 * time.Second
	}
	if config.PatchTimeout == 0 {
		config.PatchTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Resolver{
		index:             index,
		stores:            registry,
		tracker:           tracker,
		cache:             cache,
		liveLookupTimeout: config.LiveLookupTimeout,
		patchTimeout:      config.PatchTimeout,
		patchEnabled:      config.PatchEnabled && tracker != nil,
		logger:            config.Logger.With(slog.String("component", "object_resolver")),
	}
}

// Resolve produces the display fields for a graph node. It never fails: a
// node that cannot be resolved to metadata comes back as a placeholder so
// the graph's edge structure stays consistent.
//
// Inputs:
//   - ctx: Context for cancellation. Bounds all lookups.
//   - ref: Object identity to resolve.
//   - hop: Hop distance at which the node was discovered.
//
// Outputs:
//   - datatypes.GraphNode: Resolved node. Placeholder metadata on failure.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, ref datatypes.KnowledgeObjectRef, hop int) datatypes.GraphNode {
	v, _, _ := r.group.Do(ref.Key(), func() (interface{}, error) {
		return r.resolveOnce(ctx, ref), nil
	})
	node := v.(datatypes.GraphNode)
	node.HopDistance = hop
	return node
}

func (r *Resolver) resolveOnce(ctx context.Context, ref datatypes.KnowledgeObjectRef) datatypes.GraphNode {
	meta, source := r.lookupMetadata(ctx, ref)
	if meta == nil {
		resolutionFallbacks.WithLabelValues("placeholder").Inc()
		r.logger.Warn("resolution failed, emitting placeholder node",
			slog.String("ref", ref.Key()))
		return datatypes.GraphNode{
			Ref:   ref,
			Title: ref.ID,
			State: "unknown",
		}
	}

	node := datatypes.GraphNode{
		Ref:     ref,
		Title:   meta.Title,
		State:   meta.State,
		URL:     meta.URL,
		Summary: meta.Summary,
	}

	if ref.Type == datatypes.ObjectTypeIssue {
		r.refreshIssue(ctx, &node, meta)
	}

	if r.cache != nil && source != "cache" {
		if err := r.cache.Put(ref, &stores.DisplayMetadata{
			Title:   node.Title,
			State:   node.State,
			URL:     node.URL,
			Summary: node.Summary,
		}); err != nil {
			r.logger.Debug("cache put failed", slog.String("ref", ref.Key()), slog.String("error", err.Error()))
		}
	}

	return node
}

// lookupMetadata walks the tiers: warm cache, record store, indexed copy.
// Returns nil when every tier fails, plus the tier that answered.
func (r *Resolver) lookupMetadata(ctx context.Context, ref datatypes.KnowledgeObjectRef) (*stores.DisplayMetadata, string) {
	if r.cache != nil {
		if meta, err := r.cache.Get(ref); err == nil {
			resolutionFallbacks.WithLabelValues("cache").Inc()
			return meta, "cache"
		}
	}

	if store := r.stores.StoreFor(ref.Type); store != nil {
		meta, err := store.GetMetadata(ctx, ref.ID)
		if err == nil {
			return meta, "store"
		}
		if !errors.Is(err, stores.ErrRecordNotFound) {
			r.logger.Warn("record store lookup failed, falling back to index",
				slog.String("ref", ref.Key()),
				slog.String("error", err.Error()))
		}
	}

	obj, err := r.index.FetchByRef(ctx, ref)
	if err != nil {
		return nil, ""
	}
	resolutionFallbacks.WithLabelValues("index").Inc()
	return &stores.DisplayMetadata{
		Title:   obj.Title,
		State:   obj.State,
		URL:     obj.URL,
		Summary: obj.Summary,
	}, "index"
}

// refreshIssue applies issue-specific resolution: a best-effort live tracker
// lookup for the volatile lifecycle state, the composite "owner/repo#number
// title" rendering, and a detached index patch when the live state disagrees
// with the cached copy. Live lookup failures degrade silently to the cached
// state.
func (r *Resolver) refreshIssue(ctx context.Context, node *datatypes.GraphNode, cached *stores.DisplayMetadata) {
	if r.tracker == nil {
		return
	}

	issueRef, err := r.tracker.ParseIssueURL(node.URL)
	if err != nil {
		// URL does not parse as a tracker issue; keep the raw title.
		return
	}

	liveCtx, cancel := context.WithTimeout(ctx, r.liveLookupTimeout)
	defer cancel()

	status, err := r.tracker.GetCurrentState(liveCtx, issueRef)
	if err != nil {
		r.logger.Debug("live issue lookup failed, using cached state",
			slog.String("issue", issueRef.Slug()),
			slog.String("error", err.Error()))
		node.Title = formatIssueTitle(issueRef, node.Title)
		return
	}

	stale := status.State != cached.State || (status.Title != "" && status.Title != cached.Title)
	node.State = status.State
	title := node.Title
	if status.Title != "" {
		title = status.Title
	}
	node.Title = formatIssueTitle(issueRef, title)

	if stale && r.patchEnabled {
		r.patchIndexAsync(node.Ref, status.State, status.Title)
	}
}

// patchIndexAsync repairs stale index metadata in a detached goroutine. The
// write is best-effort and never blocks or fails the traversal.
func (r *Resolver) patchIndexAsync(ref datatypes.KnowledgeObjectRef, state, title string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.patchTimeout)
		defer cancel()

		err := r.index.PatchLifecycleState(ctx, ref, state, title)
		if err != nil {
			indexPatchesTotal.WithLabelValues("error").Inc()
			r.logger.Warn("index metadata patch failed",
				slog.String("ref", ref.Key()),
				slog.String("error", err.Error()))
		} else {
			indexPatchesTotal.WithLabelValues("ok").Inc()
			r.logger.Debug("patched stale index metadata",
				slog.String("ref", ref.Key()),
				slog.String("state", state))
		}

		if r.cache != nil {
			_ = r.cache.Invalidate(ref)
		}
		if r.patchHook != nil {
			r.patchHook(ref, err)
		}
	}()
}

// formatIssueTitle renders the composite issue title. The owner prefix is
// dropped to match the tracker's own short-slug rendering.
func formatIssueTitle(ref stores.IssueRef, title string) string {
	return fmt.Sprintf("%s#%d %s", ref.Repo, ref.Number, title)
}
