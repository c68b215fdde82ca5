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
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

// fakeIndex is an in-memory Index for tests.
type fakeIndex struct {
	mu sync.Mutex

	objects   map[string]*vectorindex.IndexedObject
	neighbors map[string][]vectorindex.Neighbor
	failNN    map[string]bool
	offline   bool

	// nnHook, when set, runs at the start of every NearestNeighbors call.
	// Lets tests inject side effects (e.g. cancelling the request context)
	// mid-hop.
	nnHook func(ref datatypes.KnowledgeObjectRef)

	nnCalls map[string]int
	patches []patchCall
}

type patchCall struct {
	ref   datatypes.KnowledgeObjectRef
	state string
	title string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		objects:   make(map[string]*vectorindex.IndexedObject),
		neighbors: make(map[string][]vectorindex.Neighbor),
		failNN:    make(map[string]bool),
		nnCalls:   make(map[string]int),
	}
}

// addObject registers an indexed idea-typed object unless a full ref is
// given via addTyped.
func (f *fakeIndex) addTyped(t datatypes.ObjectType, id, title, state, url string) datatypes.KnowledgeObjectRef {
	ref := datatypes.KnowledgeObjectRef{Type: t, ID: id}
	f.objects[ref.Key()] = &vectorindex.IndexedObject{
		Ref:   ref,
		Title: title,
		State: state,
		URL:   url,
	}
	return ref
}

func (f *fakeIndex) addIdea(id string) datatypes.KnowledgeObjectRef {
	return f.addTyped(datatypes.ObjectTypeIdea, id, "idea "+id, "active", "")
}

func (f *fakeIndex) link(from datatypes.KnowledgeObjectRef, to datatypes.KnowledgeObjectRef, score float64) {
	f.neighbors[from.Key()] = append(f.neighbors[from.Key()], vectorindex.Neighbor{Ref: to, Score: score})
}

func (f *fakeIndex) NearestNeighbors(ctx context.Context, ref datatypes.KnowledgeObjectRef, limit int) ([]vectorindex.Neighbor, error) {
	if f.nnHook != nil {
		f.nnHook(ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nnCalls[ref.Key()]++

	if f.offline {
		return nil, vectorindex.ErrIndexUnavailable
	}
	if f.failNN[ref.Key()] {
		return nil, fmt.Errorf("near-object query: %w", vectorindex.ErrConnectionTimeout)
	}

	out := f.neighbors[ref.Key()]
	if len(out) > limit {
		out = out[:limit]
	}
	res := make([]vectorindex.Neighbor, len(out))
	copy(res, out)
	return res, nil
}

func (f *fakeIndex) FetchByRef(ctx context.Context, ref datatypes.KnowledgeObjectRef) (*vectorindex.IndexedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, vectorindex.ErrIndexUnavailable
	}
	obj, ok := f.objects[ref.Key()]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", ref.Key(), vectorindex.ErrNotFound)
	}
	cp := *obj
	return &cp, nil
}

func (f *fakeIndex) PatchLifecycleState(ctx context.Context, ref datatypes.KnowledgeObjectRef, state, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return vectorindex.ErrIndexUnavailable
	}
	f.patches = append(f.patches, patchCall{ref: ref, state: state, title: title})
	if obj, ok := f.objects[ref.Key()]; ok {
		obj.State = state
		if title != "" {
			obj.Title = title
		}
	}
	return nil
}

func (f *fakeIndex) IsAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline
}

func (f *fakeIndex) callCount(ref datatypes.KnowledgeObjectRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nnCalls[ref.Key()]
}

func (f *fakeIndex) patchedRefs() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]patchCall, len(f.patches))
	copy(out, f.patches)
	return out
}

// newTestEngine wires an engine whose resolver falls back to the fake
// index's metadata.
func newTestEngine(index *fakeIndex, limits Limits) *Engine {
	resolver := NewResolver(index, stores.NewRegistry(nil), nil, nil, ResolverConfig{})
	return NewEngine(index, resolver, EngineConfig{Limits: limits, Workers: 4})
}
