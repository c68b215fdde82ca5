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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
)

func newTestBuilder(index *fakeIndex) *Builder {
	resolver := NewResolver(index, stores.NewRegistry(nil), nil, nil, ResolverConfig{})
	engine := NewEngine(index, resolver, EngineConfig{Workers: 4})
	return NewBuilder(index, engine, nil, nil)
}

func TestBuilder_ValidationOrder(t *testing.T) {
	index := newFakeIndex()
	index.addIdea("a")
	builder := newTestBuilder(index)

	t.Run("invalid type", func(t *testing.T) {
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "document", ID: "a", Depth: 1})
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("invalid type reported before depth", func(t *testing.T) {
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "document", ID: "a", Depth: -1})
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "idea", ID: "a", Depth: -1})
		assert.ErrorIs(t, err, ErrInvalidDepth)
	})

	t.Run("absurd depth rejected up front", func(t *testing.T) {
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "idea", ID: "a", Depth: 10000})
		assert.ErrorIs(t, err, ErrInvalidDepth)
	})

	t.Run("seed not found", func(t *testing.T) {
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "idea", ID: "nope", Depth: 1})
		assert.ErrorIs(t, err, ErrSeedNotFound)
	})

	t.Run("seed is type checked, not just id checked", func(t *testing.T) {
		// "a" exists as an idea, not as a task.
		_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "task", ID: "a", Depth: 1})
		assert.ErrorIs(t, err, ErrSeedNotFound)
	})
}

func TestBuilder_IndexUnavailableIsFatal(t *testing.T) {
	index := newFakeIndex()
	index.addIdea("a")
	index.offline = true
	builder := newTestBuilder(index)

	_, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "idea", ID: "a", Depth: 1})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestBuilder_Success(t *testing.T) {
	index := newFakeIndex()
	a := index.addIdea("a")
	b := index.addIdea("b")
	index.link(a, b, 0.9)
	builder := newTestBuilder(index)

	graph, err := builder.Build(context.Background(), datatypes.NetworkRequest{Type: "idea", ID: "a", Depth: 1})
	require.NoError(t, err)

	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.False(t, graph.Truncated)
	// Summaries were not requested; the field must be absent.
	for _, n := range graph.Nodes {
		assert.Nil(t, n.Summary)
	}
}

// fixedSummarizer returns the same text for any content.
type fixedSummarizer struct{ text string }

func (s *fixedSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	return s.text, nil
}

func TestBuilder_SummaryBackfill(t *testing.T) {
	index := newFakeIndex()
	a := index.addIdea("a")
	index.objects[a.Key()].Content = "long indexed content"

	resolver := NewResolver(index, stores.NewRegistry(nil), nil, nil, ResolverConfig{})
	engine := NewEngine(index, resolver, EngineConfig{Workers: 2})
	builder := NewBuilder(index, engine, &fixedSummarizer{text: "a short summary"}, nil)

	graph, err := builder.Build(context.Background(), datatypes.NetworkRequest{
		Type: "idea", ID: "a", Depth: 0, IncludeSummaries: true,
	})
	require.NoError(t, err)

	require.Len(t, graph.Nodes, 1)
	require.NotNil(t, graph.Nodes[0].Summary)
	assert.Equal(t, "a short summary", *graph.Nodes[0].Summary)
}
