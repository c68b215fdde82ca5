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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

func result(objType, id string, certainty float64) datatypes.KnowledgeObjectResult {
	r := datatypes.KnowledgeObjectResult{
		ObjectID:   id,
		ObjectType: objType,
	}
	r.Additional.Certainty = &certainty
	return r
}

func TestParseNeighbors(t *testing.T) {
	anchor := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeIdea, ID: "a"}

	t.Run("drops the anchor itself", func(t *testing.T) {
		results := []datatypes.KnowledgeObjectResult{
			result("idea", "a", 1.0),
			result("idea", "b", 0.9),
		}
		neighbors := parseNeighbors(results, anchor, 5)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "b", neighbors[0].Ref.ID)
	})

	t.Run("drops cross-type results", func(t *testing.T) {
		results := []datatypes.KnowledgeObjectResult{
			result("task", "b", 0.95),
			result("idea", "c", 0.8),
		}
		neighbors := parseNeighbors(results, anchor, 5)
		require.Len(t, neighbors, 1)
		assert.Equal(t, datatypes.ObjectTypeIdea, neighbors[0].Ref.Type)
	})

	t.Run("honors the limit after filtering", func(t *testing.T) {
		results := []datatypes.KnowledgeObjectResult{
			result("idea", "a", 1.0),
			result("idea", "b", 0.9),
			result("idea", "c", 0.8),
			result("idea", "d", 0.7),
		}
		neighbors := parseNeighbors(results, anchor, 2)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "b", neighbors[0].Ref.ID)
		assert.Equal(t, "c", neighbors[1].Ref.ID)
	})

	t.Run("clamps scores into the unit interval", func(t *testing.T) {
		results := []datatypes.KnowledgeObjectResult{
			result("idea", "b", 1.2),
			result("idea", "c", -0.1),
		}
		neighbors := parseNeighbors(results, anchor, 5)
		require.Len(t, neighbors, 2)
		assert.Equal(t, 1.0, neighbors[0].Score)
		assert.Equal(t, 0.0, neighbors[1].Score)
	})

	t.Run("missing certainty defaults to zero", func(t *testing.T) {
		r := datatypes.KnowledgeObjectResult{ObjectID: "b", ObjectType: "idea"}
		neighbors := parseNeighbors([]datatypes.KnowledgeObjectResult{r}, anchor, 5)
		require.Len(t, neighbors, 1)
		assert.Zero(t, neighbors[0].Score)
	})

	t.Run("empty input", func(t *testing.T) {
		neighbors := parseNeighbors(nil, anchor, 5)
		assert.Empty(t, neighbors)
	})
}

func TestLifecyclePatchProps(t *testing.T) {
	now := time.Unix(1756160000, 500*int64(time.Millisecond))

	t.Run("updatedAt is written as Unix millis", func(t *testing.T) {
		props := lifecyclePatchProps("closed", "", now)
		// The class schema declares updatedAt as int; a string here would
		// make Weaviate reject the whole merge.
		updatedAt, ok := props[datatypes.PropUpdatedAt].(int64)
		require.True(t, ok, "updatedAt must be an integer, got %T", props[datatypes.PropUpdatedAt])
		assert.Equal(t, now.UnixMilli(), updatedAt)
		assert.Equal(t, "closed", props[datatypes.PropState])
	})

	t.Run("empty title leaves the stored title untouched", func(t *testing.T) {
		props := lifecyclePatchProps("open", "", now)
		_, present := props[datatypes.PropTitle]
		assert.False(t, present)
	})

	t.Run("non-empty title is merged", func(t *testing.T) {
		props := lifecyclePatchProps("open", "nexus#42 Fix frontier dedupe", now)
		assert.Equal(t, "nexus#42 Fix frontier dedupe", props[datatypes.PropTitle])
	})
}
