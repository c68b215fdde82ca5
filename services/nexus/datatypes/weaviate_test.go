// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeaviateID(t *testing.T) {
	ref := KnowledgeObjectRef{Type: ObjectTypeIssue, ID: "1337"}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, WeaviateID(ref), WeaviateID(ref))
	})

	t.Run("valid uuid shape", func(t *testing.T) {
		id := string(WeaviateID(ref))
		assert.Len(t, id, 36)
	})

	t.Run("type disambiguates same id", func(t *testing.T) {
		other := KnowledgeObjectRef{Type: ObjectTypeTask, ID: "1337"}
		assert.NotEqual(t, WeaviateID(ref), WeaviateID(other))
	})
}

func TestParseGraphQLResponse(t *testing.T) {
	t.Run("well formed response", func(t *testing.T) {
		resp := &models.GraphQLResponse{
			Data: map[string]models.JSONObject{
				"Get": map[string]interface{}{
					"KnowledgeObject": []interface{}{
						map[string]interface{}{
							"objectId":   "42",
							"objectType": "idea",
							"title":      "Aleutian routing",
							"state":      "active",
							"_additional": map[string]interface{}{
								"id":        "8d6e1cbe-0000-0000-0000-000000000000",
								"certainty": 0.91,
							},
						},
					},
				},
			},
		}

		parsed, err := ParseGraphQLResponse[KnowledgeObjectQueryResponse](resp)
		require.NoError(t, err)
		require.Len(t, parsed.Get.KnowledgeObject, 1)

		got := parsed.Get.KnowledgeObject[0]
		assert.Equal(t, "42", got.ObjectID)
		assert.Equal(t, "Aleutian routing", got.Title)
		require.NotNil(t, got.Additional.Certainty)
		assert.InDelta(t, 0.91, *got.Additional.Certainty, 1e-9)
		assert.Equal(t, KnowledgeObjectRef{Type: ObjectTypeIdea, ID: "42"}, got.Ref())
	})

	t.Run("empty result set", func(t *testing.T) {
		resp := &models.GraphQLResponse{
			Data: map[string]models.JSONObject{
				"Get": map[string]interface{}{
					"KnowledgeObject": []interface{}{},
				},
			},
		}
		parsed, err := ParseGraphQLResponse[KnowledgeObjectQueryResponse](resp)
		require.NoError(t, err)
		assert.Empty(t, parsed.Get.KnowledgeObject)
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := ParseGraphQLResponse[KnowledgeObjectQueryResponse](nil)
		assert.Error(t, err)
	})
}
