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
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// KnowledgeObjectClassName is the single shared Weaviate class holding
// embeddings for ALL knowledge object types. Because the collection is
// shared, every query against it must filter on objectType; an unfiltered
// query returns cross-type noise and is treated as a defect.
const KnowledgeObjectClassName = "KnowledgeObject"

// Property names of the KnowledgeObject class.
const (
	PropObjectID   = "objectId"
	PropObjectType = "objectType"
	PropTitle      = "title"
	PropState      = "state"
	PropURL        = "url"
	PropSummary    = "summary"
	PropContent    = "content"
	PropUpdatedAt  = "updatedAt"
)

// WeaviateID returns the deterministic Weaviate UUID for a knowledge object.
//
// Description:
//
//	The embedding pipeline writes every object under a UUID derived from the
//	sha256 of its "type/id" key, so any component can address an object in
//	the index without a lookup. This mirrors the identity contract used for
//	document chunks elsewhere in the platform.
//
// Inputs:
//   - ref: The object identity.
//
// Outputs:
//   - strfmt.UUID: Stable UUID for the object's index entry.
func WeaviateID(ref KnowledgeObjectRef) strfmt.UUID {
	hash := sha256.Sum256([]byte(ref.Key()))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

// GetKnowledgeObjectSchema returns the class definition for the shared
// knowledge object collection. The vectorizer is "none": embeddings are
// produced by the external embedding pipeline, never by Weaviate modules.
func GetKnowledgeObjectSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       KnowledgeObjectClassName,
		Description: "A knowledge object (idea, task, issue, message, or file) with its embedding.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            PropObjectID,
				DataType:        []string{"text"},
				Description:     "Opaque object id within its type's record store.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            PropObjectType,
				DataType:        []string{"text"},
				Description:     "Type tag: idea, task, issue, message, or file.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         PropTitle,
				DataType:     []string{"text"},
				Description:  "Display title cached from the record store.",
				Tokenization: "word",
			},
			{
				Name:            PropState,
				DataType:        []string{"text"},
				Description:     "Lifecycle state cached from the authoritative source.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         PropURL,
				DataType:     []string{"text"},
				Description:  "Canonical URL of the object.",
				Tokenization: "field",
			},
			{
				Name:         PropSummary,
				DataType:     []string{"text"},
				Description:  "Short summary cached from the record store, may be empty.",
				Tokenization: "word",
			},
			{
				Name:         PropContent,
				DataType:     []string{"text"},
				Description:  "The text that was embedded for this object.",
				Tokenization: "word",
			},
			{
				Name:            PropUpdatedAt,
				DataType:        []string{"int"},
				Description:     "Unix millis of the last index write for this object.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureKnowledgeObjectSchema creates the KnowledgeObject class if missing.
// Schema population and migration are owned by the embedding pipeline; this
// only guards local development against a completely empty instance.
func EnsureKnowledgeObjectSchema(ctx context.Context, client *weaviate.Client) error {
	exists, err := client.Schema().ClassExistenceChecker().
		WithClassName(KnowledgeObjectClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if exists {
		return nil
	}

	slog.Info("Creating missing Weaviate class", "class", KnowledgeObjectClassName)
	if err := client.Schema().ClassCreator().
		WithClass(GetKnowledgeObjectSchema()).
		Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", KnowledgeObjectClassName, err)
	}
	return nil
}

// =============================================================================
// GraphQL Response Parsing
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. The target type T must have json tags matching the response shape;
// type mismatches yield zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// KnowledgeObjectQueryResponse is the response shape for Get queries against
// the KnowledgeObject class.
type KnowledgeObjectQueryResponse struct {
	Get struct {
		KnowledgeObject []KnowledgeObjectResult `json:"KnowledgeObject"`
	} `json:"Get"`
}

// KnowledgeObjectResult is a single knowledge object from a query.
type KnowledgeObjectResult struct {
	ObjectID   string `json:"objectId"`
	ObjectType string `json:"objectType"`
	Title      string `json:"title"`
	State      string `json:"state"`
	URL        string `json:"url"`
	Summary    string `json:"summary"`
	Content    string `json:"content"`
	Additional struct {
		ID        string   `json:"id"`
		Certainty *float64 `json:"certainty"`
		Distance  *float64 `json:"distance"`
	} `json:"_additional"`
}

// Ref reconstructs the object identity from a query result.
func (r KnowledgeObjectResult) Ref() KnowledgeObjectRef {
	return KnowledgeObjectRef{Type: ObjectType(r.ObjectType), ID: r.ObjectID}
}
