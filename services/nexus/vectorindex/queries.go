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
	"context"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

// Neighbor is a semantically related knowledge object returned by a
// nearest-neighbor query, with its similarity score.
type Neighbor struct {
	Ref   datatypes.KnowledgeObjectRef
	Score float64
}

// IndexedObject is the full indexed record of a knowledge object, including
// the denormalized display metadata stored alongside the vector.
type IndexedObject struct {
	Ref        datatypes.KnowledgeObjectRef
	WeaviateID strfmt.UUID
	Title      string
	State      string
	URL        string
	Summary    string
	Content    string
}

// queryFields is the property set requested on every KnowledgeObject query.
var queryFields = []graphql.Field{
	{Name: datatypes.PropObjectID},
	{Name: datatypes.PropObjectType},
	{Name: datatypes.PropTitle},
	{Name: datatypes.PropState},
	{Name: datatypes.PropURL},
	{Name: datatypes.PropSummary},
	{Name: datatypes.PropContent},
	{Name: "_additional", Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
	}},
}

// typeFilter builds the mandatory server-side type predicate. Every query
// against the shared collection carries one; relying on post-hoc filtering
// of mixed-type results is not acceptable.
func typeFilter(t datatypes.ObjectType) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{datatypes.PropObjectType}).
		WithOperator(filters.Equal).
		WithValueString(t.String())
}

// refFilter matches exactly one knowledge object by (type, id).
func refFilter(ref datatypes.KnowledgeObjectRef) *filters.WhereBuilder {
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{datatypes.PropObjectID}).
				WithOperator(filters.Equal).
				WithValueString(ref.ID),
			typeFilter(ref.Type),
		})
}

// NearestNeighbors returns up to limit knowledge objects of the same type as
// ref, ordered by similarity to ref's stored vector. The anchor object is
// excluded from the results.
//
// This call is issued per frontier node inside a traversal hop, so it runs
// without retries: a transient failure means the node simply stops expanding.
//
// Inputs:
//   - ctx: Context for cancellation. Honored mid-query.
//   - ref: Anchor object. Must already exist in the index.
//   - limit: Maximum neighbors to return. Must be positive.
//
// Outputs:
//   - []Neighbor: Same-type neighbors, highest similarity first. May be empty.
//   - error: ErrNotFound if the anchor is not indexed, ErrCircuitOpen or
//     ErrIndexUnavailable on availability faults.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) NearestNeighbors(ctx context.Context, ref datatypes.KnowledgeObjectRef, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	ctx, span := indexTracer.Start(ctx, "vectorindex.NearestNeighbors",
		trace.WithAttributes(
			attribute.String("object.type", ref.Type.String()),
			attribute.String("object.id", ref.ID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	nearObject := c.client.GraphQL().NearObjectArgBuilder().
		WithID(string(datatypes.WeaviateID(ref)))

	var neighbors []Neighbor
	err := c.executeOnce(ctx, "nearest_neighbors", func(ctx context.Context) error {
		// Fetch one extra: the anchor itself comes back as its own
		// closest neighbor and is dropped below.
		resp, err := c.client.GraphQL().Get().
			WithClassName(datatypes.KnowledgeObjectClassName).
			WithFields(queryFields...).
			WithNearObject(nearObject).
			WithWhere(typeFilter(ref.Type)).
			WithLimit(limit + 1).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("near-object query: %w", err)
		}
		if len(resp.Errors) > 0 {
			return fmt.Errorf("near-object query: %s", resp.Errors[0].Message)
		}

		parsed, err := datatypes.ParseGraphQLResponse[datatypes.KnowledgeObjectQueryResponse](resp)
		if err != nil {
			return fmt.Errorf("parse near-object response: %w", err)
		}

		neighbors = parseNeighbors(parsed.Get.KnowledgeObject, ref, limit)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("neighbors.count", len(neighbors)))
	return neighbors, nil
}

// parseNeighbors converts raw query results into Neighbors, dropping the
// anchor object and any result whose type does not match the anchor's.
// The server-side filter should make cross-type results impossible; the
// check here turns a misconfigured index into a visible log line instead
// of contaminated output.
func parseNeighbors(results []datatypes.KnowledgeObjectResult, anchor datatypes.KnowledgeObjectRef, limit int) []Neighbor {
	neighbors := make([]Neighbor, 0, len(results))
	for _, r := range results {
		ref := r.Ref()
		if ref == anchor {
			continue
		}
		if ref.Type != anchor.Type {
			continue
		}

		score := 0.0
		if r.Additional.Certainty != nil {
			score = *r.Additional.Certainty
		}
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}

		neighbors = append(neighbors, Neighbor{Ref: ref, Score: score})
		if len(neighbors) == limit {
			break
		}
	}
	return neighbors
}

// FetchByRef looks up a single knowledge object's indexed record by (type, id).
//
// Inputs:
//   - ctx: Context for cancellation.
//   - ref: Object identity to look up.
//
// Outputs:
//   - *IndexedObject: The indexed record.
//   - error: ErrNotFound if no object matches, availability errors otherwise.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) FetchByRef(ctx context.Context, ref datatypes.KnowledgeObjectRef) (*IndexedObject, error) {
	ctx, span := indexTracer.Start(ctx, "vectorindex.FetchByRef",
		trace.WithAttributes(
			attribute.String("object.type", ref.Type.String()),
			attribute.String("object.id", ref.ID),
		),
	)
	defer span.End()

	var obj *IndexedObject
	err := c.execute(ctx, "fetch_by_ref", func(ctx context.Context) error {
		resp, err := c.client.GraphQL().Get().
			WithClassName(datatypes.KnowledgeObjectClassName).
			WithFields(queryFields...).
			WithWhere(refFilter(ref)).
			WithLimit(1).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("fetch query: %w", err)
		}
		if len(resp.Errors) > 0 {
			return fmt.Errorf("fetch query: %s", resp.Errors[0].Message)
		}

		parsed, err := datatypes.ParseGraphQLResponse[datatypes.KnowledgeObjectQueryResponse](resp)
		if err != nil {
			return fmt.Errorf("parse fetch response: %w", err)
		}

		results := parsed.Get.KnowledgeObject
		if len(results) == 0 {
			return fmt.Errorf("object %s: %w", ref.Key(), ErrNotFound)
		}

		r := results[0]
		obj = &IndexedObject{
			Ref:        r.Ref(),
			WeaviateID: strfmt.UUID(r.Additional.ID),
			Title:      r.Title,
			State:      r.State,
			URL:        r.URL,
			Summary:    r.Summary,
			Content:    r.Content,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	return obj, nil
}

// PatchLifecycleState merges fresher display metadata into an indexed object
// without touching its vector. The resolver calls this asynchronously after
// an authoritative tracker lookup disagrees with the indexed copy, so the
// next traversal reads current state from the index alone.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - ref: Object to patch.
//   - state: New lifecycle state (e.g., "open", "merged", "closed").
//   - title: New title. Empty leaves the stored title unchanged.
//
// Outputs:
//   - error: Non-nil if the merge fails after retries.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) PatchLifecycleState(ctx context.Context, ref datatypes.KnowledgeObjectRef, state, title string) error {
	ctx, span := indexTracer.Start(ctx, "vectorindex.PatchLifecycleState",
		trace.WithAttributes(
			attribute.String("object.type", ref.Type.String()),
			attribute.String("object.id", ref.ID),
			attribute.String("state", state),
		),
	)
	defer span.End()

	props := lifecyclePatchProps(state, title, time.Now())

	err := c.execute(ctx, "patch_lifecycle_state", func(ctx context.Context) error {
		return c.client.Data().Updater().
			WithClassName(datatypes.KnowledgeObjectClassName).
			WithID(string(datatypes.WeaviateID(ref))).
			WithProperties(props).
			WithMerge().
			Do(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "patch failed")
		return fmt.Errorf("patch %s: %w", ref.Key(), err)
	}

	return nil
}

// lifecyclePatchProps builds the merge payload for PatchLifecycleState. The
// updatedAt property is declared as int (Unix millis) in the class schema;
// the payload types must match or Weaviate rejects the merge.
func lifecyclePatchProps(state, title string, now time.Time) map[string]interface{} {
	props := map[string]interface{}{
		datatypes.PropState:     state,
		datatypes.PropUpdatedAt: now.UnixMilli(),
	}
	if title != "" {
		props[datatypes.PropTitle] = title
	}
	return props
}
