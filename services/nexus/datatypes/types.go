// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the Nexus semantic
// network service: knowledge object identities, traversal graph types, and
// the wire representation returned to API clients.
//
// All types here are constructed fresh per request and carry no persistent
// state. KnowledgeObjectRef is the only handle passed between components;
// it never embeds mutable metadata.
package datatypes

import (
	"fmt"
	"strings"
)

// =============================================================================
// Object Types
// =============================================================================

// ObjectType is the semantic kind of a knowledge object. All objects share a
// single vector collection, so every query against the index must carry an
// explicit type tag; ObjectType is that tag.
type ObjectType string

const (
	ObjectTypeIdea    ObjectType = "idea"
	ObjectTypeTask    ObjectType = "task"
	ObjectTypeIssue   ObjectType = "issue"
	ObjectTypeMessage ObjectType = "message"
	ObjectTypeFile    ObjectType = "file"
)

// AllObjectTypes lists the supported object types in canonical order.
var AllObjectTypes = []ObjectType{
	ObjectTypeIdea,
	ObjectTypeTask,
	ObjectTypeIssue,
	ObjectTypeMessage,
	ObjectTypeFile,
}

// ParseObjectType converts a request string into an ObjectType.
//
// Inputs:
//   - s: Raw type string. Matching is case-insensitive.
//
// Outputs:
//   - ObjectType: The parsed type.
//   - error: Non-nil if s is not a supported type.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unsupported object type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported object types.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeIdea, ObjectTypeTask, ObjectTypeIssue, ObjectTypeMessage, ObjectTypeFile:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t ObjectType) String() string {
	return string(t)
}

// =============================================================================
// Knowledge Object References
// =============================================================================

// KnowledgeObjectRef is the immutable identity of a knowledge object:
// its type tag plus an opaque id. Object ids are NOT globally unique across
// types, so the pair is the identity, never the id alone.
type KnowledgeObjectRef struct {
	Type ObjectType `json:"type"`
	ID   string     `json:"id"`
}

// Key returns a stable string key for map use and deterministic ordering.
func (r KnowledgeObjectRef) Key() string {
	return string(r.Type) + "/" + r.ID
}

// Compare orders refs by (type, id). Used as the deterministic tie-break
// when candidates share a similarity score.
func (r KnowledgeObjectRef) Compare(other KnowledgeObjectRef) int {
	return strings.Compare(r.Key(), other.Key())
}

// =============================================================================
// Traversal Graph Types
// =============================================================================

// GraphNode is one resolved knowledge object discovered during a traversal.
// Exactly one GraphNode exists per unique ref within a traversal result.
// HopDistance is the minimum depth at which the ref was discovered; a later,
// deeper rediscovery never overwrites it.
type GraphNode struct {
	Ref         KnowledgeObjectRef
	Title       string
	State       string
	URL         string
	HopDistance int
	Summary     string
}

// GraphEdge is a directed similarity edge between two discovered objects.
// Score is whatever the vector index returned, normalized to [0,1]; the
// engine never recomputes it. Multiple discoveries of the same unordered
// pair collapse into one edge keeping the highest score and the smallest hop.
type GraphEdge struct {
	From        KnowledgeObjectRef
	To          KnowledgeObjectRef
	Score       float64
	HopDistance int
}

// PairKey returns an order-independent key for the edge's endpoint pair.
func (e GraphEdge) PairKey() string {
	a, b := e.From.Key(), e.To.Key()
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// TraversalRequest describes one expansion run.
type TraversalRequest struct {
	// Seed is the object the traversal starts from.
	Seed KnowledgeObjectRef

	// MaxDepth is the number of hops to expand. Zero yields a single-node
	// graph containing only the seed.
	MaxDepth int

	// MaxFanout bounds the neighbors taken per expanded node. Zero means
	// the engine default applies.
	MaxFanout int

	// IncludeSummaries requests summary text on the returned nodes.
	IncludeSummaries bool
}

// TraversalResult is the engine's output: deduplicated node and edge sets.
// Truncated is set when the work budget or cancellation stopped expansion
// before the configured depth; a truncated result is still a valid graph.
type TraversalResult struct {
	Nodes     []*GraphNode
	Edges     []*GraphEdge
	Truncated bool
}

// =============================================================================
// Wire Representation
// =============================================================================

// NetworkRequest is the inbound API shape for a network build.
type NetworkRequest struct {
	Type             string `json:"type" binding:"required" validate:"required"`
	ID               string `json:"id" binding:"required" validate:"required"`
	Depth            int    `json:"depth" validate:"gte=0"`
	MaxFanout        int    `json:"max_fanout" validate:"gte=0"`
	IncludeSummaries bool   `json:"include_summaries"`
}

// NetworkNode is the wire shape of one graph node. Summary is a pointer so
// that its presence is controlled solely by the include_summaries flag: nil
// when summaries were not requested, non-nil (possibly empty) when they were.
type NetworkNode struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	State       string  `json:"state"`
	URL         string  `json:"url"`
	HopDistance int     `json:"hopDistance"`
	Summary     *string `json:"summary,omitempty"`
}

// NetworkEdge is the wire shape of one similarity edge.
type NetworkEdge struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Score       float64 `json:"score"`
	HopDistance int     `json:"hopDistance"`
}

// NetworkGraph is the externally consumed graph representation.
type NetworkGraph struct {
	Nodes     []NetworkNode `json:"nodes"`
	Edges     []NetworkEdge `json:"edges"`
	Truncated bool          `json:"truncated"`
}
