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
	"sort"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

// Assemble converts a traversal result into the externally consumed graph
// shape. Pure transformation: the input is never mutated, nodes and edges
// are emitted in a stable sorted order, and the summary field appears on
// nodes only when includeSummaries is set.
func Assemble(result *datatypes.TraversalResult, includeSummaries bool) *datatypes.NetworkGraph {
	graph := &datatypes.NetworkGraph{
		Nodes:     make([]datatypes.NetworkNode, 0, len(result.Nodes)),
		Edges:     make([]datatypes.NetworkEdge, 0, len(result.Edges)),
		Truncated: result.Truncated,
	}

	for _, n := range result.Nodes {
		node := datatypes.NetworkNode{
			ID:          n.Ref.ID,
			Type:        n.Ref.Type.String(),
			Title:       n.Title,
			State:       n.State,
			URL:         n.URL,
			HopDistance: n.HopDistance,
		}
		if includeSummaries {
			summary := n.Summary
			node.Summary = &summary
		}
		graph.Nodes = append(graph.Nodes, node)
	}

	for _, e := range result.Edges {
		graph.Edges = append(graph.Edges, datatypes.NetworkEdge{
			From:        e.From.Key(),
			To:          e.To.Key(),
			Score:       e.Score,
			HopDistance: e.HopDistance,
		})
	}

	// Accumulator maps have no iteration order; sort so identical runs
	// serialize identically.
	sort.Slice(graph.Nodes, func(a, b int) bool {
		if graph.Nodes[a].Type != graph.Nodes[b].Type {
			return graph.Nodes[a].Type < graph.Nodes[b].Type
		}
		return graph.Nodes[a].ID < graph.Nodes[b].ID
	})
	sort.Slice(graph.Edges, func(a, b int) bool {
		if graph.Edges[a].From != graph.Edges[b].From {
			return graph.Edges[a].From < graph.Edges[b].From
		}
		return graph.Edges[a].To < graph.Edges[b].To
	})

	return graph
}
