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

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

// Index is the slice of the vector index client the network subsystem
// consumes. *vectorindex.Client satisfies it.
type Index interface {
	// NearestNeighbors returns same-type neighbors of ref by similarity.
	// Implementations must not retry internally on this path.
	NearestNeighbors(ctx context.Context, ref datatypes.KnowledgeObjectRef, limit int) ([]vectorindex.Neighbor, error)

	// FetchByRef looks up one indexed object by (type, id).
	FetchByRef(ctx context.Context, ref datatypes.KnowledgeObjectRef) (*vectorindex.IndexedObject, error)

	// PatchLifecycleState merges fresher display metadata into the index.
	PatchLifecycleState(ctx context.Context, ref datatypes.KnowledgeObjectRef, state, title string) error

	// IsAvailable reports whether the index can serve requests right now.
	IsAvailable() bool
}

var _ Index = (*vectorindex.Client)(nil)
