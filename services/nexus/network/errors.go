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

import "errors"

// Typed failures returned by the builder. Handlers map these to HTTP status
// codes; everything else is an internal error.
var (
	// ErrInvalidType indicates the requested seed type is not a supported
	// knowledge object type.
	ErrInvalidType = errors.New("invalid object type")

	// ErrInvalidDepth indicates the requested traversal depth is negative
	// or exceeds the configured ceiling.
	ErrInvalidDepth = errors.New("invalid traversal depth")

	// ErrSeedNotFound indicates no indexed object matches the seed
	// (type, id) pair. Type-checked, not just id-checked.
	ErrSeedNotFound = errors.New("seed object not found")

	// ErrUpstreamUnavailable indicates the vector index is unreachable at
	// the start of the request. No graph can be produced at all.
	ErrUpstreamUnavailable = errors.New("vector index unavailable")
)
