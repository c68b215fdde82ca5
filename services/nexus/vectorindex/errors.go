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
	"errors"
	"fmt"
	"net"
)

var (
	// ErrIndexUnavailable is returned when the vector index is not reachable.
	ErrIndexUnavailable = errors.New("vector index is not available")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open, vector index requests blocked")

	// ErrConnectionTimeout is returned when a request to the index times out.
	ErrConnectionTimeout = errors.New("vector index connection timeout")

	// ErrClientClosed is returned when operations are called on a closed client.
	ErrClientClosed = errors.New("vector index client is closed")

	// ErrNotFound is returned when no index entry matches the requested
	// (objectId, objectType) pair.
	ErrNotFound = errors.New("object not found in vector index")
)

// isRetryable determines if an error is worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Not-found is an application result, never a transport fault.
	if errors.Is(err, ErrNotFound) {
		return false
	}

	// Connection errors (OpError) are retryable; the server might be
	// starting or restarting. Checked first since net.OpError implements
	// net.Error.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// wrapIndexError adds index-level context to transport errors.
func wrapIndexError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}

	return fmt.Errorf("vector index error: %w", err)
}
