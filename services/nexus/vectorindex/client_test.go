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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Config Tests
// -----------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://localhost:8080"
		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("missing url", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "url")
	})

	t.Run("negative retry_attempts", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://localhost:8080"
		cfg.RetryAttempts = -1
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "retry_attempts")
	})

	t.Run("invalid retry_jitter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://localhost:8080"
		cfg.RetryJitter = 1.5
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "retry_jitter")
	})

	t.Run("zero circuit_threshold", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://localhost:8080"
		cfg.CircuitThreshold = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "circuit_threshold")
	})

	t.Run("zero query_timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://localhost:8080"
		cfg.QueryTimeout = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "query_timeout")
	})
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{URL: "http://localhost:8080"}
	cfg.applyDefaults()

	defaults := DefaultConfig()
	assert.Equal(t, defaults.RetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, defaults.RetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, defaults.CircuitThreshold, cfg.CircuitThreshold)
	assert.Equal(t, defaults.HealthCheckInterval, cfg.HealthCheckInterval)
	assert.Equal(t, defaults.QueryTimeout, cfg.QueryTimeout)
	assert.NotNil(t, cfg.Logger)
}

// -----------------------------------------------------------------------------
// ConnectionState Tests
// -----------------------------------------------------------------------------

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "circuit_open", StateCircuitOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", ConnectionState(99).String())
}

// -----------------------------------------------------------------------------
// Retry Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	t.Run("cancellation is not retryable", func(t *testing.T) {
		assert.False(t, isRetryable(context.Canceled))
	})

	t.Run("deadline exceeded is retryable", func(t *testing.T) {
		assert.True(t, isRetryable(context.DeadlineExceeded))
	})

	t.Run("not found is not retryable", func(t *testing.T) {
		assert.False(t, isRetryable(ErrNotFound))
	})

	t.Run("network op error is retryable", func(t *testing.T) {
		opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		assert.True(t, isRetryable(opErr))
	})

	t.Run("wrapped errors unwrap", func(t *testing.T) {
		wrapped := errors.Join(errors.New("query failed"), context.Canceled)
		assert.False(t, isRetryable(wrapped))
	})
}

// -----------------------------------------------------------------------------
// Backoff Tests
// -----------------------------------------------------------------------------

func TestCalculateBackoff(t *testing.T) {
	c := &Client{config: Config{
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 1 * time.Second,
		RetryJitter:     0.25,
	}}

	t.Run("grows with attempts", func(t *testing.T) {
		// With ±25% jitter the ranges for attempts 1 and 3 never overlap.
		b1 := c.calculateBackoff(1)
		b3 := c.calculateBackoff(3)
		assert.Greater(t, b3, b1)
	})

	t.Run("respects maximum", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			b := c.calculateBackoff(10)
			assert.LessOrEqual(t, b, time.Duration(float64(c.config.MaxRetryBackoff)*1.25)+time.Millisecond)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			assert.GreaterOrEqual(t, c.calculateBackoff(1), time.Duration(0))
		}
	})
}

// -----------------------------------------------------------------------------
// Circuit Breaker Tests
// -----------------------------------------------------------------------------

func newTestClient(t *testing.T, threshold int) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = "http://localhost:8080"
	cfg.CircuitThreshold = threshold
	cfg.applyDefaults()

	c := &Client{
		config:   cfg,
		logger:   cfg.Logger,
		failures: make([]time.Time, cfg.CircuitThreshold),
	}
	c.state.Store(int32(StateConnected))
	return c
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("opens after threshold failures", func(t *testing.T) {
		c := newTestClient(t, 3)
		for i := 0; i < 3; i++ {
			c.recordFailure()
		}
		assert.Equal(t, StateCircuitOpen, c.GetState())
		assert.False(t, c.IsAvailable())
	})

	t.Run("degrades below threshold", func(t *testing.T) {
		c := newTestClient(t, 3)
		c.recordFailure()
		assert.Equal(t, StateDegraded, c.GetState())
		assert.True(t, c.IsDegraded())
	})

	t.Run("half open success closes circuit", func(t *testing.T) {
		c := newTestClient(t, 3)
		for i := 0; i < 3; i++ {
			c.recordFailure()
		}
		require.Equal(t, StateCircuitOpen, c.GetState())

		c.transitionState(StateHalfOpen)
		c.recordSuccess()
		assert.Equal(t, StateConnected, c.GetState())
	})

	t.Run("reset clears failure window", func(t *testing.T) {
		c := newTestClient(t, 3)
		c.recordFailure()
		c.recordFailure()
		c.resetFailures()
		c.recordFailure()
		// Two of the three counted failures were cleared.
		assert.NotEqual(t, StateCircuitOpen, c.GetState())
	})
}

func TestDegradationHandlerNotification(t *testing.T) {
	c := newTestClient(t, 2)
	handler := NewLoggingDegradationHandler(c.logger)
	c.RegisterHandler(handler)

	require.False(t, handler.IsDegraded())

	c.transitionState(StateDegraded)
	assert.True(t, handler.IsDegraded())

	c.transitionState(StateConnected)
	assert.False(t, handler.IsDegraded())
}

func TestClient_Closed(t *testing.T) {
	c := newTestClient(t, 3)
	c.closed.Store(true)

	err := c.execute(context.Background(), "op", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClientClosed)

	err = c.executeOnce(context.Background(), "op", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestExecuteOnce_NeverRetries(t *testing.T) {
	c := newTestClient(t, 10)

	calls := 0
	err := c.executeOnce(context.Background(), "nearest_neighbors", func(ctx context.Context) error {
		calls++
		return &net.OpError{Op: "read", Err: errors.New("reset")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesRetryableErrors(t *testing.T) {
	c := newTestClient(t, 10)
	c.config.RetryAttempts = 2
	c.config.RetryBackoff = time.Millisecond
	c.config.MaxRetryBackoff = 2 * time.Millisecond

	calls := 0
	err := c.execute(context.Background(), "fetch_by_ref", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_NotFoundPassesThrough(t *testing.T) {
	c := newTestClient(t, 10)

	calls := 0
	err := c.execute(context.Background(), "fetch_by_ref", func(ctx context.Context) error {
		calls++
		return ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}
