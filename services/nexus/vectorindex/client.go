// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorindex provides the Nexus capability wrapper around the shared
// Weaviate collection of knowledge object embeddings.
//
// The client carries retry with exponential backoff and jitter, a sliding
// window circuit breaker, health checking with adaptive intervals, graceful
// degradation when Weaviate is unavailable, and OpenTelemetry tracing.
//
// Two execution modes exist, matching the traversal engine's latency
// contract: point lookups and metadata patches go through retrying execute,
// while nearest-neighbor queries issued inside a traversal hop go through
// executeOnce and are never retried (a failed per-node query just stops
// expansion of that node).
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var indexTracer = otel.Tracer("nexus.vectorindex")

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnectionState represents the current state of the index connection.
type ConnectionState int32

const (
	// StateConnected indicates normal operation.
	StateConnected ConnectionState = iota
	// StateDegraded indicates the index is unavailable but the client is functional.
	StateDegraded
	// StateCircuitOpen indicates the circuit breaker is open, requests blocked.
	StateCircuitOpen
	// StateHalfOpen indicates the circuit breaker is testing with a single request.
	StateHalfOpen
)

// String returns the string representation of ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateCircuitOpen:
		return "circuit_open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Client Configuration
// -----------------------------------------------------------------------------

// Config configures the resilient index client.
type Config struct {
	// URL is the Weaviate server URL (e.g., "http://localhost:8080").
	URL string

	// RetryAttempts is the number of retry attempts for retryable lookups.
	// Nearest-neighbor hop queries are never retried regardless of this.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff duration between retries.
	// Default: 100ms
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff.
	// Default: 5s
	MaxRetryBackoff time.Duration

	// RetryJitter adds randomness to backoff (0.0-1.0).
	// Default: 0.25 (±25%)
	RetryJitter float64

	// CircuitThreshold is the number of failures before opening the circuit.
	// Default: 5
	CircuitThreshold int

	// CircuitWindow is the sliding window for counting failures.
	// Default: 30s
	CircuitWindow time.Duration

	// CircuitCooldown is how long the circuit stays open before half-opening.
	// Default: 30s
	CircuitCooldown time.Duration

	// HealthCheckInterval is how often to check health when connected.
	// Default: 10s
	HealthCheckInterval time.Duration

	// DegradedCheckInterval is how often to check health when degraded.
	// Default: 5s
	DegradedCheckInterval time.Duration

	// HealthCheckTimeout prevents health checks from blocking.
	// Default: 5s
	HealthCheckTimeout time.Duration

	// QueryTimeout bounds every single index operation.
	// Default: 10s
	QueryTimeout time.Duration

	// AllowStartDegraded allows starting even if the index is unavailable.
	// Default: false
	AllowStartDegraded bool

	// Logger for client operations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:         3,
		RetryBackoff:          100 * time.Millisecond,
		MaxRetryBackoff:       5 * time.Second,
		RetryJitter:           0.25,
		CircuitThreshold:      5,
		CircuitWindow:         30 * time.Second,
		CircuitCooldown:       30 * time.Second,
		HealthCheckInterval:   10 * time.Second,
		DegradedCheckInterval: 5 * time.Second,
		HealthCheckTimeout:    5 * time.Second,
		QueryTimeout:          10 * time.Second,
		AllowStartDegraded:    false,
		Logger:                slog.Default(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url must not be empty")
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry_attempts must be non-negative")
	}
	if c.RetryBackoff < 0 {
		return errors.New("retry_backoff must be non-negative")
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		return errors.New("retry_jitter must be between 0 and 1")
	}
	if c.CircuitThreshold < 1 {
		return errors.New("circuit_threshold must be at least 1")
	}
	if c.CircuitWindow <= 0 {
		return errors.New("circuit_window must be positive")
	}
	if c.HealthCheckTimeout <= 0 {
		return errors.New("health_check_timeout must be positive")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("query_timeout must be positive")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaults.RetryAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if c.RetryJitter == 0 {
		c.RetryJitter = defaults.RetryJitter
	}
	if c.CircuitThreshold == 0 {
		c.CircuitThreshold = defaults.CircuitThreshold
	}
	if c.CircuitWindow == 0 {
		c.CircuitWindow = defaults.CircuitWindow
	}
	if c.CircuitCooldown == 0 {
		c.CircuitCooldown = defaults.CircuitCooldown
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.DegradedCheckInterval == 0 {
		c.DegradedCheckInterval = defaults.DegradedCheckInterval
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaults.QueryTimeout
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client wraps the Weaviate client with resilience features and the
// Nexus-specific index operations (see queries.go).
//
// Thread Safety: Safe for concurrent use from multiple goroutines.
type Client struct {
	client *weaviate.Client
	config Config
	logger *slog.Logger

	// State
	state           atomic.Int32
	circuitOpenTime atomic.Int64 // Unix timestamp when circuit opened
	closed          atomic.Bool

	// Circuit breaker - sliding window
	failures   []time.Time // Ring buffer of failure timestamps
	failureIdx int
	failureMu  sync.Mutex

	// Half-open state - only one test request allowed
	halfOpenTest atomic.Bool

	// Lifecycle
	healthCtx    context.Context
	healthCancel context.CancelFunc
	healthWg     sync.WaitGroup

	// Degradation handlers
	handlers   []DegradationHandler
	handlersMu sync.RWMutex
}

// New creates a new resilient index client.
//
// Inputs:
//   - config: Client configuration. URL is required.
//
// Outputs:
//   - *Client: Ready-to-use client.
//   - error: Non-nil if configuration is invalid or the index is unreachable
//     (and AllowStartDegraded=false).
//
// Thread Safety: Safe for concurrent use.
func New(config Config) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := weaviate.Config{
		Host:   config.URL,
		Scheme: "http",
	}
	if len(config.URL) > 8 && config.URL[:8] == "https://" {
		cfg.Scheme = "https"
		cfg.Host = config.URL[8:]
	} else if len(config.URL) > 7 && config.URL[:7] == "http://" {
		cfg.Host = config.URL[7:]
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	healthCtx, healthCancel := context.WithCancel(context.Background())

	c := &Client{
		client:       client,
		config:       config,
		logger:       config.Logger.With(slog.String("component", "vectorindex_client")),
		failures:     make([]time.Time, config.CircuitThreshold),
		healthCtx:    healthCtx,
		healthCancel: healthCancel,
	}
	c.state.Store(int32(StateDegraded)) // Start degraded until proven healthy

	if err := c.checkHealth(context.Background()); err != nil {
		if config.AllowStartDegraded {
			c.logger.Warn("vector index unavailable at startup, starting in degraded mode",
				slog.String("url", config.URL),
				slog.String("error", err.Error()))
			c.healthWg.Add(1)
			go c.runHealthChecker()
			return c, nil
		}
		healthCancel()
		return nil, fmt.Errorf("vector index not available: %w", err)
	}

	c.transitionState(StateConnected)
	c.healthWg.Add(1)
	go c.runHealthChecker()

	c.logger.Info("vector index client initialized",
		slog.String("url", config.URL),
		slog.String("state", c.GetState().String()))

	return c, nil
}

// Weaviate returns the underlying Weaviate client for direct operations
// (schema management, admin endpoints).
//
// Thread Safety: Safe for concurrent use.
func (c *Client) Weaviate() *weaviate.Client {
	return c.client
}

// IsAvailable returns true if the index is available for requests.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) IsAvailable() bool {
	state := ConnectionState(c.state.Load())
	return state == StateConnected || state == StateHalfOpen
}

// IsDegraded returns true if operating with reduced functionality.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) IsDegraded() bool {
	state := ConnectionState(c.state.Load())
	return state == StateDegraded || state == StateCircuitOpen
}

// GetState returns the current connection state.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) GetState() ConnectionState {
	return ConnectionState(c.state.Load())
}

// RegisterHandler registers a degradation handler.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) RegisterHandler(handler DegradationHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, handler)

	if c.IsDegraded() {
		handler.OnDegraded("initial state: vector index unavailable")
	}
}

// WaitForReady blocks until the index is ready or the timeout expires.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("vector index not ready within %v: %w", timeout, ErrIndexUnavailable)
		case <-ticker.C:
			if c.checkHealth(ctx) == nil {
				return nil
			}
		}
	}
}

// Close releases resources and stops the health checker.
//
// Thread Safety: Safe for concurrent use.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	c.logger.Info("closing vector index client")
	c.healthCancel()
	c.healthWg.Wait()
	return nil
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// execute runs fn with retry and circuit breaker protection. Used for point
// lookups and metadata patches where a transient fault is worth absorbing.
func (c *Client) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	ctx, span := indexTracer.Start(ctx, "vectorindex.execute",
		trace.WithAttributes(
			attribute.String("op", op),
			attribute.String("state", c.GetState().String()),
		),
	)
	defer span.End()

	if err := c.admitRequest(span); err != nil {
		return err
	}
	defer c.halfOpenTest.Store(false)

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.Int64("backoff_ms", backoff.Milliseconds()),
			))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.runBounded(ctx, fn)
		if lastErr == nil {
			c.recordSuccess()
			span.SetStatus(codes.Ok, "success")
			return nil
		}

		// Not-found carries no availability signal; surface it untouched.
		if errors.Is(lastErr, ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return lastErr
		}

		if !isRetryable(lastErr) {
			break
		}
	}

	c.recordFailure()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all retries failed")
	return wrapIndexError(lastErr)
}

// executeOnce runs fn exactly once under circuit breaker protection.
// Hop-level nearest-neighbor queries use this: retrying inside a hop would
// compound worst-case traversal latency, so a failed query is simply
// reported and the node stops expanding.
func (c *Client) executeOnce(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	ctx, span := indexTracer.Start(ctx, "vectorindex.executeOnce",
		trace.WithAttributes(
			attribute.String("op", op),
			attribute.String("state", c.GetState().String()),
		),
	)
	defer span.End()

	if err := c.admitRequest(span); err != nil {
		return err
	}
	defer c.halfOpenTest.Store(false)

	if err := c.runBounded(ctx, fn); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.recordFailure()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return wrapIndexError(err)
	}

	c.recordSuccess()
	span.SetStatus(codes.Ok, "success")
	return nil
}

// admitRequest applies circuit breaker gating. On success in half-open mode
// the caller must release halfOpenTest.
func (c *Client) admitRequest(span trace.Span) error {
	switch c.GetState() {
	case StateCircuitOpen:
		if c.shouldTryHalfOpen() {
			c.transitionState(StateHalfOpen)
		} else {
			span.SetStatus(codes.Error, "circuit open")
			return ErrCircuitOpen
		}
		fallthrough
	case StateHalfOpen:
		// Only one test request allowed in half-open
		if !c.halfOpenTest.CompareAndSwap(false, true) {
			span.SetStatus(codes.Error, "circuit open (half-open busy)")
			return ErrCircuitOpen
		}
	}
	return nil
}

// runBounded applies the per-operation timeout around fn.
func (c *Client) runBounded(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()
	return fn(opCtx)
}

// -----------------------------------------------------------------------------
// Internal Methods
// -----------------------------------------------------------------------------

// transitionState changes state and notifies handlers.
func (c *Client) transitionState(newState ConnectionState) {
	oldState := ConnectionState(c.state.Swap(int32(newState)))
	if oldState == newState {
		return
	}

	c.logger.Info("vector index state transition",
		slog.String("from", oldState.String()),
		slog.String("to", newState.String()))

	c.handlersMu.RLock()
	handlers := c.handlers
	c.handlersMu.RUnlock()

	wasDegraded := oldState == StateDegraded || oldState == StateCircuitOpen
	isDegraded := newState == StateDegraded || newState == StateCircuitOpen

	if !wasDegraded && isDegraded {
		for _, h := range handlers {
			h.OnDegraded(fmt.Sprintf("state changed to %s", newState.String()))
		}
	} else if wasDegraded && !isDegraded {
		for _, h := range handlers {
			h.OnRecovered()
		}
	}
}

// checkHealth performs a health check with timeout.
func (c *Client) checkHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthCheckTimeout)
	defer cancel()

	_, span := indexTracer.Start(ctx, "vectorindex.health_check")
	defer span.End()

	isReady, err := c.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "health check failed")
		return fmt.Errorf("health check failed: %w", err)
	}

	if !isReady {
		span.SetStatus(codes.Error, "not ready")
		return ErrIndexUnavailable
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// runHealthChecker runs periodic health checks.
func (c *Client) runHealthChecker() {
	defer c.healthWg.Done()

	for {
		interval := c.config.HealthCheckInterval
		if c.IsDegraded() {
			interval = c.config.DegradedCheckInterval
		}

		select {
		case <-c.healthCtx.Done():
			return
		case <-time.After(interval):
			c.performHealthCheck()
		}
	}
}

// performHealthCheck runs a single health check and updates state.
func (c *Client) performHealthCheck() {
	err := c.checkHealth(c.healthCtx)
	currentState := c.GetState()

	if err == nil {
		switch currentState {
		case StateDegraded, StateHalfOpen:
			c.transitionState(StateConnected)
			c.resetFailures()
		case StateCircuitOpen:
			// Don't transition directly from open to connected;
			// let a half-open test succeed first.
			if c.shouldTryHalfOpen() {
				c.transitionState(StateHalfOpen)
			}
		}
	} else {
		if currentState == StateConnected {
			c.transitionState(StateDegraded)
		}
	}
}

// recordSuccess records a successful request.
func (c *Client) recordSuccess() {
	if c.GetState() == StateHalfOpen {
		c.transitionState(StateConnected)
		c.resetFailures()
	}
}

// recordFailure records a failed request.
func (c *Client) recordFailure() {
	c.failureMu.Lock()
	defer c.failureMu.Unlock()

	now := time.Now()
	c.failures[c.failureIdx] = now
	c.failureIdx = (c.failureIdx + 1) % len(c.failures)

	windowStart := now.Add(-c.config.CircuitWindow)
	count := 0
	for _, t := range c.failures {
		if !t.IsZero() && t.After(windowStart) {
			count++
		}
	}

	if count >= c.config.CircuitThreshold {
		if c.GetState() != StateCircuitOpen {
			c.circuitOpenTime.Store(now.Unix())
			c.transitionState(StateCircuitOpen)
			c.logger.Warn("circuit breaker opened",
				slog.Int("failures", count),
				slog.Duration("window", c.config.CircuitWindow))
		}
	} else if c.GetState() == StateConnected {
		c.transitionState(StateDegraded)
	}
}

// resetFailures clears the failure buffer.
func (c *Client) resetFailures() {
	c.failureMu.Lock()
	defer c.failureMu.Unlock()
	for i := range c.failures {
		c.failures[i] = time.Time{}
	}
	c.failureIdx = 0
}

// shouldTryHalfOpen checks if the cooldown expired.
func (c *Client) shouldTryHalfOpen() bool {
	openTime := time.Unix(c.circuitOpenTime.Load(), 0)
	return time.Since(openTime) >= c.config.CircuitCooldown
}

// calculateBackoff returns backoff with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: base * 2^attempt
	backoff := c.config.RetryBackoff * time.Duration(1<<attempt)

	if backoff > c.config.MaxRetryBackoff {
		backoff = c.config.MaxRetryBackoff
	}

	// Add jitter: ±jitter%
	jitterRange := float64(backoff) * c.config.RetryJitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	backoff = time.Duration(float64(backoff) + jitter)

	if backoff < 0 {
		backoff = c.config.RetryBackoff
	}

	return backoff
}
