// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stores provides per-type access to the authoritative record
// systems behind knowledge objects. Each object type (idea, task, issue,
// message, file) lives in its own backing store; the Registry maps a type
// to the store that owns it.
package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

var storesTracer = otel.Tracer("nexus.stores")

// ErrRecordNotFound indicates the backing store has no record for the id.
var ErrRecordNotFound = errors.New("record not found")

// DisplayMetadata is what a record store knows about an object for display
// purposes. Zero-value fields mean the store did not provide them.
type DisplayMetadata struct {
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordStore fetches display metadata for objects of a single type.
type RecordStore interface {
	// GetMetadata returns the current display metadata for the object id.
	// Returns ErrRecordNotFound if the store has no such record.
	GetMetadata(ctx context.Context, id string) (*DisplayMetadata, error)
}

// -----------------------------------------------------------------------------
// HTTP Record Store
// -----------------------------------------------------------------------------

// HTTPRecordStoreConfig configures an HTTPRecordStore.
type HTTPRecordStoreConfig struct {
	// BaseURL is the store service root, e.g. "http://ideas-svc:8080".
	BaseURL string

	// Path is the metadata endpoint template. The object id is appended
	// path-escaped. Default: "/v1/objects"
	Path string

	// Timeout bounds each metadata request. Default: 5s
	Timeout time.Duration

	// Logger for store operations. Default: slog.Default()
	Logger *slog.Logger
}

// HTTPRecordStore fetches metadata from a per-type record service over HTTP.
// Most internal stores (ideas, tasks, messages, files) expose the same small
// metadata endpoint, so one implementation covers them all.
type HTTPRecordStore struct {
	baseURL string
	path    string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPRecordStore creates a record store backed by an HTTP metadata
// endpoint.
func NewHTTPRecordStore(config HTTPRecordStoreConfig) (*HTTPRecordStore, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base_url must not be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	if config.Path == "" {
		config.Path = "/v1/objects"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &HTTPRecordStore{
		baseURL: config.BaseURL,
		path:    config.Path,
		client:  &http.Client{Timeout: config.Timeout},
		logger:  config.Logger.With(slog.String("component", "http_record_store")),
	}, nil
}

// GetMetadata fetches display metadata for the object id.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - id: Store-local object id.
//
// Outputs:
//   - *DisplayMetadata: Current metadata.
//   - error: ErrRecordNotFound on 404, transport or decode errors otherwise.
//
// Thread Safety: Safe for concurrent use.
func (s *HTTPRecordStore) GetMetadata(ctx context.Context, id string) (*DisplayMetadata, error) {
	ctx, span := storesTracer.Start(ctx, "stores.GetMetadata",
		trace.WithAttributes(attribute.String("object.id", id)),
	)
	defer span.End()

	endpoint := fmt.Sprintf("%s%s/%s", s.baseURL, s.path, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("object %s: %w", id, ErrRecordNotFound)
	case resp.StatusCode != http.StatusOK:
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}

	var meta DisplayMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return &meta, nil
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps each object type to the record store that owns it. Types
// without a registered store resolve from index metadata alone.
type Registry struct {
	stores map[datatypes.ObjectType]RecordStore
	logger *slog.Logger
}

// NewRegistry creates an empty store registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		stores: make(map[datatypes.ObjectType]RecordStore),
		logger: logger.With(slog.String("component", "store_registry")),
	}
}

// Register binds a store to an object type, replacing any existing binding.
// Not safe to call after the registry is in use; register at startup.
func (r *Registry) Register(t datatypes.ObjectType, store RecordStore) {
	r.stores[t] = store
	r.logger.Info("registered record store", slog.String("type", t.String()))
}

// StoreFor returns the record store owning the type, or nil if none is
// registered.
func (r *Registry) StoreFor(t datatypes.ObjectType) RecordStore {
	return r.stores[t]
}
