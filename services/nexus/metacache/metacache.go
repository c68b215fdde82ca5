// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metacache provides a warm BadgerDB-backed cache of resolved
// display metadata, keyed by knowledge object reference. It sits between
// the resolver and the record stores so repeated traversals over the same
// neighborhood do not re-fetch metadata that changed seconds ago:
//
//	Hot (resolver in-flight) → Warm (BadgerDB) → Authoritative (stores)
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package metacache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
)

// ErrCacheMiss indicates no live entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// Config holds configuration for the metadata cache.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// TTL is how long a cached entry stays live.
	// Default: 5 minutes.
	TTL time.Duration

	// Logger is the logger for cache operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		TTL: 5 * time.Minute,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
		TTL:      5 * time.Minute,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Cache is a TTL-expiring metadata cache backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates and opens a metadata cache with the given configuration.
//
// Inputs:
//   - cfg: Cache configuration. Path is required unless InMemory is true.
//
// Outputs:
//   - *Cache: The opened cache. Caller must call Close() when done.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Cache entries are disposable; durability is not worth the fsync cost.
	opts = opts.WithSyncWrites(false)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata cache: %w", err)
	}

	return &Cache{db: db, ttl: cfg.TTL}, nil
}

// Get returns the cached metadata for ref, or ErrCacheMiss if absent or
// expired.
//
// Thread Safety: Safe for concurrent use.
func (c *Cache) Get(ref datatypes.KnowledgeObjectRef) (*stores.DisplayMetadata, error) {
	var meta stores.DisplayMetadata
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ref.Key()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get %s: %w", ref.Key(), err)
	}
	return &meta, nil
}

// Put stores metadata for ref with the configured TTL.
//
// Thread Safety: Safe for concurrent use.
func (c *Cache) Put(ref datatypes.KnowledgeObjectRef, meta *stores.DisplayMetadata) error {
	val, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", ref.Key(), err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(ref.Key()), val).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache put %s: %w", ref.Key(), err)
	}
	return nil
}

// Invalidate removes the entry for ref if present.
//
// Thread Safety: Safe for concurrent use.
func (c *Cache) Invalidate(ref datatypes.KnowledgeObjectRef) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(ref.Key()))
	})
	if err != nil {
		return fmt.Errorf("cache invalidate %s: %w", ref.Key(), err)
	}
	return nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
