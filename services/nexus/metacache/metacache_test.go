// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metacache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	cfg := InMemoryConfig()
	if ttl != 0 {
		cfg.TTL = ttl
	}
	cache, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCache_PutGet(t *testing.T) {
	cache := openTestCache(t, 0)
	ref := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeIdea, ID: "42"}

	meta := &stores.DisplayMetadata{Title: "Aleutian routing", State: "active"}
	require.NoError(t, cache.Put(ref, meta))

	got, err := cache.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, meta.Title, got.Title)
	assert.Equal(t, meta.State, got.State)
}

func TestCache_Miss(t *testing.T) {
	cache := openTestCache(t, 0)
	ref := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeTask, ID: "absent"}

	_, err := cache.Get(ref)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_KeysAreTypeScoped(t *testing.T) {
	cache := openTestCache(t, 0)

	idea := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeIdea, ID: "42"}
	task := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeTask, ID: "42"}

	require.NoError(t, cache.Put(idea, &stores.DisplayMetadata{Title: "the idea"}))

	_, err := cache.Get(task)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := openTestCache(t, 250*time.Millisecond)
	ref := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeIssue, ID: "7"}

	require.NoError(t, cache.Put(ref, &stores.DisplayMetadata{State: "open"}))

	_, err := cache.Get(ref)
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)
	_, err = cache.Get(ref)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Invalidate(t *testing.T) {
	cache := openTestCache(t, 0)
	ref := datatypes.KnowledgeObjectRef{Type: datatypes.ObjectTypeIssue, ID: "7"}

	require.NoError(t, cache.Put(ref, &stores.DisplayMetadata{State: "open"}))
	require.NoError(t, cache.Invalidate(ref))

	_, err := cache.Get(ref)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Invalidating an absent key is not an error.
	assert.NoError(t, cache.Invalidate(ref))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
