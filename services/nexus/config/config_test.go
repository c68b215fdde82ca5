// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9999
vector_index:
  url: "http://weaviate:8080"
traversal:
  max_depth: 3
  default_fanout: 5
  node_budget: 100
  workers: 4
stores:
  - type: idea
    base_url: "http://ideas:8080"
tracker:
  enabled: true
  host: github.com
  api_base_url: "https://api.github.com"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 8090, cfg.Server.Port)
		assert.Equal(t, 5, cfg.Traversal.MaxDepth)
		assert.Equal(t, 250, cfg.Traversal.NodeBudget)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "http://weaviate:8080", cfg.VectorIndex.URL)
		assert.Equal(t, 3, cfg.Traversal.MaxDepth)
		require.Len(t, cfg.Stores, 1)
		assert.Equal(t, "idea", cfg.Stores[0].Type)
		assert.True(t, cfg.Tracker.Enabled)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("NEXUS_WEAVIATE_URL", "http://other:8080")
		cfg, err := Load(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		assert.Equal(t, "http://other:8080", cfg.VectorIndex.URL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: ["))
		assert.Error(t, err)
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server:\n  port: 99999\nvector_index:\n  url: http://w:8080\n"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("tracker enabled without host", func(t *testing.T) {
		cfg := Default()
		cfg.Tracker.Enabled = true
		cfg.Tracker.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("summarizer enabled without model", func(t *testing.T) {
		cfg := Default()
		cfg.Summarizer.Enabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("cache enabled without path", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Enabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad store url", func(t *testing.T) {
		cfg := Default()
		cfg.Stores = []StoreConfig{{Type: "idea", BaseURL: "not a url"}}
		assert.Error(t, cfg.Validate())
	})
}

func TestWatch_ReloadsTraversalLimits(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	reloaded := make(chan TraversalConfig, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func(tc TraversalConfig) {
			select {
			case reloaded <- tc:
			default:
			}
		}, nil)
	}()

	// Give the watcher a beat to establish before rewriting.
	time.Sleep(100 * time.Millisecond)

	rewritten := `
server:
  port: 9999
vector_index:
  url: "http://weaviate:8080"
traversal:
  max_depth: 4
  default_fanout: 6
  node_budget: 150
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(rewritten), 0600))

	select {
	case tc := <-reloaded:
		assert.Equal(t, 4, tc.MaxDepth)
		assert.Equal(t, 150, tc.NodeBudget)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reloaded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatch_InvalidPathErrors(t *testing.T) {
	err := Watch(context.Background(), "/no/such/dir/file.yaml", func(TraversalConfig) {}, nil)
	assert.Error(t, err)
}
