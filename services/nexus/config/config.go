// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the nexus service configuration from YAML with
// environment overrides, and hot-reloads the traversal limits when the file
// changes on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// VectorIndexConfig configures the Weaviate connection.
type VectorIndexConfig struct {
	URL                string        `yaml:"url" validate:"required"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
	AllowStartDegraded bool          `yaml:"allow_start_degraded"`
}

// TraversalConfig holds the hot-reloadable traversal limits.
type TraversalConfig struct {
	MaxDepth      int `yaml:"max_depth" validate:"gte=1,lte=16"`
	DefaultFanout int `yaml:"default_fanout" validate:"gte=1,lte=64"`
	NodeBudget    int `yaml:"node_budget" validate:"gte=1"`
	Workers       int `yaml:"workers" validate:"gte=1,lte=128"`
}

// StoreConfig configures one per-type record store endpoint.
type StoreConfig struct {
	Type    string `yaml:"type" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// TrackerConfig configures the external issue tracker.
type TrackerConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Host              string  `yaml:"host"`
	APIBaseURL        string  `yaml:"api_base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	PatchIndex        bool    `yaml:"patch_index"`
}

// CacheConfig configures the warm metadata cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	TTL     time.Duration `yaml:"ttl"`
}

// SummarizerConfig configures the optional LLM summary backfill.
type SummarizerConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Config is the full nexus service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	VectorIndex VectorIndexConfig `yaml:"vector_index" validate:"required"`
	Traversal   TraversalConfig   `yaml:"traversal"`
	Stores      []StoreConfig     `yaml:"stores" validate:"dive"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Cache       CacheConfig       `yaml:"cache"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8090,
			ShutdownTimeout: 15 * time.Second,
		},
		VectorIndex: VectorIndexConfig{
			URL:          "http://localhost:8080",
			QueryTimeout: 10 * time.Second,
		},
		Traversal: TraversalConfig{
			MaxDepth:      5,
			DefaultFanout: 8,
			NodeBudget:    250,
			Workers:       8,
		},
		Tracker: TrackerConfig{
			Host:              "github.com",
			APIBaseURL:        "https://api.github.com",
			RequestsPerSecond: 5,
			PatchIndex:        true,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// Load reads the config file, applies environment overrides and validates
// the result. An empty path yields the defaults plus overrides.
//
// Environment overrides:
//   - NEXUS_PORT, NEXUS_WEAVIATE_URL, NEXUS_OTLP_ENDPOINT
//   - NEXUS_TRACKER_TOKEN, NEXUS_SUMMARIZER_API_KEY (secrets never live
//     in the file; read them with TrackerToken/SummarizerAPIKey)
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("NEXUS_PORT"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &cfg.Server.Port); err != nil {
			return Config{}, fmt.Errorf("invalid NEXUS_PORT %q", v)
		}
	}
	if v := os.Getenv("NEXUS_WEAVIATE_URL"); v != "" {
		cfg.VectorIndex.URL = v
	}
	if v := os.Getenv("NEXUS_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Tracker.Enabled && (c.Tracker.Host == "" || c.Tracker.APIBaseURL == "") {
		return fmt.Errorf("invalid config: tracker enabled without host/api_base_url")
	}
	if c.Summarizer.Enabled && c.Summarizer.Model == "" {
		return fmt.Errorf("invalid config: summarizer enabled without model")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("invalid config: cache enabled without path")
	}
	return nil
}

// TrackerToken returns the tracker API token from the environment.
func TrackerToken() string {
	return os.Getenv("NEXUS_TRACKER_TOKEN")
}

// SummarizerAPIKey returns the summarizer API key from the environment.
func SummarizerAPIKey() string {
	return os.Getenv("NEXUS_SUMMARIZER_API_KEY")
}
