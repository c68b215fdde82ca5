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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	traversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_traversals_total",
		Help: "Total network traversals by seed type and outcome.",
	}, []string{"seed_type", "outcome"})

	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexus_traversal_duration_seconds",
		Help:    "End-to-end traversal latency by seed type.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"seed_type"})

	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nexus_graph_nodes",
		Help:    "Node count of produced graphs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	neighborQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_neighbor_queries_total",
		Help: "Nearest-neighbor queries issued during traversal, by result.",
	}, []string{"result"})

	resolutionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_resolution_fallbacks_total",
		Help: "Resolver fallbacks by kind (cache, index, placeholder).",
	}, []string{"kind"})

	indexPatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_index_patches_total",
		Help: "Asynchronous index metadata patch-backs by result.",
	}, []string{"result"})

	truncationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_traversal_truncations_total",
		Help: "Traversals ending truncated, by cause (budget, cancelled).",
	}, []string{"cause"})
)
