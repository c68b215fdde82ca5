// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

// HandleHealth reports service liveness and the vector index connection
// state. Degraded is still 200: the process is alive, just limping.
func HandleHealth(index *vectorindex.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"vector_index": index.GetState().String(),
		})
	}
}

// HandleReady reports readiness: 503 until the vector index is reachable,
// so load balancers keep traffic off a node that cannot serve a graph.
func HandleReady(index *vectorindex.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !index.IsAvailable() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"vector_index": index.GetState().String(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
