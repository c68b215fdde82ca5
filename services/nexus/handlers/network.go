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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/network"
)

var networkTracer = otel.Tracer("nexus.handlers")

// HandleBuildNetwork builds a semantic network around the seed object.
//
// POST /api/v1/network with a JSON NetworkRequest body, or
// GET /api/v1/network/:type/:id?depth=N&summaries=true for simple callers.
func HandleBuildNetwork(builder *network.Builder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := networkTracer.Start(c.Request.Context(), "HandleBuildNetwork")
		defer span.End()

		var req datatypes.NetworkRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the network request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		graph, err := builder.Build(ctx, req)
		if err != nil {
			respondBuildError(c, err)
			return
		}
		c.JSON(http.StatusOK, graph)
	}
}

// HandleGetNetwork is the GET form of the network build for browser and
// dashboard callers.
func HandleGetNetwork(builder *network.Builder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := networkTracer.Start(c.Request.Context(), "HandleGetNetwork")
		defer span.End()

		depth, err := strconv.Atoi(c.DefaultQuery("depth", "2"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		fanout, err := strconv.Atoi(c.DefaultQuery("fanout", "0"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fanout must be an integer"})
			return
		}

		req := datatypes.NetworkRequest{
			Type:             c.Param("type"),
			ID:               c.Param("id"),
			Depth:            depth,
			MaxFanout:        fanout,
			IncludeSummaries: c.Query("summaries") == "true",
		}

		graph, err := builder.Build(ctx, req)
		if err != nil {
			respondBuildError(c, err)
			return
		}
		c.JSON(http.StatusOK, graph)
	}
}

// respondBuildError maps the builder's typed failures to status codes.
func respondBuildError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, network.ErrInvalidType), errors.Is(err, network.ErrInvalidDepth):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, network.ErrSeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, network.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.Error("Network build failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
