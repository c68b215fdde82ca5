// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/AleutianAI/AleutianNexus/pkg/logging"
	"github.com/AleutianAI/AleutianNexus/services/nexus/config"
	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/metacache"
	"github.com/AleutianAI/AleutianNexus/services/nexus/network"
	"github.com/AleutianAI/AleutianNexus/services/nexus/routes"
	"github.com/AleutianAI/AleutianNexus/services/nexus/stores"
	"github.com/AleutianAI/AleutianNexus/services/nexus/vectorindex"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("nexus-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	configPath := flag.String("config", os.Getenv("NEXUS_CONFIG"), "path to the config file")
	flag.Parse()

	baseLogger, err := logging.New(logging.Config{
		Level:   os.Getenv("NEXUS_LOG_LEVEL"),
		Service: "nexus",
		JSON:    true,
		Output:  os.Stdout,
		LogDir:  os.Getenv("NEXUS_LOG_DIR"),
	})
	if err != nil {
		log.Fatalf("FATAL: Could not set up logging: %v", err)
	}
	defer baseLogger.Close()
	logger := baseLogger.Logger
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Could not load configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer(cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Vector index ---
	indexConfig := vectorindex.DefaultConfig()
	indexConfig.URL = cfg.VectorIndex.URL
	indexConfig.QueryTimeout = cfg.VectorIndex.QueryTimeout
	indexConfig.AllowStartDegraded = cfg.VectorIndex.AllowStartDegraded
	indexConfig.Logger = logger

	index, err := vectorindex.New(indexConfig)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to the vector index: %v", err)
	}
	defer index.Close()
	index.RegisterHandler(vectorindex.NewLoggingDegradationHandler(logger))

	if index.IsAvailable() {
		if err := datatypes.EnsureKnowledgeObjectSchema(context.Background(), index.Weaviate()); err != nil {
			slog.Error("Failed to ensure the knowledge object schema", "error", err)
		}
	}

	// --- Record stores ---
	registry := stores.NewRegistry(logger)
	for _, sc := range cfg.Stores {
		t, err := datatypes.ParseObjectType(sc.Type)
		if err != nil {
			log.Fatalf("FATAL: Invalid store type %q: %v", sc.Type, err)
		}
		store, err := stores.NewHTTPRecordStore(stores.HTTPRecordStoreConfig{
			BaseURL: sc.BaseURL,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("FATAL: Could not create the %s record store: %v", sc.Type, err)
		}
		registry.Register(t, store)
	}

	// --- Issue tracker ---
	var tracker *stores.TrackerClient
	if cfg.Tracker.Enabled {
		tracker, err = stores.NewTrackerClient(stores.TrackerConfig{
			Host:              cfg.Tracker.Host,
			APIBaseURL:        cfg.Tracker.APIBaseURL,
			Token:             config.TrackerToken(),
			RequestsPerSecond: cfg.Tracker.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			log.Fatalf("FATAL: Could not create the tracker client: %v", err)
		}
		slog.Info("Issue tracker enabled", "host", cfg.Tracker.Host)
	}

	// --- Warm metadata cache ---
	var cache *metacache.Cache
	if cfg.Cache.Enabled {
		cache, err = metacache.Open(metacache.Config{
			Path:   cfg.Cache.Path,
			TTL:    cfg.Cache.TTL,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("FATAL: Could not open the metadata cache: %v", err)
		}
		defer cache.Close()
	}

	// --- Summarizer ---
	var summarizer network.Summarizer
	if cfg.Summarizer.Enabled {
		s, err := network.NewOpenAISummarizer(network.OpenAISummarizerConfig{
			BaseURL: cfg.Summarizer.BaseURL,
			APIKey:  config.SummarizerAPIKey(),
			Model:   cfg.Summarizer.Model,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("FATAL: Could not create the summarizer: %v", err)
		}
		summarizer = s
		slog.Info("Summary backfill enabled", "model", cfg.Summarizer.Model)
	}

	// --- Traversal engine and facade ---
	resolver := network.NewResolver(index, registry, tracker, cache, network.ResolverConfig{
		PatchEnabled: cfg.Tracker.PatchIndex,
		Logger:       logger,
	})
	engine := network.NewEngine(index, resolver, network.EngineConfig{
		Limits: network.Limits{
			MaxDepth:      cfg.Traversal.MaxDepth,
			DefaultFanout: cfg.Traversal.DefaultFanout,
			NodeBudget:    cfg.Traversal.NodeBudget,
		},
		Workers: cfg.Traversal.Workers,
		Logger:  logger,
	})
	builder := network.NewBuilder(index, engine, summarizer, logger)

	// --- Hot reload of traversal limits ---
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if *configPath != "" {
		go func() {
			err := config.Watch(watchCtx, *configPath, func(t config.TraversalConfig) {
				engine.UpdateLimits(network.Limits{
					MaxDepth:      t.MaxDepth,
					DefaultFanout: t.DefaultFanout,
					NodeBudget:    t.NodeBudget,
				})
			}, logger)
			if err != nil {
				slog.Error("Config watcher stopped", "error", err)
			}
		}()
	}

	// --- HTTP server ---
	router := gin.Default()
	router.Use(otelgin.Middleware("nexus-service"))
	routes.SetupRoutes(router, index, builder)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("Starting the nexus server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down the nexus server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
	slog.Info("Server exited")
}
