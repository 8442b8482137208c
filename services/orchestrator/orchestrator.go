// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles and runs the integrity training
// service.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, backend completion clients, the routing
// policy, the risk analyzer, the gamification ledger, and the
// observability infrastructure.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12230}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianIntegrity/services/analyzer"
	"github.com/AleutianAI/AleutianIntegrity/services/benchmark"
	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/ledger"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianIntegrity/services/provider"
	"github.com/AleutianAI/AleutianIntegrity/services/router"
	"github.com/AleutianAI/AleutianIntegrity/services/session"
)

// Service defines the contract for the orchestrator service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// Config holds orchestrator configuration options. Zero values use
// defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int

	// DataDir is where the ledger keeps its event log.
	// Default: "./data"
	DataDir string

	// PolicyPath is the routing policy YAML. When set, edits to the
	// file hot-reload the policy; when empty the built-in default
	// policy applies.
	PolicyPath string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode: "debug", "release", "test".
	// Default: uses the GIN_MODE env var or "debug".
	GinMode string

	// SessionIdleTTL is how long an idle session survives before the
	// sweeper evicts it. Default: 24h
	SessionIdleTTL time.Duration

	// InfluxEnabled persists benchmark results to InfluxDB. Requires
	// INFLUXDB_TOKEN; defaults to discarding results.
	InfluxEnabled bool
}

// service implements Service for production use.
//
// All fields are read-only after New() returns.
type service struct {
	config Config
	router *gin.Engine

	engine   *engine.Engine
	dispatch *router.Router
	sessions *session.Manager
	store    *ledger.BadgerStore
	sink     benchmark.ResultSink

	tracerCleanup func(context.Context)

	// baseCancel stops the session sweeper and the policy watcher.
	baseCancel context.CancelFunc
}

// New creates a ready-to-run orchestrator.
//
// # Description
//
// New initializes every component in dependency order:
//  1. Applies configuration defaults
//  2. Initializes OpenTelemetry tracing and Prometheus metrics
//  3. Opens the ledger's event store
//  4. Builds whichever backend clients the environment configures
//  5. Loads the routing policy and starts the hot-reload watcher
//  6. Wires the engine and HTTP routes
//
// Backends whose environment is missing are skipped with a warning;
// at least one must come up.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.InitMetrics()
	slog.Info("Initialized Prometheus metrics for the exchange pipeline")

	s.store, err = ledger.OpenStore(ledger.DefaultStoreConfig(filepath.Join(s.config.DataDir, "ledger")))
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open the ledger store: %w", err)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	s.baseCancel = baseCancel

	s.sessions = session.NewManager(session.ManagerConfig{IdleTTL: s.config.SessionIdleTTL})
	go s.sessions.Start(baseCtx)

	clients := buildBackendClients()
	if len(clients) == 0 {
		s.cleanup()
		return nil, fmt.Errorf("no completion backend could be configured")
	}

	source, watcher, err := s.loadPolicy()
	if err != nil {
		s.cleanup()
		return nil, err
	}
	if watcher != nil {
		go watcher.Start(baseCtx)
	}

	s.dispatch = router.New(clients, source)
	s.dispatch.SetFailureHook(func(backend provider.BackendID, kind provider.ErrorKind) {
		metrics.RecordBackendFailure(string(backend), kind.String())
	})
	s.sink = buildResultSink(s.config.InfluxEnabled)
	coordinator := benchmark.NewCoordinator(s.dispatch, s.sink, benchmark.Config{})

	s.engine = engine.New(
		s.sessions,
		s.dispatch,
		analyzer.New(analyzer.DefaultRiskBands()),
		ledger.New(s.store, s.sessions),
		coordinator,
	)

	s.initRouter(metrics)
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting the integrity orchestrator", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.SessionIdleTTL == 0 {
		cfg.SessionIdleTTL = 24 * time.Hour
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter against the configured
// collector.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("integrity-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildBackendClients constructs every backend adapter the environment
// supports. A missing API key or base URL skips that backend.
func buildBackendClients() []provider.CompletionClient {
	var clients []provider.CompletionClient

	if c, err := provider.NewOpenAIClient(); err != nil {
		slog.Warn("OpenAI backend not configured, skipping", "error", err)
	} else {
		clients = append(clients, c)
		slog.Info("Registered backend", "backend", provider.BackendOpenAI)
	}

	if c, err := provider.NewMoonshotClient(); err != nil {
		slog.Warn("Kimi K2 backend not configured, skipping", "error", err)
	} else {
		clients = append(clients, c)
		slog.Info("Registered backend", "backend", provider.BackendKimiK2)
	}

	if c, err := provider.NewQwenLocalClient(); err != nil {
		slog.Warn("Local Qwen3 backend not configured, skipping", "error", err)
	} else {
		clients = append(clients, c)
		slog.Info("Registered backend", "backend", provider.BackendQwen3)
	}

	return clients
}

// loadPolicy resolves the routing policy and, when it came from a
// file, starts the hot-reload watcher.
func (s *service) loadPolicy() (*router.PolicySource, *router.PolicyWatcher, error) {
	if s.config.PolicyPath == "" {
		slog.Info("No policy file configured, using the default routing policy")
		return router.NewPolicySource(router.DefaultRoutingPolicy()), nil, nil
	}

	policy, err := router.LoadPolicy(s.config.PolicyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load routing policy %s: %w", s.config.PolicyPath, err)
	}
	source := router.NewPolicySource(policy)
	watcher, err := router.NewPolicyWatcher(s.config.PolicyPath, source)
	if err != nil {
		slog.Warn("Policy hot-reload disabled", "error", err)
		return source, nil, nil
	}
	return source, watcher, nil
}

// buildResultSink picks where benchmark results land.
func buildResultSink(influxEnabled bool) benchmark.ResultSink {
	if !influxEnabled {
		return benchmark.NewNoopSink()
	}
	sink, err := benchmark.NewInfluxSink()
	if err != nil {
		slog.Warn("InfluxDB sink not configured, benchmark results will be discarded", "error", err)
		return benchmark.NewNoopSink()
	}
	return sink
}

func (s *service) initRouter(metrics *observability.ExchangeMetrics) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("integrity-orchestrator"))

	routes.SetupRoutes(r, s.engine, s.dispatch, metrics)
	s.router = r
}

// cleanup releases everything New acquired, tolerating partial
// initialization.
func (s *service) cleanup() {
	if s.baseCancel != nil {
		s.baseCancel()
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			slog.Warn("Failed to close the benchmark sink", "error", err)
		}
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close the ledger store", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
