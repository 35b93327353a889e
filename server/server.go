// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the code generation service over HTTP: health
// and metrics endpoints, the generation and task APIs, provider
// administration, audit search and the dev database bootstrap.
package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"genesis/backend/agents"
	"genesis/backend/generators"
	"genesis/backend/llm"
	"genesis/backend/shared/logger"
)

// ProviderAdmin is the slice of the LLM router the provider endpoints
// need. *llm.Router satisfies it.
type ProviderAdmin interface {
	GetProviderStatus() map[string]llm.ProviderStatus
	UpdateWeights(weights map[string]float64) error
}

// Options configures a Server. Router is required; everything else may
// be nil and the matching feature degrades gracefully.
type Options struct {
	// Router dispatches completion requests for the agents.
	Router agents.Router

	// Providers backs /api/v1/providers. Usually the same *llm.Router.
	Providers ProviderAdmin

	// AuditDB is the Postgres handle for the audit trail. Nil keeps
	// audit entries in memory.
	AuditDB *sql.DB

	// JWTSecret enables the auth middleware. Empty disables it.
	JWTSecret string

	Version string
}

// Server wires the agents, generators and connectors behind the HTTP
// API.
type Server struct {
	log       *logger.Logger
	version   string
	providers ProviderAdmin
	generator *generators.BackendGenerator
	agents    map[string]*agents.Agent
	dbAgent   *agents.DatabaseAgent
	audit     *AuditLogger
	metrics   *MetricsCollector
	jwt       *JWTManager
	started   time.Time
}

// New builds a server and its agent pool.
func New(opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	var jwtManager *JWTManager
	if opts.JWTSecret != "" {
		jwtManager = NewJWTManager(opts.JWTSecret, 0)
	}

	metrics := NewMetricsCollector()
	router := &meteredRouter{inner: opts.Router, metrics: metrics}

	architect := agents.NewArchitectAgent(router)
	fastapi := agents.NewFastAPIAgent(router)
	django := agents.NewDjangoAgent(router)
	nestjs := agents.NewNestJSAgent(router)
	database := agents.NewDatabaseAgent(router)
	security := agents.NewAuthAgent(router, tokenService(jwtManager))

	pool := map[string]*agents.Agent{
		"architect": architect.Agent,
		"fastapi":   fastapi.Agent,
		"django":    django.Agent,
		"nestjs":    nestjs.Agent,
		"database":  database.Agent,
		"security":  security.Agent,
	}

	return &Server{
		log:       logger.New("server"),
		version:   version,
		providers: opts.Providers,
		generator: generators.NewBackendGenerator(router, tokenService(jwtManager)),
		agents:    pool,
		dbAgent:   database,
		audit:     NewAuditLogger(opts.AuditDB),
		metrics:   metrics,
		jwt:       jwtManager,
		started:   time.Now(),
	}
}

// tokenService keeps the typed-nil *JWTManager from leaking into the
// agents.TokenService interface.
func tokenService(m *JWTManager) agents.TokenService {
	if m == nil {
		return nil
	}
	return m
}

// RegisterBootstrapper exposes a datastore to /api/v1/bootstrap.
func (s *Server) RegisterBootstrapper(name string, b agents.Bootstrapper) {
	s.dbAgent.RegisterBootstrapper(name, b)
}

// Handler builds the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Open endpoints
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/metrics", s.metricsHandler).Methods("GET") // JSON metrics (legacy)
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/v1/agents", s.agentsHandler).Methods("GET")
	r.HandleFunc("/api/v1/providers/status", s.providerStatusHandler).Methods("GET")

	// Protected endpoints
	protect := func(h http.HandlerFunc) http.Handler {
		return s.jwt.Middleware(h)
	}
	r.Handle("/api/v1/generate", protect(s.generateHandler)).Methods("POST")
	r.Handle("/api/v1/tasks", protect(s.taskHandler)).Methods("POST")
	r.Handle("/api/v1/providers/weights", protect(s.updateWeightsHandler)).Methods("PUT")
	r.Handle("/api/v1/audit/search", protect(s.auditSearchHandler)).Methods("POST")
	r.Handle("/api/v1/bootstrap", protect(s.bootstrapHandler)).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(s.requestMiddleware(r))
}

// Run serves the API until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation requests are slow
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("", "", "server listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// meteredRouter decorates the completion router with per-provider call
// metrics.
type meteredRouter struct {
	inner   agents.Router
	metrics *MetricsCollector
}

func (m *meteredRouter) Route(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := m.inner.Route(ctx, req)
	if err != nil {
		provider := "unknown"
		var provErr *llm.ProviderError
		if errors.As(err, &provErr) {
			provider = provErr.Provider
		}
		m.metrics.RecordLLMCall(provider, 0, 0, true)
		return nil, err
	}

	var cost float64
	if c, ok := resp.Metadata["estimated_cost"].(float64); ok {
		cost = c
	}
	m.metrics.RecordLLMCall(resp.Provider, resp.Usage.TotalTokens, cost, false)
	return resp, nil
}
