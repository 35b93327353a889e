// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"genesis/backend/agents"
	"genesis/backend/config"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]bool{
		"audit_logger": s.audit.IsHealthy(),
		"agents":       len(s.agents) > 0,
	}
	if checker, ok := s.providers.(interface{ IsHealthy() bool }); ok {
		components["llm_router"] = checker.IsHealthy()
	}

	healthy := true
	for _, up := range components {
		healthy = healthy && up
	}

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"service":    "genesis-backend",
		"version":    s.version,
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// generateRequest is the body of POST /api/v1/generate.
type generateRequest struct {
	Config       config.BackendConfig `json:"config"`
	Architecture map[string]any       `json:"architecture,omitempty"`
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	requestID := requestIDFrom(r)
	result, err := s.generator.Generate(r.Context(), req.Config, req.Architecture)

	s.audit.Record(r.Context(), AuditEntry{
		RequestID: requestID,
		Actor:     actorFrom(r),
		Action:    "generate_backend",
		Resource:  req.Config.ProjectName,
		Detail: map[string]any{
			"framework": string(req.Config.Framework),
			"success":   err == nil,
		},
		StatusCode: statusForError(err),
	})

	if err != nil {
		sendErrorResponse(w, "Generation failed: "+err.Error(), statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// taskRequest is the body of POST /api/v1/tasks.
type taskRequest struct {
	Agent  string         `json:"agent"`
	Task   string         `json:"task"`
	Params map[string]any `json:"params,omitempty"`
}

func (s *Server) taskHandler(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agent, ok := s.agents[req.Agent]
	if !ok {
		sendErrorResponse(w, "Unknown agent: "+req.Agent, http.StatusNotFound)
		return
	}
	if !agent.CanHandle(req.Task) {
		sendErrorResponse(w, "Agent "+req.Agent+" cannot handle task "+req.Task, http.StatusBadRequest)
		return
	}

	result := agent.Execute(r.Context(), agents.NewTask(req.Task, req.Params))

	statusCode := http.StatusOK
	if !result.Success {
		statusCode = http.StatusUnprocessableEntity
	}

	s.audit.Record(r.Context(), AuditEntry{
		RequestID:  requestIDFrom(r),
		Actor:      actorFrom(r),
		Action:     "execute_task",
		Resource:   req.Agent + "/" + req.Task,
		Detail:     map[string]any{"task_id": result.TaskID, "success": result.Success},
		StatusCode: statusCode,
	})

	writeJSON(w, statusCode, result)
}

func (s *Server) agentsHandler(w http.ResponseWriter, r *http.Request) {
	type agentInfo struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Type         string   `json:"type"`
		Capabilities []string `json:"capabilities"`
	}

	catalog := make([]agentInfo, 0, len(s.agents))
	for key, agent := range s.agents {
		catalog = append(catalog, agentInfo{
			ID:           key,
			Name:         agent.Name(),
			Type:         agent.Type(),
			Capabilities: agent.Capabilities(),
		})
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].ID < catalog[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"agents": catalog})
}

func (s *Server) providerStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.providers == nil {
		sendErrorResponse(w, "Provider administration not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.providers.GetProviderStatus())
}

func (s *Server) updateWeightsHandler(w http.ResponseWriter, r *http.Request) {
	if s.providers == nil {
		sendErrorResponse(w, "Provider administration not configured", http.StatusServiceUnavailable)
		return
	}

	var weights map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.providers.UpdateWeights(weights); err != nil {
		sendErrorResponse(w, "Failed to update weights: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Provider weights updated",
	})
}

func (s *Server) auditSearchHandler(w http.ResponseWriter, r *http.Request) {
	var criteria AuditSearch
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entries, err := s.audit.Search(r.Context(), criteria)
	if err != nil {
		sendErrorResponse(w, "Audit search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// bootstrapRequest is the body of POST /api/v1/bootstrap. Empty targets
// bootstrap every registered datastore.
type bootstrapRequest struct {
	Targets []string `json:"targets,omitempty"`
}

func (s *Server) bootstrapHandler(w http.ResponseWriter, r *http.Request) {
	// An absent or empty body means bootstrap everything. ContentLength
	// alone cannot tell: chunked requests report -1.
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := map[string]any{}
	if len(req.Targets) > 0 {
		targets := make([]any, len(req.Targets))
		for i, t := range req.Targets {
			targets[i] = t
		}
		params["targets"] = targets
	}

	result := s.dbAgent.Execute(r.Context(), agents.NewTask("bootstrap_database", params))

	statusCode := http.StatusOK
	if !result.Success {
		statusCode = http.StatusInternalServerError
	}

	s.audit.Record(r.Context(), AuditEntry{
		RequestID:  requestIDFrom(r),
		Actor:      actorFrom(r),
		Action:     "bootstrap_databases",
		Detail:     map[string]any{"targets": req.Targets, "success": result.Success},
		StatusCode: statusCode,
	})

	writeJSON(w, statusCode, result)
}

// requestMiddleware assigns request IDs and records request metrics.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		r.Header.Set("X-Request-ID", requestID)
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		s.metrics.RecordRequest(r.URL.Path, recorder.status, duration)
		s.log.InfoWithDuration("", requestID, "request handled",
			float64(duration.Milliseconds()), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": recorder.status,
			})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so a handler relaying streamed
// provider output can push partial responses through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestIDFrom(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// actorFrom reads the subject the auth middleware extracted from the
// bearer token. Empty when auth is disabled.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

func statusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sendErrorResponse(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]any{
		"error":  message,
		"status": status,
	})
}
