// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package agents implements the Genesis agent framework. Agents turn
// high-level backend design and generation tasks into LLM completion
// requests, relay the responses, and wrap the outcome in a TaskResult.
// Task failures are reported in the result, not as Go errors, so a relay
// pipeline can always continue with the next task.
package agents

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"genesis/backend/llm"
	"genesis/backend/shared/logger"
)

// AgentTask is a unit of work submitted to an agent.
type AgentTask struct {
	// ID uniquely identifies the task. NewTask assigns a uuid.
	ID string `json:"id"`

	// Name selects the handler, e.g. "design_api_architecture".
	Name string `json:"name"`

	// Params carries task input (requirements, entities, config, ...).
	Params map[string]any `json:"params,omitempty"`
}

// NewTask creates a task with a generated ID.
func NewTask(name string, params map[string]any) AgentTask {
	return AgentTask{
		ID:     uuid.New().String(),
		Name:   name,
		Params: params,
	}
}

// TaskResult is the outcome of a task. Success is false when the handler
// failed; Error then carries the reason. Result holds the structured
// output on success.
type TaskResult struct {
	TaskID   string         `json:"task_id"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Router is the slice of the LLM router the agents use. *llm.Router
// satisfies it.
type Router interface {
	Route(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Handler implements a single named task.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Agent is the base type shared by all Genesis agents. Concrete agents
// embed it and register their handlers at construction time.
type Agent struct {
	id        string
	name      string
	agentType string
	router    Router
	log       *logger.Logger
	handlers  map[string]Handler
}

// NewAgent creates a base agent. The component name of the logger is the
// agent ID.
func NewAgent(id, name, agentType string, router Router) *Agent {
	return &Agent{
		id:        id,
		name:      name,
		agentType: agentType,
		router:    router,
		log:       logger.New(id),
		handlers:  make(map[string]Handler),
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the human-readable agent name.
func (a *Agent) Name() string { return a.name }

// Type returns the agent type (architect, framework, database, auth).
func (a *Agent) Type() string { return a.agentType }

// Capabilities returns the sorted list of task names this agent handles.
func (a *Agent) Capabilities() []string {
	caps := make([]string, 0, len(a.handlers))
	for name := range a.handlers {
		caps = append(caps, name)
	}
	sort.Strings(caps)
	return caps
}

// CanHandle reports whether the agent has a handler for the task name.
func (a *Agent) CanHandle(taskName string) bool {
	_, ok := a.handlers[taskName]
	return ok
}

// register adds a handler for a task name.
func (a *Agent) register(taskName string, handler Handler) {
	a.handlers[taskName] = handler
}

// Execute dispatches the task to its handler and wraps the outcome.
// It never returns a Go error: handler failures, unknown task names, and
// panics all surface as TaskResult with Success=false.
func (a *Agent) Execute(ctx context.Context, task AgentTask) (result TaskResult) {
	start := time.Now()

	meta := map[string]any{
		"agent":     a.name,
		"task_type": task.Name,
		"timestamp": start.UTC().Format(time.RFC3339),
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("", task.ID, "task handler panicked", map[string]any{
				"task": task.Name, "panic": fmt.Sprint(r),
			})
			result = TaskResult{
				TaskID:   task.ID,
				Success:  false,
				Error:    fmt.Sprintf("task %s panicked: %v", task.Name, r),
				Metadata: meta,
			}
		}
	}()

	handler, ok := a.handlers[task.Name]
	if !ok {
		return TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    fmt.Sprintf("agent %s has no handler for task %q", a.id, task.Name),
			Metadata: meta,
		}
	}

	a.log.Info("", task.ID, "executing task", map[string]any{"task": task.Name})

	out, err := handler(ctx, task.Params)
	if err != nil {
		a.log.Error("", task.ID, "task failed", map[string]any{
			"task": task.Name, "error": err.Error(),
		})
		return TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    err.Error(),
			Metadata: meta,
		}
	}

	a.log.InfoWithDuration("", task.ID, "task completed",
		float64(time.Since(start).Milliseconds()), map[string]any{"task": task.Name})

	return TaskResult{
		TaskID:   task.ID,
		Success:  true,
		Result:   out,
		Metadata: meta,
	}
}

// complete sends a prompt through the router with the given action and
// system prompt, returning the response text.
func (a *Agent) complete(ctx context.Context, action llm.Action, systemPrompt, prompt string) (string, error) {
	resp, err := a.router.Route(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Action:       action,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Param helpers. Params arrive as generic maps (decoded JSON), so access
// is permissive: a missing or mistyped value yields the zero value.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]any, key string) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return false
}

func sliceParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func mapParam(params map[string]any, key string) map[string]any {
	if v, ok := params[key].(map[string]any); ok {
		return v
	}
	return nil
}
