// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// levelRank orders levels for threshold filtering.
var levelRank = map[LogLevel]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

// Logger writes structured log entries for a single component.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	mu       sync.Mutex
	out      io.Writer
	minLevel LogLevel
}

// LogEntry is the JSON shape of every log line.
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	ProjectID  string                 `json:"project_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the specified component. The instance ID comes
// from the INSTANCE_ID environment variable and the container name from the
// hostname, matching what the compose stack injects.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	minLevel := INFO
	if lvl := LogLevel(os.Getenv("LOG_LEVEL")); lvl != "" {
		if _, ok := levelRank[lvl]; ok {
			minLevel = lvl
		}
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		out:        os.Stdout,
		minLevel:   minLevel,
	}
}

// SetOutput redirects log output, primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log creates a structured log entry and writes it as a single JSON line.
func (l *Logger) Log(level LogLevel, projectID, requestID, message string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		ProjectID:  projectID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Never drop the message entirely
		l.mu.Lock()
		defer l.mu.Unlock()
		_, _ = l.out.Write([]byte(`{"level":"ERROR","message":"failed to marshal log entry"}` + "\n"))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(jsonBytes, '\n'))
}

// Info logs an informational message
func (l *Logger) Info(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, projectID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, projectID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, projectID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, projectID, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field.
func (l *Logger) InfoWithDuration(projectID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(projectID, requestID, message, fields)
}

// ErrorWithCode logs an error with an HTTP status code and the error text.
func (l *Logger) ErrorWithCode(projectID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(projectID, requestID, message, fields)
}
