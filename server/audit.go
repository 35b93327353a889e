// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"genesis/backend/shared/logger"
)

const auditRingSize = 1024

// AuditEntry is one row of the audit trail. Entries land in the Postgres
// audit_log table the bootstrap creates, or in an in-memory ring when no
// database is configured.
type AuditEntry struct {
	ID         int64          `json:"id,omitempty"`
	RequestID  string         `json:"request_id"`
	Actor      string         `json:"actor,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	StatusCode int            `json:"status_code"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditSearch filters an audit query. Zero fields are ignored.
type AuditSearch struct {
	RequestID string    `json:"request_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// AuditLogger records API activity. With a database it writes through to
// audit_log; without one it keeps the most recent entries in a ring so
// /api/v1/audit/search still works in development.
type AuditLogger struct {
	db  *sql.DB
	log *logger.Logger

	mu   sync.Mutex
	ring []AuditEntry
	seq  int64
}

// NewAuditLogger creates an audit logger. db may be nil.
func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{
		db:   db,
		log:  logger.New("audit-logger"),
		ring: make([]AuditEntry, 0, auditRingSize),
	}
}

// Record persists one entry. Failures are logged, never surfaced: audit
// writes must not fail the request they describe.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if l.db == nil {
		l.recordInMemory(entry)
		return
	}

	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		detailJSON = []byte("{}")
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_log (request_id, actor, action, resource, detail, status_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.RequestID, entry.Actor, entry.Action, entry.Resource,
		detailJSON, entry.StatusCode, entry.CreatedAt,
	)
	if err != nil {
		l.log.Error("", entry.RequestID, "failed to write audit entry", map[string]any{
			"error":  err.Error(),
			"action": entry.Action,
		})
		l.recordInMemory(entry)
	}
}

func (l *AuditLogger) recordInMemory(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	entry.ID = l.seq
	l.ring = append(l.ring, entry)
	if len(l.ring) > auditRingSize {
		l.ring = l.ring[len(l.ring)-auditRingSize:]
	}
}

// Search returns matching entries, newest first.
func (l *AuditLogger) Search(ctx context.Context, criteria AuditSearch) ([]AuditEntry, error) {
	if criteria.Limit <= 0 {
		criteria.Limit = 100
	}

	if l.db == nil {
		return l.searchInMemory(criteria), nil
	}
	return l.searchDatabase(ctx, criteria)
}

func (l *AuditLogger) searchDatabase(ctx context.Context, criteria AuditSearch) ([]AuditEntry, error) {
	var conditions []string
	var args []any

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if criteria.RequestID != "" {
		addCondition("request_id = $%d", criteria.RequestID)
	}
	if criteria.Actor != "" {
		addCondition("actor = $%d", criteria.Actor)
	}
	if criteria.Action != "" {
		addCondition("action = $%d", criteria.Action)
	}
	if criteria.Resource != "" {
		addCondition("resource = $%d", criteria.Resource)
	}
	if !criteria.Since.IsZero() {
		addCondition("created_at >= $%d", criteria.Since)
	}
	if !criteria.Until.IsZero() {
		addCondition("created_at <= $%d", criteria.Until)
	}

	query := `SELECT id, request_id, actor, action, resource, detail, status_code, created_at
	          FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", criteria.Limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var actor, resource sql.NullString
		var detailJSON []byte

		if err := rows.Scan(&entry.ID, &entry.RequestID, &actor, &entry.Action,
			&resource, &detailJSON, &entry.StatusCode, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Actor = actor.String
		entry.Resource = resource.String
		if len(detailJSON) > 0 {
			_ = json.Unmarshal(detailJSON, &entry.Detail)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (l *AuditLogger) searchInMemory(criteria AuditSearch) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []AuditEntry
	for i := len(l.ring) - 1; i >= 0 && len(entries) < criteria.Limit; i-- {
		if matchesCriteria(l.ring[i], criteria) {
			entries = append(entries, l.ring[i])
		}
	}
	return entries
}

func matchesCriteria(entry AuditEntry, criteria AuditSearch) bool {
	if criteria.RequestID != "" && entry.RequestID != criteria.RequestID {
		return false
	}
	if criteria.Actor != "" && entry.Actor != criteria.Actor {
		return false
	}
	if criteria.Action != "" && entry.Action != criteria.Action {
		return false
	}
	if criteria.Resource != "" && entry.Resource != criteria.Resource {
		return false
	}
	if !criteria.Since.IsZero() && entry.CreatedAt.Before(criteria.Since) {
		return false
	}
	if !criteria.Until.IsZero() && entry.CreatedAt.After(criteria.Until) {
		return false
	}
	return true
}

// IsHealthy reports whether the backing store is reachable. The ring
// fallback is always healthy.
func (l *AuditLogger) IsHealthy() bool {
	if l.db == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return l.db.PingContext(ctx) == nil
}
