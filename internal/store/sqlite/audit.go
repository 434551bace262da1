// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package sqlite provides the SQLite-backed audit store.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/praxis-hq/praxis/internal/store"
	"github.com/praxis-hq/praxis/pkg/errors"
)

// Compile-time interface check.
var _ store.AuditStore = (*AuditStore)(nil)

// AuditStore implements store.AuditStore backed by a single SQLite database.
// Every row carries a checksum over its own content so tampering with the
// trail after the fact is detectable.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore opens (or creates) a SQLite database at dbPath and
// initialises the audit_log table.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "opening audit db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "pinging audit db")
	}

	if err := migrateAudit(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "migrating audit db")
	}

	return &AuditStore{db: db}, nil
}

func migrateAudit(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_log (
	id                TEXT PRIMARY KEY,
	timestamp         TEXT NOT NULL,
	action            TEXT NOT NULL DEFAULT '',
	severity          TEXT NOT NULL DEFAULT 'info',
	extension_id      TEXT NOT NULL DEFAULT '',
	extension_version TEXT NOT NULL DEFAULT '',
	actor_id          TEXT NOT NULL DEFAULT '',
	metadata          TEXT NOT NULL DEFAULT '{}',
	checksum          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_extension ON audit_log(extension_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *AuditStore) Close() error { return s.db.Close() }

// Append inserts one audit entry.
func (s *AuditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	metadata := "{}"
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling audit metadata: %w", err)
		}
		metadata = string(b)
	}

	ts := formatTime(entry.Timestamp)
	sum := checksumRow(entry.ID, ts, entry.Action, string(entry.Severity),
		entry.ExtensionID, entry.ExtensionVersion, entry.ActorID, metadata)

	const q = `INSERT INTO audit_log (id, timestamp, action, severity, extension_id, extension_version, actor_id, metadata, checksum)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, ts, entry.Action, string(entry.Severity),
		entry.ExtensionID, entry.ExtensionVersion, entry.ActorID, metadata, sum,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry %s: %w", entry.ID, err)
	}
	return nil
}

// Query returns entries matching filter, oldest first.
func (s *AuditStore) Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, timestamp, action, severity, extension_id, extension_version, actor_id, metadata FROM audit_log`)

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.ExtensionID != "" {
		conditions = append(conditions, "extension_id = ?")
		args = append(args, filter.ExtensionID)
	}
	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY timestamp ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var ts, severity, metadataJSON string
		if err := rows.Scan(
			&e.ID, &ts, &e.Action, &severity,
			&e.ExtensionID, &e.ExtensionVersion, &e.ActorID, &metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Severity = store.Severity(severity)
		e.Timestamp = parseTime(ts)
		if metadataJSON != "" && metadataJSON != "{}" {
			if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// VerifyIntegrity recomputes each row checksum and returns the IDs of
// rows whose stored checksum no longer matches their content.
func (s *AuditStore) VerifyIntegrity(ctx context.Context) ([]string, error) {
	const q = `SELECT id, timestamp, action, severity, extension_id, extension_version, actor_id, metadata, checksum FROM audit_log ORDER BY timestamp ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading audit log for verification: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var tampered []string
	for rows.Next() {
		var id, ts, action, severity, extID, extVersion, actorID, metadata, stored string
		if err := rows.Scan(&id, &ts, &action, &severity, &extID, &extVersion, &actorID, &metadata, &stored); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if checksumRow(id, ts, action, severity, extID, extVersion, actorID, metadata) != stored {
			tampered = append(tampered, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return tampered, nil
}

// checksumRow hashes the row fields in column order, NUL-separated so
// adjacent fields cannot be confused.
func checksumRow(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
