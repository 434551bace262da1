// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package store defines the audit trail contract for security-relevant
// extension events and provides SQLite and in-memory implementations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Audit actions emitted by the extension subsystem.
const (
	ActionExtensionInstall   = "extension.install"
	ActionExtensionUninstall = "extension.uninstall"
	ActionExtensionEnable    = "extension.enable"
	ActionExtensionDisable   = "extension.disable"
	ActionCapabilityGrant    = "capability.grant"
	ActionCapabilityRevoke   = "capability.revoke"
	ActionCapabilityDenied   = "capability.denied"
	ActionLicenseCheck       = "license.check"
	ActionIntegrityFailure   = "integrity.failure"
	ActionDataAccess         = "data.access"
)

// AuditEntry is one security-relevant event. Metadata carries
// action-specific detail such as the denied resource or the failed
// install stage.
type AuditEntry struct {
	ID               string
	Timestamp        time.Time
	Action           string
	Severity         Severity
	ExtensionID      string
	ExtensionVersion string
	ActorID          string
	Metadata         map[string]any
}

// AuditFilter specifies criteria for querying audit entries.
// Zero-valued fields match everything.
type AuditFilter struct {
	Action      string
	Severity    Severity
	ExtensionID string
	ActorID     string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// AuditStore persists audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
	Close() error
}

// Sink is the write-side facade handed to the security components. Audit
// writes are best effort: a failed append is logged, never surfaced, so
// an unavailable audit store cannot block an access decision.
type Sink struct {
	store  AuditStore
	logger *slog.Logger
}

// NewSink wraps store. A nil logger falls back to slog.Default.
func NewSink(store AuditStore, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{store: store, logger: logger}
}

// Emit assigns the entry an ID and timestamp if unset and appends it.
func (s *Sink) Emit(ctx context.Context, entry AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	if err := s.store.Append(ctx, &entry); err != nil {
		s.logger.Error("audit append failed",
			"action", entry.Action,
			"extension_id", entry.ExtensionID,
			"error", err,
		)
	}
}
