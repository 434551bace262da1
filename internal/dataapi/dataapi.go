// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package dataapi is the record access surface handed to extensions. Every
// call re-checks the extension's lifecycle state, its license, and the
// capability model before any record is touched, and every successful read
// is audited independently of lifecycle events.
package dataapi

import (
	"context"

	"github.com/praxis-hq/praxis/internal/capability"
	"github.com/praxis-hq/praxis/internal/license"
	"github.com/praxis-hq/praxis/internal/registry"
	"github.com/praxis-hq/praxis/internal/store"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// Record is one domain record as an opaque field map. Formatting and
// schema are owned by the host's record modules, not by this gateway.
type Record map[string]any

// RecordSource fetches raw records. The gateway consults capabilities and
// licensing before ever calling it.
type RecordSource interface {
	Fetch(ctx context.Context, resource extension.ResourceKind, recordID string) (Record, error)
}

// ExecutionChecker is the runtime license gate. Satisfied by
// *license.Enforcer.
type ExecutionChecker interface {
	CheckExecution(extensionID string) license.Decision
}

// Caller identifies who is asking: the extension doing the access and the
// human user it acts for, with that user's role permissions.
type Caller struct {
	ExtensionID string
	ActorID     string
	Role        capability.Role
}

// Gateway gates extension access to domain records and command execution.
type Gateway struct {
	registry *registry.Registry
	licenses ExecutionChecker
	source   RecordSource
	audit    *store.Sink
}

// New wires a gateway over the registry, the runtime license check, and a
// record source.
func New(reg *registry.Registry, licenses ExecutionChecker, source RecordSource, audit *store.Sink) *Gateway {
	return &Gateway{registry: reg, licenses: licenses, source: source, audit: audit}
}

// GetRecord returns one record after the full check chain: the extension
// must be enabled, its license must pass the execution-time check, and
// both the extension grant and the caller's role must allow reading the
// resource. A successful read emits a data-access audit event.
func (g *Gateway) GetRecord(ctx context.Context, caller Caller, resource extension.ResourceKind, recordID string) (Record, error) {
	ext, err := g.authorize(ctx, caller, resource, extension.ActionRead)
	if err != nil {
		return nil, err
	}

	record, err := g.source.Fetch(ctx, resource, recordID)
	if err != nil {
		return nil, err
	}

	g.audit.Emit(ctx, store.AuditEntry{
		Action:           store.ActionDataAccess,
		Severity:         store.SeverityInfo,
		ExtensionID:      caller.ExtensionID,
		ExtensionVersion: ext.Manifest.Version,
		ActorID:          caller.ActorID,
		Metadata: map[string]any{
			"resource": string(resource),
			"recordId": recordID,
			"action":   string(extension.ActionRead),
		},
	})
	return record, nil
}

// ExecuteCommand re-checks lifecycle and license for the extension that
// registered commandID, then reports which extension should handle it.
// Dispatching the handler itself is the host shell's job.
func (g *Gateway) ExecuteCommand(ctx context.Context, commandID, actorID string) (string, error) {
	extensionID, ok := g.registry.Commands().Resolve(commandID)
	if !ok {
		return "", praxiserr.Errorf(praxiserr.CodeRegistryNotFound, "no enabled extension handles command %s", commandID)
	}

	ext, err := g.registry.Get(extensionID)
	if err != nil {
		return "", err
	}
	if ext.State != registry.StateEnabled {
		return "", praxiserr.Errorf(praxiserr.CodeRegistryStateInvalid, "extension %s is not enabled", extensionID)
	}

	if err := g.checkLicense(ctx, extensionID, ext.Manifest.Version, actorID); err != nil {
		return "", err
	}
	return extensionID, nil
}

// authorize runs the shared pre-access chain and returns the extension
// snapshot for callers that need its version.
func (g *Gateway) authorize(ctx context.Context, caller Caller, resource extension.ResourceKind, action extension.Action) (registry.InstalledExtension, error) {
	ext, err := g.registry.Get(caller.ExtensionID)
	if err != nil {
		return registry.InstalledExtension{}, err
	}
	if ext.State != registry.StateEnabled {
		return registry.InstalledExtension{}, praxiserr.Errorf(praxiserr.CodeRegistryStateInvalid,
			"extension %s is not enabled", caller.ExtensionID)
	}

	if err := g.checkLicense(ctx, caller.ExtensionID, ext.Manifest.Version, caller.ActorID); err != nil {
		return registry.InstalledExtension{}, err
	}

	decision := capability.CheckAccess(ext.Granted, resource, action, caller.Role)
	if !decision.Allowed {
		g.audit.Emit(ctx, store.AuditEntry{
			Action:           store.ActionCapabilityDenied,
			Severity:         store.SeverityWarning,
			ExtensionID:      caller.ExtensionID,
			ExtensionVersion: ext.Manifest.Version,
			ActorID:          caller.ActorID,
			Metadata: map[string]any{
				"resource": string(resource),
				"action":   string(action),
				"reason":   decision.Reason,
			},
		})
		return registry.InstalledExtension{}, praxiserr.New(praxiserr.CodeCapabilityDenied,
			decision.Reason,
			praxiserr.FieldExtensionID(caller.ExtensionID),
			praxiserr.FieldActorID(caller.ActorID),
			praxiserr.Field("resource", string(resource)),
			praxiserr.Field("action", string(action)),
		)
	}

	return ext, nil
}

// checkLicense applies the execution-time license decision. A soft allow
// inside the grace window passes through untouched; the grace flag only
// shows up in the audit trail.
func (g *Gateway) checkLicense(ctx context.Context, extensionID, version, actorID string) error {
	decision := g.licenses.CheckExecution(extensionID)
	if decision.Allowed {
		if decision.Reason == license.ReasonGracePeriod {
			g.audit.Emit(ctx, store.AuditEntry{
				Action:           store.ActionLicenseCheck,
				Severity:         store.SeverityWarning,
				ExtensionID:      extensionID,
				ExtensionVersion: version,
				ActorID:          actorID,
				Metadata:         map[string]any{"outcome": license.ReasonGracePeriod},
			})
		}
		return nil
	}

	g.audit.Emit(ctx, store.AuditEntry{
		Action:           store.ActionLicenseCheck,
		Severity:         store.SeverityWarning,
		ExtensionID:      extensionID,
		ExtensionVersion: version,
		ActorID:          actorID,
		Metadata:         map[string]any{"outcome": decision.Reason},
	})

	if decision.Reason == license.ReasonGraceExpired {
		return praxiserr.New(praxiserr.CodeLicenseGraceExpired, decision.Reason,
			praxiserr.FieldExtensionID(extensionID), praxiserr.FieldActorID(actorID))
	}
	return praxiserr.New(praxiserr.CodeLicenseDenied, decision.Reason,
		praxiserr.FieldExtensionID(extensionID), praxiserr.FieldActorID(actorID))
}
