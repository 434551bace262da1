// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package registry is the authoritative in-memory store of installed
// extensions and their lifecycle state. All mutating operations serialize
// per extension id, emit exactly one audit event per transition, and
// rewrite the persisted state document on success.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/praxis-hq/praxis/internal/capability"
	"github.com/praxis-hq/praxis/internal/store"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// SystemActor is the actor id used by the host itself for startup replay.
// Enable calls under this actor may fall back to a still-valid cached
// license when the license service is unreachable.
const SystemActor = "system"

// LicenseChecker gates enable transitions. systemStartup selects the
// offline carve-out for the startup replay path.
type LicenseChecker interface {
	CheckEnable(ctx context.Context, extensionID string, systemStartup bool) error
}

// InstalledExtension is a point-in-time snapshot of one registry record.
type InstalledExtension struct {
	Manifest    extension.Manifest
	State       State
	InstallPath string
	InstalledAt time.Time
	EnabledAt   *time.Time
	Granted     extension.CapabilitySet
}

// record is the mutable registry entry behind each snapshot.
type record struct {
	manifest    extension.Manifest
	state       State
	installPath string
	installedAt time.Time
	enabledAt   *time.Time
	granted     extension.CapabilitySet
}

func (r *record) snapshot() InstalledExtension {
	snap := InstalledExtension{
		Manifest:    r.manifest,
		State:       r.state,
		InstallPath: r.installPath,
		InstalledAt: r.installedAt,
		Granted:     r.granted.Clone(),
	}
	if r.enabledAt != nil {
		at := *r.enabledAt
		snap.EnabledAt = &at
	}
	return snap
}

// Registry holds all installed extensions keyed by id.
type Registry struct {
	hostVersion *semver.Version
	licenses    LicenseChecker
	commands    *CommandTable
	audit       *store.Sink
	state       *StateFile
	logger      *slog.Logger
	now         func() time.Time

	mu         sync.RWMutex
	extensions map[string]*record
	locks      map[string]*sync.Mutex
}

// New creates a registry for the given host version. stateFile may point at
// a not-yet-existing path; it is created on the first mutation.
func New(hostVersion string, licenses LicenseChecker, commands *CommandTable, audit *store.Sink, stateFile *StateFile, logger *slog.Logger) (*Registry, error) {
	hv, err := semver.NewVersion(hostVersion)
	if err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeConfigValidateInvalidValue, "parsing host version %q", hostVersion)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hostVersion: hv,
		licenses:    licenses,
		commands:    commands,
		audit:       audit,
		state:       stateFile,
		logger:      logger,
		now:         time.Now,
		extensions:  make(map[string]*record),
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// Commands returns the command table the registry maintains.
func (r *Registry) Commands() *CommandTable { return r.commands }

// lockFor returns the per-id transition lock, creating it on first use.
// The lock survives uninstall so a reinstall of the same id still
// serializes against stragglers.
func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Install registers a validated package in the installed state with an
// empty granted capability set. Capabilities are never auto-granted from
// the manifest's requested set.
func (r *Registry) Install(ctx context.Context, manifest *extension.Manifest, installPath, actorID string) error {
	if errs := manifest.Validate(); len(errs) > 0 {
		return praxiserr.Wrap(errs, praxiserr.CodeManifestValidateInvalid, "manifest validation failed",
			praxiserr.FieldExtensionID(manifest.ID))
	}

	minVer, err := semver.NewVersion(manifest.MinHostVersion)
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeManifestValidateInvalid, "parsing minHostVersion %q", manifest.MinHostVersion)
	}
	if minVer.GreaterThan(r.hostVersion) {
		return praxiserr.Errorf(praxiserr.CodeRegistryHostIncompatible,
			"extension %s requires host >= %s, running %s", manifest.ID, manifest.MinHostVersion, r.hostVersion)
	}

	lock := r.lockFor(manifest.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if _, exists := r.extensions[manifest.ID]; exists {
		r.mu.Unlock()
		return praxiserr.Errorf(praxiserr.CodeRegistryDuplicate, "extension %s is already installed", manifest.ID)
	}
	r.extensions[manifest.ID] = &record{
		manifest:    *manifest,
		state:       StateInstalled,
		installPath: installPath,
		installedAt: r.now().UTC(),
	}
	r.mu.Unlock()

	r.emit(ctx, store.ActionExtensionInstall, store.SeverityInfo, manifest.ID, manifest.Version, actorID, map[string]any{
		"installPath": installPath,
	})
	r.persist()
	return nil
}

// GrantCapabilities replaces the granted set wholesale after validating it
// against the manifest's requested set. Grants are never merged.
func (r *Registry) GrantCapabilities(ctx context.Context, id string, granted extension.CapabilitySet, actorID string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	rec, ok := r.extensions[id]
	if !ok {
		r.mu.Unlock()
		return notFound(id)
	}
	if violations := capability.ValidateGrantSubset(granted, rec.manifest.Capabilities); len(violations) > 0 {
		r.mu.Unlock()
		return praxiserr.Wrap(grantError(violations), praxiserr.CodeCapabilityGrantInvalid,
			"grant exceeds requested capabilities", praxiserr.FieldExtensionID(id))
	}
	rec.granted = granted.Clone()
	version := rec.manifest.Version
	r.mu.Unlock()

	r.emit(ctx, store.ActionCapabilityGrant, store.SeverityInfo, id, version, actorID, map[string]any{
		"granted": granted,
	})
	r.persist()
	return nil
}

// Enable transitions an extension to enabled after the license check
// passes. It rejects an already-enabled extension and an empty granted set
// with distinct reasons.
func (r *Registry) Enable(ctx context.Context, id, actorID string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	rec, ok := r.extensions[id]
	if !ok {
		r.mu.RUnlock()
		return notFound(id)
	}
	if !ValidTransition(rec.state, StateEnabled) {
		from := rec.state
		r.mu.RUnlock()
		return praxiserr.Errorf(praxiserr.CodeRegistryStateInvalid,
			"extension %s cannot be enabled from state %s", id, from)
	}
	if rec.granted.IsEmpty() {
		r.mu.RUnlock()
		return praxiserr.Errorf(praxiserr.CodeRegistryGrantEmpty, "extension %s has no granted capabilities", id)
	}
	version := rec.manifest.Version
	r.mu.RUnlock()

	// The record cannot change between the read above and the write below:
	// all mutations of this id hold the per-id lock we already own.
	if err := r.licenses.CheckEnable(ctx, id, actorID == SystemActor); err != nil {
		r.emit(ctx, store.ActionLicenseCheck, store.SeverityWarning, id, version, actorID, map[string]any{
			"outcome": "denied",
			"error":   err.Error(),
		})
		return err
	}

	r.mu.Lock()
	at := r.now().UTC()
	rec.state = StateEnabled
	rec.enabledAt = &at
	commands := rec.manifest.Contributions.Commands
	r.mu.Unlock()

	r.commands.Register(id, commands)

	r.emit(ctx, store.ActionExtensionEnable, store.SeverityInfo, id, version, actorID, nil)
	r.persist()
	return nil
}

// Disable transitions an enabled extension to disabled and deregisters its
// contributed command handlers.
func (r *Registry) Disable(ctx context.Context, id, actorID string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return r.disableLocked(ctx, id, actorID, "")
}

// DisableWithReason is Disable with an explicit reason recorded in the
// audit trail, for callers like the startup license sweep.
func (r *Registry) DisableWithReason(ctx context.Context, id, actorID, reason string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return r.disableLocked(ctx, id, actorID, reason)
}

// disableLocked performs the disable transition. The caller must hold the
// per-id lock.
func (r *Registry) disableLocked(ctx context.Context, id, actorID, reason string) error {
	r.mu.Lock()
	rec, ok := r.extensions[id]
	if !ok {
		r.mu.Unlock()
		return notFound(id)
	}
	if !ValidTransition(rec.state, StateDisabled) {
		from := rec.state
		r.mu.Unlock()
		return praxiserr.Errorf(praxiserr.CodeRegistryStateInvalid,
			"extension %s cannot be disabled from state %s", id, from)
	}
	rec.state = StateDisabled
	rec.enabledAt = nil
	version := rec.manifest.Version
	r.mu.Unlock()

	r.commands.Deregister(id)

	var meta map[string]any
	if reason != "" {
		meta = map[string]any{"reason": reason}
	}
	r.emit(ctx, store.ActionExtensionDisable, store.SeverityInfo, id, version, actorID, meta)
	r.persist()
	return nil
}

// RevokeCapabilities empties the granted set, forcing a disable first when
// the extension is currently enabled.
func (r *Registry) RevokeCapabilities(ctx context.Context, id, actorID string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	rec, ok := r.extensions[id]
	if !ok {
		r.mu.RUnlock()
		return notFound(id)
	}
	enabled := rec.state == StateEnabled
	r.mu.RUnlock()

	if enabled {
		if err := r.disableLocked(ctx, id, actorID, "capabilities_revoked"); err != nil {
			return err
		}
	}

	r.mu.Lock()
	previous := rec.granted
	rec.granted = extension.CapabilitySet{}
	version := rec.manifest.Version
	r.mu.Unlock()

	r.emit(ctx, store.ActionCapabilityRevoke, store.SeverityWarning, id, version, actorID, map[string]any{
		"previous": previous,
	})
	r.persist()
	return nil
}

// Uninstall removes the record entirely, forcing a disable first when the
// extension is currently enabled. The id may be reinstalled later as a
// fresh record.
func (r *Registry) Uninstall(ctx context.Context, id, actorID string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	rec, ok := r.extensions[id]
	if !ok {
		r.mu.RUnlock()
		return notFound(id)
	}
	enabled := rec.state == StateEnabled
	version := rec.manifest.Version
	r.mu.RUnlock()

	if enabled {
		if err := r.disableLocked(ctx, id, actorID, "uninstall"); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.extensions, id)
	r.mu.Unlock()

	r.emit(ctx, store.ActionExtensionUninstall, store.SeverityInfo, id, version, actorID, nil)
	r.persist()
	return nil
}

// Get returns a snapshot of one extension.
func (r *Registry) Get(id string) (InstalledExtension, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.extensions[id]
	if !ok {
		return InstalledExtension{}, notFound(id)
	}
	return rec.snapshot(), nil
}

// GetAll returns snapshots of every installed extension, sorted by id.
func (r *Registry) GetAll() []InstalledExtension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]InstalledExtension, 0, len(r.extensions))
	for _, rec := range r.extensions {
		all = append(all, rec.snapshot())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Manifest.ID < all[j].Manifest.ID })
	return all
}

// GetEnabled returns snapshots of the currently enabled extensions, sorted
// by id.
func (r *Registry) GetEnabled() []InstalledExtension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []InstalledExtension
	for _, rec := range r.extensions {
		if rec.state == StateEnabled {
			enabled = append(enabled, rec.snapshot())
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Manifest.ID < enabled[j].Manifest.ID })
	return enabled
}

// Reset drops all records and command bindings. Test isolation hook.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.extensions {
		r.commands.Deregister(id)
	}
	r.extensions = make(map[string]*record)
}

// emit writes one lifecycle audit event. Best effort by contract.
func (r *Registry) emit(ctx context.Context, action string, severity store.Severity, id, version, actorID string, metadata map[string]any) {
	if r.audit == nil {
		return
	}
	r.audit.Emit(ctx, store.AuditEntry{
		Action:           action,
		Severity:         severity,
		ExtensionID:      id,
		ExtensionVersion: version,
		ActorID:          actorID,
		Metadata:         metadata,
	})
}

// persist rewrites the state document from the current records. A write
// failure is logged, not surfaced: the in-memory transition already
// happened and the audit event for it was already emitted.
func (r *Registry) persist() {
	if r.state == nil {
		return
	}

	r.mu.RLock()
	persisted := make([]PersistedExtension, 0, len(r.extensions))
	for id, rec := range r.extensions {
		p := PersistedExtension{
			ExtensionID:         id,
			Enabled:             rec.state == StateEnabled,
			GrantedCapabilities: rec.granted.Clone(),
		}
		if rec.enabledAt != nil {
			at := *rec.enabledAt
			p.EnabledAt = &at
		}
		persisted = append(persisted, p)
	}
	r.mu.RUnlock()

	if err := r.state.Save(persisted); err != nil {
		r.logger.Error("persisting registry state failed", "error", err)
	}
}

func notFound(id string) error {
	return praxiserr.Errorf(praxiserr.CodeRegistryNotFound, "extension %s not found", id)
}

func grantError(violations []capability.Violation) error {
	errs := make([]error, len(violations))
	for i, v := range violations {
		errs[i] = v
	}
	return praxiserr.Join(praxiserr.CodeCapabilityGrantInvalid, errs...)
}
