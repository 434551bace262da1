// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package license enforces extension licensing with offline tolerance.
// Enabling an extension demands a fresh online verification; runtime checks
// never touch the network and run purely against the persisted cache, with
// a bounded grace window so a clinic keeps working through an outage.
package license

import (
	"context"
	"log/slog"
	"time"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// OfflineGraceWindow is how long a cached verification keeps satisfying
// execution-time checks without network access. The boundary is inclusive:
// a verification exactly this old still allows.
const OfflineGraceWindow = 14 * 24 * time.Hour

// Verifier performs the online license check for one extension. An error
// means the license service was unreachable, not that the license is bad;
// an invalid license comes back as a CacheEntry with a non-valid status.
type Verifier interface {
	Verify(ctx context.Context, extensionID string) (CacheEntry, error)
}

// Decision is the outcome of an execution-time license check.
type Decision struct {
	Allowed bool
	// Reason is empty for a clean allow, "grace_period" for a soft allow
	// of a lapsed-but-recently-verified license, or a deny reason.
	Reason string
}

const (
	ReasonGracePeriod        = "grace_period"
	ReasonGraceExpired       = "offline_grace_period_expired"
	ReasonNoCachedLicense    = "no_cached_license"
	ReasonLicenseInvalid     = "license_invalid"
	ReasonNetworkUnreachable = "network_unreachable"
)

// Enforcer applies the three license checks: enable-time (online,
// mandatory), execution-time (cache only), and the startup sweep.
type Enforcer struct {
	verifier Verifier
	cache    *Cache

	// now is a test hook; defaults to time.Now.
	now func() time.Time
}

// NewEnforcer creates an Enforcer over an online verifier and a persisted
// cache.
func NewEnforcer(verifier Verifier, cache *Cache) *Enforcer {
	return &Enforcer{verifier: verifier, cache: cache, now: time.Now}
}

// CheckEnable performs the enable-time license check. It always attempts an
// online verification and refreshes the cache on success. When the network
// is unreachable the check fails, except for the system startup actor when a
// still-valid cached verification exists; that carve-out lets previously
// licensed extensions survive an offline restart.
func (e *Enforcer) CheckEnable(ctx context.Context, extensionID string, systemStartup bool) error {
	entry, err := e.verifier.Verify(ctx, extensionID)
	if err != nil {
		if systemStartup && e.hasValidCached(extensionID) {
			slog.Info("license service unreachable, enabling from cache at startup",
				"extension_id", extensionID)
			return nil
		}
		return praxiserr.Wrap(err, praxiserr.CodeLicenseUnreachable,
			"license service unreachable", praxiserr.FieldExtensionID(extensionID))
	}

	if err := e.cache.Put(entry); err != nil {
		// A cache write failure must not undo a successful verification.
		slog.Warn("could not persist license cache entry",
			"extension_id", extensionID, "error", err)
	}

	if entry.Status != StatusValid || e.pastExpiry(entry) {
		return praxiserr.New(praxiserr.CodeLicenseDenied, "license is not valid",
			praxiserr.FieldExtensionID(extensionID),
			praxiserr.Field("status", string(entry.Status)),
		)
	}

	return nil
}

// CheckExecution is the runtime check consulted on data access and command
// execution. It never attempts network access. Outside the grace window it
// denies; inside the window a lapsed license still soft-allows with
// "grace_period" so an already-running clinic can finish a working day.
func (e *Enforcer) CheckExecution(extensionID string) Decision {
	entry, ok := e.cache.Get(extensionID)
	if !ok {
		return Decision{Reason: ReasonNoCachedLicense}
	}

	if e.now().Sub(entry.LastVerifiedAt) > OfflineGraceWindow {
		return Decision{Reason: ReasonGraceExpired}
	}

	if entry.Status == StatusValid && !e.pastExpiry(entry) {
		return Decision{Allowed: true}
	}

	return Decision{Allowed: true, Reason: ReasonGracePeriod}
}

// DisableFunc force-disables an extension during the startup sweep.
type DisableFunc func(ctx context.Context, extensionID string, reason string) error

// StartupSweep re-verifies every enabled extension online. The first
// unreachable network call stops the whole sweep — a transient outage must
// not mass-disable a working installation. An extension whose fresh
// verification comes back invalid is force-disabled.
func (e *Enforcer) StartupSweep(ctx context.Context, enabledIDs []string, disable DisableFunc) error {
	for _, id := range enabledIDs {
		entry, err := e.verifier.Verify(ctx, id)
		if err != nil {
			slog.Warn("license sweep stopped: service unreachable",
				"extension_id", id, "error", err)
			return praxiserr.Wrap(err, praxiserr.CodeLicenseUnreachable,
				"license sweep aborted", praxiserr.FieldExtensionID(id))
		}

		if putErr := e.cache.Put(entry); putErr != nil {
			slog.Warn("could not persist license cache entry during sweep",
				"extension_id", id, "error", putErr)
		}

		if entry.Status != StatusValid || e.pastExpiry(entry) {
			slog.Warn("license no longer valid, disabling extension",
				"extension_id", id, "status", string(entry.Status))
			if err := disable(ctx, id, ReasonLicenseInvalid); err != nil {
				slog.Error("could not disable extension with invalid license",
					"extension_id", id, "error", err)
			}
		}
	}
	return nil
}

func (e *Enforcer) hasValidCached(extensionID string) bool {
	entry, ok := e.cache.Get(extensionID)
	if !ok {
		return false
	}
	if e.now().Sub(entry.LastVerifiedAt) > OfflineGraceWindow {
		return false
	}
	return entry.Status == StatusValid && !e.pastExpiry(entry)
}

func (e *Enforcer) pastExpiry(entry CacheEntry) bool {
	return entry.ExpiresAt != nil && entry.ExpiresAt.Before(e.now())
}
