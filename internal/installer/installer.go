// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package installer performs verified, transactional installation of
// extension packages. A package moves through a strict stage pipeline; any
// failure triggers a scoped rollback so that the live extension directory is
// either the pre-install state or the fully installed new version, never a
// mix. The final placement is a single directory rename, so a crash
// mid-install cannot expose a half-upgraded extension.
package installer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/praxis-hq/praxis/internal/integrity"
	"github.com/praxis-hq/praxis/internal/store"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// Stage identifies a step in the install pipeline, in execution order.
type Stage string

const (
	StageDownload              Stage = "download"
	StageSignatureVerification Stage = "signature_verification"
	StageHashVerification      Stage = "hash_verification"
	StageExtraction            Stage = "extraction"
	StageManifestValidation    Stage = "manifest_validation"
	StageRegistration          Stage = "registration"
)

// Package is a downloaded extension archive plus its response metadata.
// ActorID names the administrator who requested the install; it shows up
// in audit events only.
type Package struct {
	ID      string
	Bytes   []byte
	Meta    integrity.Metadata
	ActorID string
}

// Result reports the outcome of an install attempt. On failure, Stage names
// the pipeline step that failed and RolledBack whether a pre-existing
// installation was restored.
type Result struct {
	Stage       Stage
	RolledBack  bool
	InstallPath string
	Manifest    *extension.Manifest
}

// RegisterFunc is invoked at the registration stage, after the new directory
// has been swapped into place. A non-nil error rolls the swap back.
type RegisterFunc func(ctx context.Context, manifest *extension.Manifest, installPath string) error

// PackageVerifier checks package bytes against download metadata.
// *integrity.Verifier is the production implementation.
type PackageVerifier interface {
	Verify(pkg []byte, meta integrity.Metadata) error
}

// Installer verifies, extracts, and atomically installs extension packages
// under a single extensions directory.
type Installer struct {
	verifier      PackageVerifier
	extensionsDir string
	audit         *store.Sink

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates an Installer placing extensions under extensionsDir. audit
// may be nil for hosts that keep no trail.
func New(verifier PackageVerifier, extensionsDir string, audit *store.Sink) *Installer {
	return &Installer{
		verifier:      verifier,
		extensionsDir: extensionsDir,
		audit:         audit,
		inFlight:      make(map[string]bool),
	}
}

// Install runs the full pipeline for pkg. Only one install per extension id
// may be in flight; a concurrent attempt for the same id is rejected rather
// than queued, so two installs can never race on the same backup path.
func (i *Installer) Install(ctx context.Context, pkg Package, register RegisterFunc) (*Result, error) {
	if !i.acquire(pkg.ID) {
		return &Result{Stage: StageDownload}, praxiserr.Errorf(praxiserr.CodeInstallInFlight,
			"an install of %q is already in progress", pkg.ID)
	}
	defer i.release(pkg.ID)

	res := &Result{Stage: StageDownload}

	if len(pkg.Bytes) == 0 {
		return res, praxiserr.New(praxiserr.CodeInstallStageFailure, "package download is empty",
			praxiserr.FieldExtensionID(pkg.ID), praxiserr.FieldStage(string(StageDownload)))
	}

	if err := i.verify(pkg, res); err != nil {
		if i.audit != nil && praxiserr.IsIntegrityFailure(err) {
			i.audit.Emit(ctx, store.AuditEntry{
				Action:      store.ActionIntegrityFailure,
				Severity:    store.SeverityCritical,
				ExtensionID: pkg.ID,
				ActorID:     pkg.ActorID,
				Metadata: map[string]any{
					"stage": string(res.Stage),
					"error": err.Error(),
				},
			})
		}
		return res, err
	}

	tempDir, err := i.extract(pkg, res)
	if err != nil {
		return res, err
	}

	manifest, err := i.validateManifest(pkg, tempDir, res)
	if err != nil {
		i.discardTemp(tempDir, res)
		return res, err
	}
	res.Manifest = manifest

	if err := i.swap(ctx, pkg, manifest, tempDir, register, res); err != nil {
		return res, err
	}

	return res, nil
}

// verify maps the integrity check onto the signature/hash stages: the stage
// recorded depends on which of the two checks failed.
func (i *Installer) verify(pkg Package, res *Result) error {
	res.Stage = StageSignatureVerification

	err := i.verifier.Verify(pkg.Bytes, pkg.Meta)
	if err == nil {
		res.Stage = StageHashVerification
		return nil
	}

	if praxiserr.HasCode(err, praxiserr.CodeIntegrityHashMismatch) {
		res.Stage = StageHashVerification
	}
	return err
}

func (i *Installer) extract(pkg Package, res *Result) (string, error) {
	res.Stage = StageExtraction

	// The staging directory lives inside the extensions dir so that the
	// final rename stays on one filesystem.
	stagingRoot := filepath.Join(i.extensionsDir, ".staging")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return "", praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "creating staging directory")
	}

	tempDir, err := os.MkdirTemp(stagingRoot, pkg.ID+"-*")
	if err != nil {
		return "", praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "creating temp extraction directory")
	}

	if err := extractZip(pkg.Bytes, tempDir); err != nil {
		i.discardTemp(tempDir, res)
		return "", err
	}

	return tempDir, nil
}

func (i *Installer) validateManifest(pkg Package, tempDir string, res *Result) (*extension.Manifest, error) {
	res.Stage = StageManifestValidation

	data, err := os.ReadFile(filepath.Join(tempDir, extension.ManifestFileName))
	if err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "reading %s from package", extension.ManifestFileName)
	}

	manifest, err := extension.ParseManifest(data)
	if err != nil {
		return nil, err
	}

	if manifest.ID != pkg.ID {
		return nil, praxiserr.Errorf(praxiserr.CodeManifestValidateInvalid,
			"package manifest declares id %q, expected %q", manifest.ID, pkg.ID)
	}

	return manifest, nil
}

// swap performs the backup-aside and atomic rename, registers the extension,
// and cleans up. Any failure restores the pre-install state exactly.
func (i *Installer) swap(ctx context.Context, pkg Package, manifest *extension.Manifest, tempDir string, register RegisterFunc, res *Result) error {
	res.Stage = StageRegistration
	livePath := filepath.Join(i.extensionsDir, pkg.ID)
	backupPath := livePath + ".backup"

	hadPrevious := false
	if _, err := os.Stat(livePath); err == nil {
		hadPrevious = true
		if err := os.Rename(livePath, backupPath); err != nil {
			i.discardTemp(tempDir, res)
			return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "moving previous installation aside")
		}
	}

	restore := func() {
		if hadPrevious {
			if err := os.Rename(backupPath, livePath); err != nil {
				slog.Error("rollback failed: could not restore previous installation",
					"extension_id", pkg.ID, "backup", backupPath, "error", err)
				return
			}
		}
		res.RolledBack = true
	}

	if err := os.Rename(tempDir, livePath); err != nil {
		i.discardTemp(tempDir, res)
		restore()
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "activating new installation")
	}

	if register != nil {
		if err := register(ctx, manifest, livePath); err != nil {
			if rmErr := os.RemoveAll(livePath); rmErr != nil {
				slog.Error("rollback: removing rejected installation failed",
					"extension_id", pkg.ID, "path", livePath, "error", rmErr)
			}
			restore()
			return err
		}
	}

	if hadPrevious {
		if err := os.RemoveAll(backupPath); err != nil {
			slog.Warn("could not remove install backup", "path", backupPath, "error", err)
		}
	}

	res.InstallPath = livePath
	return nil
}

// discardTemp removes the temporary extraction directory, recording that a
// rollback of install side effects took place.
func (i *Installer) discardTemp(tempDir string, res *Result) {
	if tempDir == "" {
		return
	}
	if err := os.RemoveAll(tempDir); err != nil {
		slog.Warn("could not remove temp extraction directory", "path", tempDir, "error", err)
		return
	}
	res.RolledBack = true
}

func (i *Installer) acquire(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.inFlight[id] {
		return false
	}
	i.inFlight[id] = true
	return true
}

func (i *Installer) release(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.inFlight, id)
}
