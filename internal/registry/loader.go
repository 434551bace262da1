// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package registry

import (
	"context"
	"os"
	"path/filepath"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// DiscoveredPackage is one on-disk extension candidate that parsed and
// validated cleanly.
type DiscoveredPackage struct {
	Manifest *extension.Manifest
	Path     string
}

// Discover scans extensionsDir for directories containing an
// extension.yaml. Unreadable or invalid manifests are skipped with a
// warning; they never fail the scan.
func (r *Registry) Discover(extensionsDir string) ([]DiscoveredPackage, error) {
	entries, err := os.ReadDir(extensionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, praxiserr.Wrap(err, praxiserr.CodeRegistryPersistFailure, "reading extensions directory")
	}

	var packages []DiscoveredPackage

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := filepath.Join(extensionsDir, entry.Name(), extension.ManifestFileName)
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn("skipping extension: cannot read manifest",
					"path", manifestPath, "error", err)
			}
			continue
		}

		// ParseManifest validates strictly; a non-nil manifest is fully valid.
		manifest, err := extension.ParseManifest(data)
		if err != nil {
			r.logger.Warn("skipping extension: invalid manifest",
				"path", manifestPath, "error", err)
			continue
		}

		packages = append(packages, DiscoveredPackage{
			Manifest: manifest,
			Path:     filepath.Join(extensionsDir, entry.Name()),
		})
	}

	return packages, nil
}

// Bootstrap discovers on-disk packages and replays the persisted state
// document onto them: prior grants are re-applied and previously enabled
// extensions are re-enabled under the system actor, so a still-valid
// cached license suffices when the license service is unreachable.
func (r *Registry) Bootstrap(ctx context.Context, extensionsDir string) error {
	persisted := make(map[string]PersistedExtension)
	if r.state != nil {
		entries, err := r.state.Load()
		if err != nil {
			return err
		}
		for _, e := range entries {
			persisted[e.ExtensionID] = e
		}
	}

	packages, err := r.Discover(extensionsDir)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		id := pkg.Manifest.ID
		if err := r.Install(ctx, pkg.Manifest, pkg.Path, SystemActor); err != nil {
			r.logger.Warn("skipping extension: install rejected",
				"extension_id", id, "error", err)
			continue
		}

		prior, ok := persisted[id]
		if !ok {
			continue
		}
		if !prior.GrantedCapabilities.IsEmpty() {
			if err := r.GrantCapabilities(ctx, id, prior.GrantedCapabilities, SystemActor); err != nil {
				r.logger.Warn("replaying grant failed", "extension_id", id, "error", err)
				continue
			}
		}
		if prior.Enabled {
			if err := r.Enable(ctx, id, SystemActor); err != nil {
				r.logger.Warn("replaying enable failed", "extension_id", id, "error", err)
			}
		}
	}

	return nil
}
