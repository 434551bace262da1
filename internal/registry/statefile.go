// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package registry

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// stateVersion is the on-disk document version. An unknown version is
// treated as empty state, never a startup failure.
const stateVersion = 1

// PersistedExtension is one extension's replayable state: the enable flag
// and granted capabilities an administrator decided before the last
// shutdown.
type PersistedExtension struct {
	ExtensionID         string                  `json:"extensionId"`
	Enabled             bool                    `json:"enabled"`
	GrantedCapabilities extension.CapabilitySet `json:"grantedCapabilities"`
	EnabledAt           *time.Time              `json:"enabledAt,omitempty"`
}

type stateDocument struct {
	Version    int                  `json:"version"`
	Extensions []PersistedExtension `json:"extensions"`
}

// StateFile persists registry decisions across restarts. It is rewritten
// after every successful mutating registry operation and replayed once at
// startup onto freshly discovered packages.
type StateFile struct {
	path string
}

// NewStateFile returns a state file handle for path. Nothing is read until
// Load.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the persisted document. A missing file, corrupt content, or an
// unknown document version yields empty state.
func (f *StateFile) Load() ([]PersistedExtension, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeRegistryPersistFailure, "reading registry state")
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("registry state is corrupt, starting empty", "path", f.path, "error", err)
		return nil, nil
	}
	if doc.Version != stateVersion {
		slog.Warn("registry state has unknown version, starting empty", "path", f.path, "version", doc.Version)
		return nil, nil
	}
	return doc.Extensions, nil
}

// Save writes the document atomically: temp file then rename.
func (f *StateFile) Save(extensions []PersistedExtension) error {
	sorted := make([]PersistedExtension, len(extensions))
	copy(sorted, extensions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExtensionID < sorted[j].ExtensionID
	})

	doc := stateDocument{Version: stateVersion, Extensions: sorted}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeRegistryPersistFailure, "encoding registry state")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeRegistryPersistFailure, "creating registry state directory")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeRegistryPersistFailure, "writing registry state")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeRegistryPersistFailure, "replacing registry state")
	}
	return nil
}
