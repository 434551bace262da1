// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package installer

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// maxEntrySize bounds a single decompressed entry to guard against
// decompression bombs.
const maxEntrySize = 64 << 20

// extractZip unpacks archive into dest. Every entry path is checked before
// any byte is written: normalized separators, no absolute paths or drive
// letters, and the resolved path must be a strict descendant of dest. A
// single unsafe entry aborts the whole extraction; dest is expected to be a
// private temp directory the caller discards on failure.
func extractZip(archive []byte, dest string) error {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "opening package archive")
	}

	for _, entry := range reader.File {
		target, err := safeEntryPath(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "creating directory %s", entry.Name)
			}
			continue
		}

		// Symlinks could point outside the destination root after the swap.
		if entry.FileInfo().Mode()&os.ModeSymlink != 0 {
			return praxiserr.Errorf(praxiserr.CodeInstallUnsafePath, "unsafe path in zip: %s (symlink entries are not allowed)", entry.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "creating parent directory for %s", entry.Name)
		}

		if err := writeEntry(entry, target); err != nil {
			return err
		}
	}

	return nil
}

// safeEntryPath validates an archive entry name and resolves it against the
// destination root. The containment check is a prefix match against
// root+separator, not a naive substring check, so a sibling directory such
// as "/base-evil" can never pass for "/base".
func safeEntryPath(root, name string) (string, error) {
	normalized := strings.ReplaceAll(name, `\`, "/")

	if normalized == "" || strings.HasPrefix(normalized, "/") {
		return "", praxiserr.Errorf(praxiserr.CodeInstallUnsafePath, "unsafe path in zip: %s", name)
	}
	if len(normalized) >= 2 && normalized[1] == ':' {
		return "", praxiserr.Errorf(praxiserr.CodeInstallUnsafePath, "unsafe path in zip: %s", name)
	}

	resolved := filepath.Join(root, filepath.FromSlash(normalized))

	cleanRoot := filepath.Clean(root)
	if resolved == cleanRoot || !strings.HasPrefix(resolved, cleanRoot+string(os.PathSeparator)) {
		return "", praxiserr.Errorf(praxiserr.CodeInstallUnsafePath, "unsafe path in zip: %s", name)
	}

	return resolved, nil
}

func writeEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "opening archive entry %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck // error on read-path close is not actionable

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "creating file for entry %s", entry.Name)
	}

	// Read one byte past the cap so an oversized entry fails the extraction
	// instead of being written truncated.
	written, err := io.Copy(dst, io.LimitReader(src, maxEntrySize+1))
	if err != nil {
		_ = dst.Close()
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "writing entry %s", entry.Name)
	}
	if written > maxEntrySize {
		_ = dst.Close()
		return praxiserr.Errorf(praxiserr.CodeInstallStageFailure,
			"archive entry %s exceeds the %d byte limit", entry.Name, int64(maxEntrySize))
	}

	if err := dst.Close(); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeInstallStageFailure, "closing entry %s", entry.Name)
	}

	return nil
}
