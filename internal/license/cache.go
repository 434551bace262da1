// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package license

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// cacheVersion is the on-disk document version. An unknown version is
// treated as empty state, never a startup failure.
const cacheVersion = 1

// Type classifies how an extension is licensed.
type Type string

const (
	TypeFree         Type = "free"
	TypePurchased    Type = "purchased"
	TypeSubscription Type = "subscription"
)

// Status is the verification outcome recorded for a license.
type Status string

const (
	StatusValid   Status = "valid"
	StatusExpired Status = "expired"
)

// CacheEntry is the locally persisted result of the last successful online
// verification for one extension. One entry per extension id,
// last-write-wins.
type CacheEntry struct {
	ExtensionID    string     `json:"extensionId"`
	Type           Type       `json:"type"`
	Status         Status     `json:"status"`
	LastVerifiedAt time.Time  `json:"lastVerifiedAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type cacheDocument struct {
	Version  int          `json:"version"`
	Licenses []CacheEntry `json:"licenses"`
}

// Cache is the persisted license store, read at open and rewritten on every
// upsert.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// OpenCache loads the cache document at path. A missing file or an unknown
// document version yields an empty cache.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeStoreDatabaseFailure, "reading license cache")
	}

	var doc cacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("license cache is corrupt, starting empty", "path", path, "error", err)
		return c, nil
	}
	if doc.Version != cacheVersion {
		slog.Warn("license cache has unknown version, starting empty", "path", path, "version", doc.Version)
		return c, nil
	}

	for _, entry := range doc.Licenses {
		c.entries[entry.ExtensionID] = entry
	}
	return c, nil
}

// Get returns the cached entry for an extension id.
func (c *Cache) Get(extensionID string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[extensionID]
	return entry, ok
}

// Put upserts an entry and persists the whole document.
func (c *Cache) Put(entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.ExtensionID] = entry
	return c.save()
}

// save writes the document atomically: temp file then rename.
func (c *Cache) save() error {
	doc := cacheDocument{Version: cacheVersion, Licenses: make([]CacheEntry, 0, len(c.entries))}
	for _, entry := range c.entries {
		doc.Licenses = append(doc.Licenses, entry)
	}
	sort.Slice(doc.Licenses, func(i, j int) bool {
		return doc.Licenses[i].ExtensionID < doc.Licenses[j].ExtensionID
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeStoreDatabaseFailure, "encoding license cache")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeStoreDatabaseFailure, "creating license cache directory")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeStoreDatabaseFailure, "writing license cache")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeStoreDatabaseFailure, "replacing license cache")
	}
	return nil
}
