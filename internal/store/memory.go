// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package store

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// Compile-time interface check.
var _ AuditStore = (*MemoryAuditStore)(nil)

// MemoryAuditStore is an in-memory AuditStore used in tests and for
// ephemeral hosts that do not persist a trail.
type MemoryAuditStore struct {
	mu      sync.Mutex
	entries []*AuditEntry
}

// NewMemoryAuditStore returns an empty in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Append stores a copy of entry.
func (s *MemoryAuditStore) Append(_ context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// Query returns copies of entries matching filter, oldest first.
func (s *MemoryAuditStore) Query(_ context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*AuditEntry
	for _, e := range s.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if filter.ExtensionID != "" && e.ExtensionID != filter.ExtensionID {
			continue
		}
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		matched = append(matched, cloneEntry(e))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Close is a no-op.
func (s *MemoryAuditStore) Close() error { return nil }

func cloneEntry(e *AuditEntry) *AuditEntry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}
