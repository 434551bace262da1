// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package dataapi

import (
	"context"
	"sync"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

// Compile-time interface check.
var _ RecordSource = (*MemorySource)(nil)

// MemorySource is an in-memory RecordSource keyed by resource kind and
// record id. Hosts embed their real record modules instead; this one backs
// tests and standalone tooling.
type MemorySource struct {
	mu      sync.RWMutex
	records map[extension.ResourceKind]map[string]Record
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{records: make(map[extension.ResourceKind]map[string]Record)}
}

// Put stores a copy of record under (resource, recordID).
func (s *MemorySource) Put(resource extension.ResourceKind, recordID string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[resource] == nil {
		s.records[resource] = make(map[string]Record)
	}
	clone := make(Record, len(record))
	for k, v := range record {
		clone[k] = v
	}
	s.records[resource][recordID] = clone
}

// Fetch returns the stored record or a not-found error.
func (s *MemorySource) Fetch(_ context.Context, resource extension.ResourceKind, recordID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[resource][recordID]
	if !ok {
		return nil, praxiserr.Errorf(praxiserr.CodeStoreRecordNotFound, "%s %s not found", resource, recordID)
	}
	clone := make(Record, len(record))
	for k, v := range record {
		clone[k] = v
	}
	return clone, nil
}
