// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package store_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/praxis-hq/praxis/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAuditStore_AppendIsolatesCaller(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryAuditStore()

	meta := map[string]any{"resource": "patientRecord"}
	entry := &store.AuditEntry{
		ID:          "evt-1",
		Timestamp:   time.Now().UTC(),
		Action:      store.ActionDataAccess,
		Severity:    store.SeverityInfo,
		ExtensionID: "com.example.widget",
		Metadata:    meta,
	}
	require.NoError(t, s.Append(ctx, entry))

	// Mutating the caller's map must not reach the stored copy.
	meta["resource"] = "invoiceRecord"

	got, err := s.Query(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "patientRecord", got[0].Metadata["resource"])
}

func TestMemoryAuditStore_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryAuditStore()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []string{
		store.ActionExtensionInstall,
		store.ActionCapabilityGrant,
		store.ActionExtensionEnable,
	} {
		require.NoError(t, s.Append(ctx, &store.AuditEntry{
			ID:          string(rune('a' + i)),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Action:      action,
			ExtensionID: "com.example.widget",
		}))
	}

	got, err := s.Query(ctx, store.AuditFilter{ExtensionID: "com.example.widget"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, store.ActionExtensionInstall, got[0].Action)
	assert.Equal(t, store.ActionExtensionEnable, got[2].Action)

	grants, err := s.Query(ctx, store.AuditFilter{Action: store.ActionCapabilityGrant})
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

// failingStore always rejects appends.
type failingStore struct{ store.AuditStore }

func (failingStore) Append(context.Context, *store.AuditEntry) error {
	return errors.New("disk full")
}

func TestSink_EmitFillsDefaults(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryAuditStore()
	sink := store.NewSink(mem, slog.Default())

	sink.Emit(ctx, store.AuditEntry{
		Action:      store.ActionLicenseCheck,
		ExtensionID: "com.example.widget",
	})

	got, err := mem.Query(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, store.SeverityInfo, got[0].Severity)
}

func TestSink_EmitSwallowsStoreFailure(t *testing.T) {
	sink := store.NewSink(failingStore{}, slog.Default())

	// Must not panic or surface the error.
	sink.Emit(context.Background(), store.AuditEntry{Action: store.ActionDataAccess})
}
