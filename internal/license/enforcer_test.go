// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package license_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praxis-hq/praxis/internal/license"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier serves canned per-extension results; a nil entry means the
// network is unreachable for that id.
type fakeVerifier struct {
	entries map[string]license.CacheEntry
	calls   []string
}

var errUnreachable = errors.New("dial tcp: connection refused")

func (f *fakeVerifier) Verify(_ context.Context, extensionID string) (license.CacheEntry, error) {
	f.calls = append(f.calls, extensionID)
	entry, ok := f.entries[extensionID]
	if !ok {
		return license.CacheEntry{}, errUnreachable
	}
	return entry, nil
}

func newCache(t *testing.T) *license.Cache {
	t.Helper()
	cache, err := license.OpenCache(filepath.Join(t.TempDir(), "licenses.json"))
	require.NoError(t, err)
	return cache
}

func validEntry(id string, verifiedAt time.Time) license.CacheEntry {
	return license.CacheEntry{
		ExtensionID:    id,
		Type:           license.TypePurchased,
		Status:         license.StatusValid,
		LastVerifiedAt: verifiedAt,
	}
}

func TestCheckEnableOnlineSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	verifier := &fakeVerifier{entries: map[string]license.CacheEntry{
		"com.example.widget": validEntry("com.example.widget", now),
	}}
	cache := newCache(t)
	enf := license.NewEnforcer(verifier, cache)

	require.NoError(t, enf.CheckEnable(context.Background(), "com.example.widget", false))

	// Successful verification refreshes the cache.
	entry, ok := cache.Get("com.example.widget")
	require.True(t, ok)
	assert.Equal(t, license.StatusValid, entry.Status)
}

func TestCheckEnableOnlineInvalid(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{entries: map[string]license.CacheEntry{
		"com.example.widget": {
			ExtensionID:    "com.example.widget",
			Type:           license.TypeSubscription,
			Status:         license.StatusExpired,
			LastVerifiedAt: time.Now(),
		},
	}}
	enf := license.NewEnforcer(verifier, newCache(t))

	err := enf.CheckEnable(context.Background(), "com.example.widget", false)
	require.Error(t, err)
	assert.Equal(t, praxiserr.CodeLicenseDenied, praxiserr.CodeOf(err))
}

func TestCheckEnableOfflineDeniedWithoutCarveOut(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{}
	cache := newCache(t)
	require.NoError(t, cache.Put(validEntry("com.example.widget", time.Now().Add(-48*time.Hour))))
	enf := license.NewEnforcer(verifier, cache)

	// Not the system startup actor: the cached entry does not help.
	err := enf.CheckEnable(context.Background(), "com.example.widget", false)
	require.Error(t, err)
	assert.Equal(t, praxiserr.CodeLicenseUnreachable, praxiserr.CodeOf(err))
}

func TestCheckEnableOfflineStartupCarveOut(t *testing.T) {
	t.Parallel()

	t.Run("valid cached entry allows", func(t *testing.T) {
		t.Parallel()

		cache := newCache(t)
		require.NoError(t, cache.Put(validEntry("com.example.widget", time.Now().Add(-48*time.Hour))))
		enf := license.NewEnforcer(&fakeVerifier{}, cache)

		assert.NoError(t, enf.CheckEnable(context.Background(), "com.example.widget", true))
	})

	t.Run("no cached entry denies", func(t *testing.T) {
		t.Parallel()

		enf := license.NewEnforcer(&fakeVerifier{}, newCache(t))
		err := enf.CheckEnable(context.Background(), "com.example.widget", true)
		require.Error(t, err)
		assert.Equal(t, praxiserr.CodeLicenseUnreachable, praxiserr.CodeOf(err))
	})

	t.Run("expired cached entry denies", func(t *testing.T) {
		t.Parallel()

		cache := newCache(t)
		entry := validEntry("com.example.widget", time.Now().Add(-48*time.Hour))
		entry.Status = license.StatusExpired
		require.NoError(t, cache.Put(entry))
		enf := license.NewEnforcer(&fakeVerifier{}, cache)

		err := enf.CheckEnable(context.Background(), "com.example.widget", true)
		require.Error(t, err)
	})
}

func TestCheckExecutionGraceWindowBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		verifiedAt time.Time
		want       bool
		wantReason string
	}{
		{
			name:       "exactly 14 days old still allows",
			verifiedAt: now.Add(-license.OfflineGraceWindow),
			want:       true,
		},
		{
			name:       "14 days and one second denies",
			verifiedAt: now.Add(-license.OfflineGraceWindow - time.Second),
			want:       false,
			wantReason: license.ReasonGraceExpired,
		},
		{
			name:       "fresh verification allows",
			verifiedAt: now.Add(-time.Hour),
			want:       true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache := newCache(t)
			require.NoError(t, cache.Put(validEntry("com.example.widget", tt.verifiedAt)))

			enf := license.NewEnforcer(&fakeVerifier{}, cache)
			enf.SetNow(func() time.Time { return now })

			dec := enf.CheckExecution("com.example.widget")
			assert.Equal(t, tt.want, dec.Allowed)
			assert.Equal(t, tt.wantReason, dec.Reason)
		})
	}
}

func TestCheckExecutionSoftAllowsLapsedLicenseWithinWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("expired status", func(t *testing.T) {
		t.Parallel()

		cache := newCache(t)
		entry := validEntry("com.example.widget", now.Add(-24*time.Hour))
		entry.Status = license.StatusExpired
		require.NoError(t, cache.Put(entry))

		dec := license.NewEnforcer(&fakeVerifier{}, cache).CheckExecution("com.example.widget")
		assert.True(t, dec.Allowed)
		assert.Equal(t, license.ReasonGracePeriod, dec.Reason)
	})

	t.Run("past expiresAt", func(t *testing.T) {
		t.Parallel()

		cache := newCache(t)
		expired := now.Add(-time.Hour)
		entry := validEntry("com.example.widget", now.Add(-24*time.Hour))
		entry.ExpiresAt = &expired
		require.NoError(t, cache.Put(entry))

		dec := license.NewEnforcer(&fakeVerifier{}, cache).CheckExecution("com.example.widget")
		assert.True(t, dec.Allowed)
		assert.Equal(t, license.ReasonGracePeriod, dec.Reason)
	})

	t.Run("future expiresAt allows cleanly", func(t *testing.T) {
		t.Parallel()

		cache := newCache(t)
		future := now.Add(30 * 24 * time.Hour)
		entry := validEntry("com.example.widget", now.Add(-24*time.Hour))
		entry.ExpiresAt = &future
		require.NoError(t, cache.Put(entry))

		dec := license.NewEnforcer(&fakeVerifier{}, cache).CheckExecution("com.example.widget")
		assert.True(t, dec.Allowed)
		assert.Empty(t, dec.Reason)
	})
}

func TestCheckExecutionNoCachedLicense(t *testing.T) {
	t.Parallel()

	dec := license.NewEnforcer(&fakeVerifier{}, newCache(t)).CheckExecution("com.example.widget")
	assert.False(t, dec.Allowed)
	assert.Equal(t, license.ReasonNoCachedLicense, dec.Reason)
}

func TestStartupSweepStopsOnFirstUnreachable(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{entries: map[string]license.CacheEntry{
		"com.example.first": validEntry("com.example.first", time.Now()),
		// com.example.second is unreachable
		"com.example.third": validEntry("com.example.third", time.Now()),
	}}
	enf := license.NewEnforcer(verifier, newCache(t))

	var disabled []string
	err := enf.StartupSweep(context.Background(),
		[]string{"com.example.first", "com.example.second", "com.example.third"},
		func(_ context.Context, id, _ string) error {
			disabled = append(disabled, id)
			return nil
		})

	require.Error(t, err)
	assert.Equal(t, praxiserr.CodeLicenseUnreachable, praxiserr.CodeOf(err))
	// Fail-static: the third extension was never checked, nothing disabled.
	assert.Equal(t, []string{"com.example.first", "com.example.second"}, verifier.calls)
	assert.Empty(t, disabled)
}

func TestStartupSweepDisablesInvalid(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{entries: map[string]license.CacheEntry{
		"com.example.good": validEntry("com.example.good", time.Now()),
		"com.example.bad": {
			ExtensionID:    "com.example.bad",
			Type:           license.TypeSubscription,
			Status:         license.StatusExpired,
			LastVerifiedAt: time.Now(),
		},
	}}
	enf := license.NewEnforcer(verifier, newCache(t))

	var disabled []string
	err := enf.StartupSweep(context.Background(),
		[]string{"com.example.good", "com.example.bad"},
		func(_ context.Context, id, reason string) error {
			disabled = append(disabled, id)
			assert.Equal(t, license.ReasonLicenseInvalid, reason)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.bad"}, disabled)
}

func TestCacheRoundTripAndVersioning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "licenses.json")

	cache, err := license.OpenCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put(validEntry("com.example.widget", time.Now().UTC().Truncate(time.Second))))

	reopened, err := license.OpenCache(path)
	require.NoError(t, err)
	entry, ok := reopened.Get("com.example.widget")
	require.True(t, ok)
	assert.Equal(t, license.StatusValid, entry.Status)
}

func TestCacheUpsertLastWriteWins(t *testing.T) {
	t.Parallel()

	cache := newCache(t)
	first := validEntry("com.example.widget", time.Now().Add(-time.Hour))
	require.NoError(t, cache.Put(first))

	second := first
	second.Status = license.StatusExpired
	require.NoError(t, cache.Put(second))

	entry, ok := cache.Get("com.example.widget")
	require.True(t, ok)
	assert.Equal(t, license.StatusExpired, entry.Status)
}

func TestOpenCacheUnknownVersionIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "licenses.json")
	require.NoError(t, writeFile(path, `{"version": 99, "licenses": [{"extensionId": "com.example.widget"}]}`))

	cache, err := license.OpenCache(path)
	require.NoError(t, err)
	_, ok := cache.Get("com.example.widget")
	assert.False(t, ok)
}

func TestOpenCacheCorruptIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "licenses.json")
	require.NoError(t, writeFile(path, `{not json`))

	cache, err := license.OpenCache(path)
	require.NoError(t, err)
	_, ok := cache.Get("com.example.widget")
	assert.False(t, ok)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
