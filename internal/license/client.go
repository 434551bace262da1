// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package license

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Compile-time interface check.
var _ Verifier = (*HTTPVerifier)(nil)

// HTTPVerifier performs the online license check against the licensing
// service. Transport failures surface as plain errors so the enforcer
// treats them as unreachable, never as an invalid license.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

// verifyResponse is the service's wire format for one license check.
type verifyResponse struct {
	ExtensionID string     `json:"extensionId"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// NewHTTPVerifier creates a verifier for the service at endpoint. The
// timeout bounds the whole request; a caller blocked on a dead network
// must fail fast into the cached path.
func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Verify fetches the current license status for extensionID and stamps the
// verification time.
func (v *HTTPVerifier) Verify(ctx context.Context, extensionID string) (CacheEntry, error) {
	u := fmt.Sprintf("%s/v1/licenses/%s", v.endpoint, url.PathEscape(extensionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("building license request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("reaching license service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // error on read-path close is not actionable

	// A 404 is a definitive answer: no license exists for this extension.
	if resp.StatusCode == http.StatusNotFound {
		return CacheEntry{
			ExtensionID:    extensionID,
			Status:         StatusExpired,
			LastVerifiedAt: time.Now().UTC(),
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return CacheEntry{}, fmt.Errorf("license service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CacheEntry{}, fmt.Errorf("reading license response: %w", err)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return CacheEntry{}, fmt.Errorf("decoding license response: %w", err)
	}

	return CacheEntry{
		ExtensionID:    extensionID,
		Type:           vr.Type,
		Status:         vr.Status,
		LastVerifiedAt: time.Now().UTC(),
		ExpiresAt:      vr.ExpiresAt,
	}, nil
}
