// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package registry

import "time"

// SetNow overrides the registry clock for deterministic timestamps.
func (r *Registry) SetNow(now func() time.Time) { r.now = now }
