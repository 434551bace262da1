// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package license

import "time"

// SetNow overrides the enforcer's clock for deterministic grace-window tests.
func (e *Enforcer) SetNow(now func() time.Time) {
	e.now = now
}
