// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package integrity

import "crypto/rsa"

// NewVerifierWithKey exposes the unexported constructor so tests can verify
// against a freshly generated keypair instead of the compiled-in anchor.
func NewVerifierWithKey(pub *rsa.PublicKey) *Verifier {
	return newVerifier(pub)
}
