// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package integrity validates downloaded extension packages before anything
// else touches them. The download channel is not assumed secure: the server
// response supplies a content hash and a detached signature as metadata, and
// only the signature check against the application-embedded trust anchor
// makes the package trustworthy.
package integrity

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// Metadata carries the expected content hash and detached signature from the
// package download response. Both are response metadata, never part of the
// package body.
type Metadata struct {
	// SHA256 is the hex-encoded expected content hash.
	SHA256 string
	// Signature is the base64-encoded RSA signature over the expected hash value.
	Signature string
}

// Verifier checks package bytes against download metadata using a fixed
// public key.
type Verifier struct {
	pub *rsa.PublicKey
}

// NewVerifier returns a Verifier bound to the compiled-in trust anchor.
func NewVerifier() (*Verifier, error) {
	block, _ := pem.Decode([]byte(trustAnchorPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, praxiserr.New(praxiserr.CodeIntegrityTrustAnchor, "embedded trust anchor is not a valid PEM public key")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeIntegrityTrustAnchor, "parsing embedded trust anchor")
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, praxiserr.New(praxiserr.CodeIntegrityTrustAnchor, "embedded trust anchor is not an RSA key")
	}

	return newVerifier(rsaKey), nil
}

func newVerifier(pub *rsa.PublicKey) *Verifier {
	return &Verifier{pub: pub}
}

// Verify checks a package in strict order: content hash first, then the
// signature over the expected hash value. The order matters — verifying the
// signature without the prior hash comparison would validate a signature
// that does not correspond to the bytes actually being installed.
func (v *Verifier) Verify(pkg []byte, meta Metadata) error {
	if meta.SHA256 == "" {
		return praxiserr.New(praxiserr.CodeIntegrityMetadataMissing, "download response is missing the content hash")
	}
	if meta.Signature == "" {
		return praxiserr.New(praxiserr.CodeIntegrityMetadataMissing, "download response is missing the signature")
	}

	expected, err := hex.DecodeString(meta.SHA256)
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeIntegrityMetadataMissing, "decoding expected hash")
	}

	actual := sha256.Sum256(pkg)
	if subtle.ConstantTimeCompare(expected, actual[:]) != 1 {
		return praxiserr.New(praxiserr.CodeIntegrityHashMismatch, "hash_mismatch: package content does not match expected hash",
			praxiserr.Field("expected", meta.SHA256),
			praxiserr.Field("actual", hex.EncodeToString(actual[:])),
		)
	}

	sig, err := base64.StdEncoding.DecodeString(meta.Signature)
	if err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeIntegritySignatureInvalid, "decoding signature")
	}

	// The signature covers the expected hash value, not the raw package.
	digest := sha256.Sum256(expected)
	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, digest[:], sig); err != nil {
		return praxiserr.Wrapf(err, praxiserr.CodeIntegritySignatureInvalid, "signature_invalid: signature does not verify against the trust anchor")
	}

	return nil
}
