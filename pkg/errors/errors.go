// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package errors provides coded, structured errors for the Praxis extension
// subsystem. Every expected failure carries a machine-readable Code of the
// form "area.subject.reason" so callers can branch on failure class without
// string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeManifestParseInvalid    Code = "manifest.parse.invalid"
	CodeManifestValidateInvalid Code = "manifest.validate.invalid"

	CodeCapabilityDenied       Code = "capability.check.denied"
	CodeCapabilityGrantInvalid Code = "capability.grant.invalid"

	CodeIntegrityHashMismatch     Code = "integrity.hash.mismatch"
	CodeIntegritySignatureInvalid Code = "integrity.signature.invalid"
	CodeIntegrityMetadataMissing  Code = "integrity.metadata.missing"
	CodeIntegrityTrustAnchor      Code = "integrity.trust_anchor.failure"

	CodeInstallStageFailure   Code = "install.stage.failure"
	CodeInstallUnsafePath     Code = "install.extract.unsafe_path"
	CodeInstallInFlight       Code = "install.concurrent.conflict"
	CodeInstallRollbackFailed Code = "install.rollback.failure"

	CodeRegistryNotFound         Code = "registry.extension.not_found"
	CodeRegistryDuplicate        Code = "registry.extension.conflict"
	CodeRegistryHostIncompatible Code = "registry.host_version.incompatible"
	CodeRegistryStateInvalid     Code = "registry.transition.invalid"
	CodeRegistryGrantEmpty       Code = "registry.grant.empty"
	CodeRegistryPersistFailure   Code = "registry.persist.failure"

	CodeLicenseDenied       Code = "license.check.denied"
	CodeLicenseGraceExpired Code = "license.grace.expired"
	CodeLicenseUnreachable  Code = "license.network.unreachable"

	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreInvalidInput    Code = "store.invalid_input"
	CodeStoreRecordNotFound  Code = "store.record.not_found"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeCLIInputInvalid   Code = "cli.input.invalid"
	CodeCLIRequestFailure Code = "cli.request.failure"
	CodeCLISetupFailure   Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldExtensionID(value string) Attr {
	return Field("extension_id", value)
}

func FieldActorID(value string) Attr {
	return Field("actor_id", value)
}

func FieldStage(value string) Attr {
	return Field("stage", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value"
}

func IsDenied(err error) bool {
	return reason(CodeOf(err)) == "denied"
}

func IsIntegrityFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "integrity.")
}

// Join combines errs under one code. Nil errors are dropped; a nil result
// means no non-nil error was given.
func Join(code Code, errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(code).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
