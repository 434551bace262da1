// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package capability implements the permission model for extensions.
// An extension may touch a record only when two independent fences both
// allow it: the administrator-granted capability set of the extension AND
// the role-based permission set of the human user driving the call. Neither
// fence alone is sufficient.
package capability

import (
	"fmt"

	"github.com/praxis-hq/praxis/pkg/extension"
)

// Role is the human user's role-based permission set.
type Role struct {
	Name        string
	Permissions extension.CapabilitySet
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Deny reasons, distinguishable per fence.
const (
	ReasonExtensionGrantMissing = "extension_grant_missing"
	ReasonRolePermissionMissing = "role_permission_missing"
)

// Allowed is the decision for a permitted access.
var allowed = Decision{Allowed: true}

// CheckAccess reports whether the extension grant and the user role both
// permit action on resource. The deny reason names the fence that failed;
// the extension fence is evaluated first.
func CheckAccess(granted extension.CapabilitySet, resource extension.ResourceKind, action extension.Action, role Role) Decision {
	if !granted.Allows(resource, action) {
		return Decision{Reason: ReasonExtensionGrantMissing}
	}
	if !role.Permissions.Allows(resource, action) {
		return Decision{Reason: ReasonRolePermissionMissing}
	}
	return allowed
}

// Diff returns the capabilities present in requested but absent from granted:
// per-resource action subtraction plus network origin subtraction. It is used
// to show administrators what remains un-granted.
func Diff(requested, granted extension.CapabilitySet) extension.CapabilitySet {
	out := extension.CapabilitySet{}

	for kind, actions := range requested.Resources {
		var missing []extension.Action
		for _, action := range actions {
			if !granted.Allows(kind, action) {
				missing = append(missing, action)
			}
		}
		if len(missing) > 0 {
			if out.Resources == nil {
				out.Resources = make(map[extension.ResourceKind][]extension.Action)
			}
			out.Resources[kind] = missing
		}
	}

	for _, origin := range requested.Network {
		if !granted.AllowsOrigin(origin) {
			out.Network = append(out.Network, origin)
		}
	}

	return out
}

// Violation describes a granted capability that was never requested.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) Error() string {
	return v.Path + ": " + v.Message
}

// ValidateGrantSubset checks that granted is a subset of requested: every
// (resource, action) pair and every network origin in granted must also be
// present in requested. Each violation names the offending element.
// Extensions cannot be given more than they asked for, even by an
// administrator.
func ValidateGrantSubset(granted, requested extension.CapabilitySet) []Violation {
	var violations []Violation

	for kind, actions := range granted.Resources {
		for _, action := range actions {
			if !requested.Allows(kind, action) {
				violations = append(violations, Violation{
					Path:    fmt.Sprintf("resources.%s", kind),
					Message: fmt.Sprintf("action %q was not requested by the manifest", action),
				})
			}
		}
	}

	for _, origin := range granted.Network {
		if !requested.AllowsOrigin(origin) {
			violations = append(violations, Violation{
				Path:    "network",
				Message: fmt.Sprintf("origin %q was not requested by the manifest", origin),
			})
		}
	}

	return violations
}
