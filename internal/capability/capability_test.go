// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package capability_test

import (
	"testing"

	"github.com/praxis-hq/praxis/internal/capability"
	"github.com/praxis-hq/praxis/pkg/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantedReadOnly() extension.CapabilitySet {
	return extension.CapabilitySet{
		Resources: map[extension.ResourceKind][]extension.Action{
			extension.ResourcePatientRecord: {extension.ActionRead},
		},
	}
}

func clinicianRole() capability.Role {
	return capability.Role{
		Name: "clinician",
		Permissions: extension.CapabilitySet{
			Resources: map[extension.ResourceKind][]extension.Action{
				extension.ResourcePatientRecord: {extension.ActionRead, extension.ActionUpdate},
				extension.ResourceVisitRecord:   {extension.ActionRead},
			},
		},
	}
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		granted    extension.CapabilitySet
		resource   extension.ResourceKind
		action     extension.Action
		role       capability.Role
		want       bool
		wantReason string
	}{
		{
			name:     "both fences allow",
			granted:  grantedReadOnly(),
			resource: extension.ResourcePatientRecord,
			action:   extension.ActionRead,
			role:     clinicianRole(),
			want:     true,
		},
		{
			name:       "extension grant missing",
			granted:    grantedReadOnly(),
			resource:   extension.ResourcePatientRecord,
			action:     extension.ActionUpdate,
			role:       clinicianRole(),
			want:       false,
			wantReason: capability.ReasonExtensionGrantMissing,
		},
		{
			name: "role permission missing",
			granted: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourcePatientRecord: {extension.ActionDelete},
				},
			},
			resource:   extension.ResourcePatientRecord,
			action:     extension.ActionDelete,
			role:       clinicianRole(),
			want:       false,
			wantReason: capability.ReasonRolePermissionMissing,
		},
		{
			name:       "never-granted action always denied",
			granted:    grantedReadOnly(),
			resource:   extension.ResourcePatientRecord,
			action:     extension.ActionDelete,
			role:       clinicianRole(),
			want:       false,
			wantReason: capability.ReasonExtensionGrantMissing,
		},
		{
			name:       "empty grant denies everything",
			granted:    extension.CapabilitySet{},
			resource:   extension.ResourceVisitRecord,
			action:     extension.ActionRead,
			role:       clinicianRole(),
			want:       false,
			wantReason: capability.ReasonExtensionGrantMissing,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := capability.CheckAccess(tt.granted, tt.resource, tt.action, tt.role)
			assert.Equal(t, tt.want, got.Allowed)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	requested := extension.CapabilitySet{
		Resources: map[extension.ResourceKind][]extension.Action{
			extension.ResourcePatientRecord: {extension.ActionRead, extension.ActionUpdate},
			extension.ResourceVisitRecord:   {extension.ActionRead},
		},
		Network: []string{"https://api.example.com", "https://cdn.example.com"},
	}
	granted := extension.CapabilitySet{
		Resources: map[extension.ResourceKind][]extension.Action{
			extension.ResourcePatientRecord: {extension.ActionRead},
		},
		Network: []string{"https://api.example.com"},
	}

	diff := capability.Diff(requested, granted)

	assert.Equal(t, map[extension.ResourceKind][]extension.Action{
		extension.ResourcePatientRecord: {extension.ActionUpdate},
		extension.ResourceVisitRecord:   {extension.ActionRead},
	}, diff.Resources)
	assert.Equal(t, []string{"https://cdn.example.com"}, diff.Network)
}

func TestDiffFullyGrantedIsEmpty(t *testing.T) {
	t.Parallel()

	requested := grantedReadOnly()
	diff := capability.Diff(requested, requested)
	assert.True(t, diff.IsEmpty())
}

func TestValidateGrantSubset(t *testing.T) {
	t.Parallel()

	requested := extension.CapabilitySet{
		Resources: map[extension.ResourceKind][]extension.Action{
			extension.ResourcePatientRecord: {extension.ActionRead, extension.ActionUpdate},
		},
		Network: []string{"https://api.example.com"},
	}

	t.Run("subset passes", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, capability.ValidateGrantSubset(grantedReadOnly(), requested))
	})

	t.Run("equal sets pass", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, capability.ValidateGrantSubset(requested, requested))
	})

	t.Run("empty grant passes", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, capability.ValidateGrantSubset(extension.CapabilitySet{}, requested))
	})

	t.Run("unrequested action is named", func(t *testing.T) {
		t.Parallel()

		granted := extension.CapabilitySet{
			Resources: map[extension.ResourceKind][]extension.Action{
				extension.ResourcePatientRecord: {extension.ActionDelete},
			},
		}
		violations := capability.ValidateGrantSubset(granted, requested)
		require.Len(t, violations, 1)
		assert.Equal(t, "resources.patientRecord", violations[0].Path)
		assert.Contains(t, violations[0].Message, "delete")
	})

	t.Run("unrequested resource is named", func(t *testing.T) {
		t.Parallel()

		granted := extension.CapabilitySet{
			Resources: map[extension.ResourceKind][]extension.Action{
				extension.ResourceInvoiceRecord: {extension.ActionRead},
			},
		}
		violations := capability.ValidateGrantSubset(granted, requested)
		require.Len(t, violations, 1)
		assert.Equal(t, "resources.invoiceRecord", violations[0].Path)
	})

	t.Run("unrequested origin is named", func(t *testing.T) {
		t.Parallel()

		granted := extension.CapabilitySet{
			Network: []string{"https://evil.example.net"},
		}
		violations := capability.ValidateGrantSubset(granted, requested)
		require.Len(t, violations, 1)
		assert.Equal(t, "network", violations[0].Path)
		assert.Contains(t, violations[0].Message, "https://evil.example.net")
	})
}

func TestAssessRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		caps extension.CapabilitySet
		want capability.RiskLevel
	}{
		{
			name: "read-only is low",
			caps: grantedReadOnly(),
			want: capability.RiskLow,
		},
		{
			name: "update without delete is medium",
			caps: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourcePatientRecord: {extension.ActionRead, extension.ActionUpdate},
				},
			},
			want: capability.RiskMedium,
		},
		{
			name: "create without delete is medium",
			caps: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourceInvoiceRecord: {extension.ActionCreate},
				},
			},
			want: capability.RiskMedium,
		},
		{
			name: "delete on sensitive resource is high",
			caps: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourceTreatmentRecord: {extension.ActionDelete},
				},
			},
			want: capability.RiskHigh,
		},
		{
			name: "network access is high",
			caps: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourceVisitRecord: {extension.ActionRead},
				},
				Network: []string{"https://api.example.com"},
			},
			want: capability.RiskHigh,
		},
		{
			name: "empty set is low",
			caps: extension.CapabilitySet{},
			want: capability.RiskLow,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := capability.AssessRisk(tt.caps)
			assert.Equal(t, tt.want, got.Overall)

			// Overall must be the maximum of all detail levels.
			max := capability.RiskLow
			for _, d := range got.Details {
				if d.Level > max {
					max = d.Level
				}
			}
			assert.Equal(t, max, got.Overall)
		})
	}
}
