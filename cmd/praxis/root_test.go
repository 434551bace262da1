// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-hq/praxis/pkg/extension"
)

// isolateHome keeps command runs from touching the real home directory or
// each other: config bootstrap, the license cache, and the audit trail all
// land in a temp dir, and the global viper is reset between tests.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRAXIS_AUDIT_BACKEND", "memory")
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := runCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "praxis")
	assert.Contains(t, out, "ext")
	assert.Contains(t, out, "audit")
	assert.Contains(t, out, "version")
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	out, err := runCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--data-dir")
	assert.Contains(t, out, "--verbose")
}

func TestVersionCommand(t *testing.T) {
	isolateHome(t)
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "praxis")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	isolateHome(t)
	_, err := runCommand(t, "ext", "list", "--config", "/nonexistent/praxis.yaml")
	assert.Error(t, err)
}

func TestExtListCommand_Empty(t *testing.T) {
	isolateHome(t)
	out, err := runCommand(t, "ext", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no extensions installed")
}

func TestExtGrantCommand_UnknownExtension(t *testing.T) {
	isolateHome(t)
	_, err := runCommand(t, "ext", "grant", "com.example.missing", "--cap", "patientRecord:read")
	assert.Error(t, err)
}

func TestExtInstallCommand_RequiresMetadataFlags(t *testing.T) {
	isolateHome(t)
	_, err := runCommand(t, "ext", "install", "com.example.widget", "pkg.zip")
	assert.Error(t, err)
}

func TestParseCapabilityFlags(t *testing.T) {
	tests := []struct {
		name    string
		caps    []string
		origins []string
		want    extension.CapabilitySet
		wantErr bool
	}{
		{
			name: "single resource single action",
			caps: []string{"patientRecord:read"},
			want: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourcePatientRecord: {extension.ActionRead},
				},
			},
		},
		{
			name: "multiple actions",
			caps: []string{"visitRecord:read,update"},
			want: extension.CapabilitySet{
				Resources: map[extension.ResourceKind][]extension.Action{
					extension.ResourceVisitRecord: {extension.ActionRead, extension.ActionUpdate},
				},
			},
		},
		{
			name:    "network origins only",
			origins: []string{"https://api.example.com"},
			want: extension.CapabilitySet{
				Network: []string{"https://api.example.com"},
			},
		},
		{
			name:    "missing colon",
			caps:    []string{"patientRecord"},
			wantErr: true,
		},
		{
			name:    "empty actions",
			caps:    []string{"patientRecord:"},
			wantErr: true,
		},
		{
			name:    "empty action in list",
			caps:    []string{"patientRecord:read,"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCapabilityFlags(tt.caps, tt.origins)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCapabilitySet(t *testing.T) {
	assert.Equal(t, "(none)", formatCapabilitySet(extension.CapabilitySet{}))

	set := extension.CapabilitySet{
		Resources: map[extension.ResourceKind][]extension.Action{
			extension.ResourceVisitRecord:   {extension.ActionRead},
			extension.ResourcePatientRecord: {extension.ActionRead, extension.ActionUpdate},
		},
		Network: []string{"https://api.example.com"},
	}
	assert.Equal(t,
		"patientRecord:read,update visitRecord:read network:https://api.example.com",
		formatCapabilitySet(set))
}
