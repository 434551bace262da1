// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package extension provides the public manifest types for extension authors.
// A manifest is the declarative descriptor loaded from extension.yaml in the
// extension package root; it names the extension's identity, the capabilities
// it requests, and the contribution points it registers into the host.
package extension

// ResourceKind identifies a class of host records an extension may request
// access to. The enumeration is closed: manifests naming any other kind are
// rejected at validation time.
type ResourceKind string

const (
	ResourcePatientRecord   ResourceKind = "patientRecord"
	ResourceVisitRecord     ResourceKind = "visitRecord"
	ResourceTreatmentRecord ResourceKind = "treatmentRecord"
	ResourceInvoiceRecord   ResourceKind = "invoiceRecord"
	ResourceDocumentRecord  ResourceKind = "documentRecord"
	ResourceSettings        ResourceKind = "settings"
)

// Action identifies an operation on a resource kind.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CapabilitySet maps resource kinds to the actions allowed on them, plus an
// optional allow-list of network origins. Two variants exist per extension:
// the requested set (from the manifest, immutable) and the granted set
// (administrator-controlled, always a subset of requested).
type CapabilitySet struct {
	Resources map[ResourceKind][]Action `yaml:"resources,omitempty"`
	Network   []string                  `yaml:"network,omitempty"`
}

// IsEmpty reports whether the set grants nothing at all.
func (s CapabilitySet) IsEmpty() bool {
	for _, actions := range s.Resources {
		if len(actions) > 0 {
			return false
		}
	}
	return len(s.Network) == 0
}

// Allows reports whether the set contains action on resource.
func (s CapabilitySet) Allows(resource ResourceKind, action Action) bool {
	for _, a := range s.Resources[resource] {
		if a == action {
			return true
		}
	}
	return false
}

// AllowsOrigin reports whether origin is on the network allow-list.
func (s CapabilitySet) AllowsOrigin(origin string) bool {
	for _, o := range s.Network {
		if o == origin {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the set. Granted sets are handed out to
// callers that must not be able to mutate registry state through aliasing.
func (s CapabilitySet) Clone() CapabilitySet {
	out := CapabilitySet{}
	if s.Resources != nil {
		out.Resources = make(map[ResourceKind][]Action, len(s.Resources))
		for kind, actions := range s.Resources {
			out.Resources[kind] = append([]Action(nil), actions...)
		}
	}
	out.Network = append([]string(nil), s.Network...)
	return out
}

// Manifest describes an extension's identity, requested capabilities, and
// contribution points. It is parsed once and never mutated after a
// successful parse.
type Manifest struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	MinHostVersion string        `yaml:"minHostVersion"`
	Publisher      string        `yaml:"publisher"`
	Description    string        `yaml:"description,omitempty"`
	License        string        `yaml:"license,omitempty"`
	Icon           string        `yaml:"icon,omitempty"`
	Capabilities   CapabilitySet `yaml:"capabilities,omitempty"`
	Contributions  Contributions `yaml:"contributions"`
}

// Contributions groups the named extension points a package registers into
// the host. A manifest declaring none of them is invalid.
type Contributions struct {
	Commands     []CommandContribution     `yaml:"commands,omitempty"`
	Templates    []TemplateContribution    `yaml:"templates,omitempty"`
	Exporters    []ExporterContribution    `yaml:"exporters,omitempty"`
	Integrations []IntegrationContribution `yaml:"integrations,omitempty"`
	Views        []ViewContribution        `yaml:"views,omitempty"`
}

// Count returns the total number of declared contribution points.
func (c Contributions) Count() int {
	return len(c.Commands) + len(c.Templates) + len(c.Exporters) +
		len(c.Integrations) + len(c.Views)
}

// CommandContribution declares a command the extension handles.
type CommandContribution struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Keybinding string `yaml:"keybinding,omitempty"`
}

// TemplateContribution declares a document template shipped by the extension.
type TemplateContribution struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ExporterContribution declares an export format handler.
type ExporterContribution struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	FileExtensions []string `yaml:"fileExtensions"`
}

// IntegrationContribution declares an outbound integration endpoint.
// Its endpoint origin must appear in the manifest's network capability list.
type IntegrationContribution struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
}

// ViewContribution declares a UI view the extension contributes.
type ViewContribution struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location,omitempty"`
}
