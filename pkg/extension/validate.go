// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package extension

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the fixed relative path of the manifest inside each
// extension package.
const ManifestFileName = "extension.yaml"

// idRe matches extension and contribution identifiers: a letter followed by
// letters, digits, dots, hyphens, or underscores, 3-128 characters total.
var idRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]{2,127}$`)

// semverRe matches strict semver (no "v" prefix): MAJOR.MINOR.PATCH[-prerelease][+build].
// Leading zeros on numeric segments are disallowed per semver spec.
var semverRe = regexp.MustCompile(
	`^(?:0|[1-9]\d*)\.(?:0|[1-9]\d*)\.(?:0|[1-9]\d*)` +
		`(?:-(?:[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?` +
		`(?:\+(?:[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

// keybindingRe matches the keybinding grammar: zero or more modifier prefixes
// followed by a single key token.
var keybindingRe = regexp.MustCompile(
	`^(?:(?:ctrl|alt|shift|cmd)\+)*(?:[a-z0-9]|f(?:[1-9]|1[0-2])|enter|tab|space|escape|backspace|delete|up|down|left|right)$`,
)

// fileExtensionRe matches exporter file extensions: a dot followed by 1-8
// lowercase alphanumerics.
var fileExtensionRe = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// validResourceKinds enumerates the closed set of resource kinds.
var validResourceKinds = map[ResourceKind]bool{
	ResourcePatientRecord:   true,
	ResourceVisitRecord:     true,
	ResourceTreatmentRecord: true,
	ResourceInvoiceRecord:   true,
	ResourceDocumentRecord:  true,
	ResourceSettings:        true,
}

// validActions enumerates recognized actions.
var validActions = map[Action]bool{
	ActionRead:   true,
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
}

// ValidationError is a single field-scoped validation failure.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}

// ValidationErrors is the full list of failures found in one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "manifest validation: " + strings.Join(msgs, "; ")
}

// ParseManifest parses YAML data into a Manifest and validates it strictly.
// Unknown document fields are rejected. The result is either a fully valid
// manifest or an error; no partially-valid manifest is ever returned.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, praxiserr.Wrapf(err, praxiserr.CodeManifestParseInvalid, "parsing manifest")
	}

	if errs := m.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return &m, nil
}

// Validate checks that the Manifest is well-formed. It returns all validation
// errors found rather than stopping at the first one; an empty result means
// the manifest is valid.
func (m *Manifest) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, m.validateIdentity()...)
	errs = append(errs, m.validateCapabilities()...)
	errs = append(errs, m.validateContributions()...)
	errs = append(errs, m.validateIntegrationOrigins()...)

	return errs
}

func (m *Manifest) validateIdentity() ValidationErrors {
	var errs ValidationErrors

	if m.ID == "" {
		errs = append(errs, ValidationError{Path: "id", Message: "must not be empty"})
	} else if !idRe.MatchString(m.ID) {
		errs = append(errs, ValidationError{
			Path:    "id",
			Message: fmt.Sprintf("must start with a letter and contain only letters, digits, dots, hyphens, underscores (3-128 chars), got %q", m.ID),
		})
	}

	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, ValidationError{Path: "name", Message: "must not be empty"})
	}

	if m.Version == "" {
		errs = append(errs, ValidationError{Path: "version", Message: "must not be empty"})
	} else if !semverRe.MatchString(m.Version) {
		errs = append(errs, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("must be valid semver (MAJOR.MINOR.PATCH), got %q", m.Version),
		})
	}

	if m.MinHostVersion == "" {
		errs = append(errs, ValidationError{Path: "minHostVersion", Message: "must not be empty"})
	} else if !semverRe.MatchString(m.MinHostVersion) {
		errs = append(errs, ValidationError{
			Path:    "minHostVersion",
			Message: fmt.Sprintf("must be valid semver (MAJOR.MINOR.PATCH), got %q", m.MinHostVersion),
		})
	}

	if strings.TrimSpace(m.Publisher) == "" {
		errs = append(errs, ValidationError{Path: "publisher", Message: "must not be empty"})
	}

	return errs
}

func (m *Manifest) validateCapabilities() ValidationErrors {
	var errs ValidationErrors

	for kind, actions := range m.Capabilities.Resources {
		path := fmt.Sprintf("capabilities.resources.%s", kind)

		if !validResourceKinds[kind] {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("unknown resource kind %q", kind),
			})
			continue
		}

		if len(actions) == 0 {
			errs = append(errs, ValidationError{Path: path, Message: "must declare at least one action"})
		}

		seen := map[Action]bool{}
		for i, action := range actions {
			if !validActions[action] {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s[%d]", path, i),
					Message: fmt.Sprintf("unknown action %q, must be one of [read, create, update, delete]", action),
				})
				continue
			}
			if seen[action] {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s[%d]", path, i),
					Message: fmt.Sprintf("duplicate action %q", action),
				})
			}
			seen[action] = true
		}
	}

	for i, origin := range m.Capabilities.Network {
		if err := validateOrigin(origin); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("capabilities.network[%d]", i),
				Message: err.Error(),
			})
		}
	}

	return errs
}

func (m *Manifest) validateContributions() ValidationErrors {
	var errs ValidationErrors

	if m.Contributions.Count() == 0 {
		errs = append(errs, ValidationError{
			Path:    "contributions",
			Message: "must declare at least one contribution point",
		})
	}

	for i, cmd := range m.Contributions.Commands {
		path := fmt.Sprintf("contributions.commands[%d]", i)
		if !idRe.MatchString(cmd.ID) {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("invalid command id %q", cmd.ID)})
		}
		if strings.TrimSpace(cmd.Title) == "" {
			errs = append(errs, ValidationError{Path: path + ".title", Message: "must not be empty"})
		}
		if cmd.Keybinding != "" && !keybindingRe.MatchString(cmd.Keybinding) {
			errs = append(errs, ValidationError{
				Path:    path + ".keybinding",
				Message: fmt.Sprintf("invalid keybinding %q, expected modifier+key (e.g. ctrl+shift+p)", cmd.Keybinding),
			})
		}
	}

	for i, tpl := range m.Contributions.Templates {
		path := fmt.Sprintf("contributions.templates[%d]", i)
		if !idRe.MatchString(tpl.ID) {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("invalid template id %q", tpl.ID)})
		}
		if strings.TrimSpace(tpl.Name) == "" {
			errs = append(errs, ValidationError{Path: path + ".name", Message: "must not be empty"})
		}
		if tpl.Path == "" {
			errs = append(errs, ValidationError{Path: path + ".path", Message: "must not be empty"})
		} else if strings.HasPrefix(tpl.Path, "/") || strings.Contains(tpl.Path, "..") {
			errs = append(errs, ValidationError{
				Path:    path + ".path",
				Message: fmt.Sprintf("must be a relative path inside the package, got %q", tpl.Path),
			})
		}
	}

	for i, exp := range m.Contributions.Exporters {
		path := fmt.Sprintf("contributions.exporters[%d]", i)
		if !idRe.MatchString(exp.ID) {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("invalid exporter id %q", exp.ID)})
		}
		if strings.TrimSpace(exp.Name) == "" {
			errs = append(errs, ValidationError{Path: path + ".name", Message: "must not be empty"})
		}
		if len(exp.FileExtensions) == 0 {
			errs = append(errs, ValidationError{Path: path + ".fileExtensions", Message: "must declare at least one file extension"})
		}
		for j, ext := range exp.FileExtensions {
			if !fileExtensionRe.MatchString(ext) {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s.fileExtensions[%d]", path, j),
					Message: fmt.Sprintf("invalid file extension %q, expected e.g. \".csv\"", ext),
				})
			}
		}
	}

	for i, integ := range m.Contributions.Integrations {
		path := fmt.Sprintf("contributions.integrations[%d]", i)
		if !idRe.MatchString(integ.ID) {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("invalid integration id %q", integ.ID)})
		}
		if strings.TrimSpace(integ.Name) == "" {
			errs = append(errs, ValidationError{Path: path + ".name", Message: "must not be empty"})
		}
		if integ.Endpoint == "" {
			errs = append(errs, ValidationError{Path: path + ".endpoint", Message: "must not be empty"})
		} else if _, err := OriginOf(integ.Endpoint); err != nil {
			errs = append(errs, ValidationError{Path: path + ".endpoint", Message: err.Error()})
		}
	}

	for i, view := range m.Contributions.Views {
		path := fmt.Sprintf("contributions.views[%d]", i)
		if !idRe.MatchString(view.ID) {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("invalid view id %q", view.ID)})
		}
		if strings.TrimSpace(view.Name) == "" {
			errs = append(errs, ValidationError{Path: path + ".name", Message: "must not be empty"})
		}
	}

	return errs
}

// validateIntegrationOrigins enforces the cross-field rule: every integration
// endpoint's origin must appear in the network capability list.
func (m *Manifest) validateIntegrationOrigins() ValidationErrors {
	var errs ValidationErrors

	allowed := map[string]bool{}
	for _, origin := range m.Capabilities.Network {
		if canonical, err := canonicalOrigin(origin); err == nil {
			allowed[canonical] = true
		}
	}

	for i, integ := range m.Contributions.Integrations {
		if integ.Endpoint == "" {
			continue
		}
		origin, err := OriginOf(integ.Endpoint)
		if err != nil {
			continue // already reported by validateContributions
		}
		if !allowed[origin] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("contributions.integrations[%d].endpoint", i),
				Message: fmt.Sprintf("origin %q is not declared in capabilities.network", origin),
			})
		}
	}

	return errs
}

// OriginOf extracts the canonical origin (scheme://host[:port], lowercased)
// from an absolute http(s) URL.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q must include a host", rawURL)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// validateOrigin checks a network allow-list entry: an origin only, with no
// path, query, or fragment.
func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q", origin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin %q must use http or https", origin)
	}
	if u.Host == "" {
		return fmt.Errorf("origin %q must include a host", origin)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("origin %q must not include a path, query, or fragment", origin)
	}
	return nil
}

func canonicalOrigin(origin string) (string, error) {
	if err := validateOrigin(origin); err != nil {
		return "", err
	}
	return OriginOf(origin)
}
