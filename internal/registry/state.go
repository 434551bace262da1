// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package registry

// State represents the lifecycle state of an installed extension.
type State int

const (
	StateInstalled State = iota
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
// Uninstall is not a state: any state may be removed after a forced disable.
var validTransitions = map[State]map[State]bool{
	StateInstalled: {
		StateEnabled: true,
	},
	StateEnabled: {
		StateDisabled: true,
	},
	StateDisabled: {
		StateEnabled: true,
	},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to State) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}
