// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package registry

import (
	"sync"

	"github.com/praxis-hq/praxis/pkg/extension"
)

// CommandTable maps contributed command ids to the extension that handles
// them. The registry registers commands on enable and deregisters them on
// disable, so a lookup only ever resolves to a currently-enabled extension.
type CommandTable struct {
	mu       sync.RWMutex
	commands map[string]commandBinding
}

type commandBinding struct {
	extensionID string
	command     extension.CommandContribution
}

// NewCommandTable returns an empty command table.
func NewCommandTable() *CommandTable {
	return &CommandTable{commands: make(map[string]commandBinding)}
}

// Register binds every contributed command to extensionID. A command id
// already bound to another extension is skipped; first registration wins.
func (t *CommandTable) Register(extensionID string, commands []extension.CommandContribution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cmd := range commands {
		if _, taken := t.commands[cmd.ID]; taken {
			continue
		}
		t.commands[cmd.ID] = commandBinding{extensionID: extensionID, command: cmd}
	}
}

// Deregister removes every command bound to extensionID.
func (t *CommandTable) Deregister(extensionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, binding := range t.commands {
		if binding.extensionID == extensionID {
			delete(t.commands, id)
		}
	}
}

// Resolve returns the extension id handling commandID.
func (t *CommandTable) Resolve(commandID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	binding, ok := t.commands[commandID]
	return binding.extensionID, ok
}
