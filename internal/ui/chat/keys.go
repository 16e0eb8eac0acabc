// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP
// =============================================================================

// KeyMap defines the keyboard bindings for the chat view.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Submit      key.Binding
	Quit        key.Binding
	ToggleTasks key.Binding
	CycleFilter key.Binding
	RateUp      key.Binding
	RateDown    key.Binding
	CopyAnswer  key.Binding
	NewSession  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		ToggleTasks: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "tasks"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "filter"),
		),
		RateUp: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "helpful"),
		),
		RateDown: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "not helpful"),
		),
		CopyAnswer: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy answer"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "new session"),
		),
	}
}
