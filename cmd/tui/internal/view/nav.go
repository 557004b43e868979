package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// BackMsg tells the root model to return to the menu.
type BackMsg struct{}

// Back is the command a view returns when the user leaves it.
func Back() tea.Msg {
	return BackMsg{}
}
