package internal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// RunClient runs the chat TUI until the user quits. The caller owns the
// backend, the channel and the event subscription.
func RunClient(opts Options) error {
	program := tea.NewProgram(NewTUIModel(opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
