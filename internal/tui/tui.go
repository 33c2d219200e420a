// Package tui is GRIND's interactive console.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the console and blocks until the user leaves or ctx is
// cancelled.
func Run(ctx context.Context, responder Responder) error {
	program := tea.NewProgram(
		NewModel(ctx, responder),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}
