// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it session events
package ui

import (
	"context"

	"github.com/Sendspin/speaker-go/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the TUI until the user quits or ctx is done. Events from the
// controller are forwarded until the channel closes.
func Run(ctx context.Context, model Model, events <-chan session.StatusEvent) error {
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		for ev := range events {
			p.Send(StatusMsg(ev))
		}
	}()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
