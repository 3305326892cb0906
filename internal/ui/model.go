// ABOUTME: Bubbletea model for the speaker TUI
// ABOUTME: Shows session status, credentials and playback stats; keys drive the controller
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sendspin/speaker-go/internal/player"
	"github.com/Sendspin/speaker-go/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controls is what the TUI drives
type Controls interface {
	StartSession()
	StopSession()
	SetVolume(volume int)
	SetMuted(muted bool)
}

// StatsFunc returns current playback counters
type StatsFunc func() player.Stats

// Model represents the TUI state
type Model struct {
	name     string
	status   session.StatusEvent
	stats    player.Stats
	volume   int
	muted    bool
	quitting bool

	controls Controls
	statsFn  StatsFunc
}

// StatusMsg carries a session event into the TUI
type StatusMsg session.StatusEvent

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// NewModel creates a TUI model. controls and statsFn may be nil in tests.
func NewModel(name string, volume int, controls Controls, statsFn StatsFunc) Model {
	return Model{
		name:     name,
		status:   session.StatusEvent{Status: session.StatusStopped},
		volume:   volume,
		controls: controls,
		statsFn:  statsFn,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case StatusMsg:
		m.status = session.StatusEvent(msg)
	case tickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		return m, tickEvery()
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if m.controls != nil {
			m.controls.StartSession()
		}
	case "x":
		if m.controls != nil {
			m.controls.StopSession()
		}
	case "up":
		m.setVolume(m.volume + 5)
	case "down":
		m.setVolume(m.volume - 5)
	case "m":
		m.muted = !m.muted
		if m.controls != nil {
			m.controls.SetMuted(m.muted)
		}
	}

	return m, nil
}

func (m *Model) setVolume(volume int) {
	if volume > 100 {
		volume = 100
	}
	if volume < 0 {
		volume = 0
	}
	if volume == m.volume {
		return
	}
	m.volume = volume
	if m.controls != nil {
		m.controls.SetVolume(volume)
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down speaker...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Speaker: " + m.name))
	b.WriteString("\n\n")

	field(&b, "Status: ", statusText(m.status))
	if m.status.Status == session.StatusRunning {
		field(&b, "Network: ", m.status.SSID)
		field(&b, "Password: ", m.status.Passphrase)
		field(&b, "Advertised as: ", fmt.Sprintf("%s (port %d)", m.status.AdvertisedName, m.status.Port))
		if m.status.Degraded {
			b.WriteString(warnStyle.Render("No stream decoder: advertised but silent"))
			b.WriteString("\n")
		}
	}
	if m.status.Reason != "" {
		b.WriteString(warnStyle.Render("Reason: " + m.status.Reason))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	muteText := ""
	if m.muted {
		muteText = " (muted)"
	}
	field(&b, "Volume: ", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteText))
	field(&b, "Frames: ", fmt.Sprintf("rendered %d  dropped %d  rejected %d  buffered %d",
		m.stats.Rendered, m.stats.Dropped, m.stats.Rejected, m.stats.Buffered))
	if m.stats.WriteErrors > 0 {
		field(&b, "Write errors: ", fmt.Sprintf("%d", m.stats.WriteErrors))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s:Start  x:Stop  ↑/↓:Volume  m:Mute  q:Quit"))

	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func statusText(ev session.StatusEvent) string {
	switch ev.Status {
	case session.StatusStarting:
		return "Starting..."
	case session.StatusRunning:
		return "Running"
	default:
		return "Stopped"
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
