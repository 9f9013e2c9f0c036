package status

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devbook-dev/devbook/internal/session"
	"github.com/devbook-dev/devbook/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Status session.Status
	Env    string
	Debug  bool
	Port   int
	URL    string
	Err    error
	Width  int

	spinner spinner.Model
}

// New creates a status bar model.
func New() Model {
	return Model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorConnecting)),
		),
	}
}

// Tick starts the connecting spinner.
func (m Model) Tick() tea.Msg {
	return m.spinner.Tick()
}

// Update advances the spinner.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	name := m.Status.String()
	glyph := theme.StatusGlyph(name)
	if m.Status == session.Connecting {
		glyph = m.spinner.View()
	}
	connStr := glyph + " " + lipgloss.NewStyle().Foreground(theme.StatusColor(name)).Render(name)

	envStr := theme.StyleHeader.Render(m.Env)
	if m.Debug {
		envStr += lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(" [debug]")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + envStr

	switch {
	case m.Port == 0:
		content += sep + theme.StyleDimmed.Render("no port")
	case m.URL == "":
		content += sep + theme.StyleDimmed.Render(fmt.Sprintf(":%d pending", m.Port))
	default:
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorAccent).Render(m.URL)
	}

	if m.Err != nil {
		content += sep + theme.StyleError.Render(m.Err.Error())
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
