// Package output renders the stdout and stderr panes as two scrollable
// viewports stacked vertically.
package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devbook-dev/devbook/internal/theme"
)

// Pane identifies one of the two output streams.
type Pane int

const (
	PaneStdout Pane = iota
	PaneStderr
)

// Model holds both panes.
type Model struct {
	panes  [2]viewport.Model
	counts [2]int
	Focus  Pane
}

// paneKeys restricts scrolling to page keys so typing into the command
// input never scrolls the panes.
func paneKeys() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
}

func New() Model {
	var m Model
	for i := range m.panes {
		m.panes[i] = viewport.New(40, 3)
		m.panes[i].KeyMap = paneKeys()
	}
	return m
}

// SetSize splits the available area between the panes, giving stdout two
// thirds of the height.
func (m *Model) SetSize(width, height int) {
	inner := width - 2
	if inner < 10 {
		inner = 10
	}
	// Each pane spends two lines on borders and one on its title.
	usable := height - 6
	if usable < 2 {
		usable = 2
	}
	errH := usable / 3
	if errH < 1 {
		errH = 1
	}
	m.panes[PaneStdout].Width, m.panes[PaneStdout].Height = inner, usable-errH
	m.panes[PaneStderr].Width, m.panes[PaneStderr].Height = inner, errH
}

// SetOutput replaces the pane contents. Panes scrolled to the bottom stay
// pinned there.
func (m *Model) SetOutput(stdout, stderr []string) {
	m.set(PaneStdout, stdout)
	m.set(PaneStderr, stderr)
}

func (m *Model) set(p Pane, lines []string) {
	vp := &m.panes[p]
	pinned := vp.AtBottom() || len(lines) < m.counts[p]
	m.counts[p] = len(lines)
	vp.SetContent(render(p, lines))
	if pinned {
		vp.GotoBottom()
	}
}

func render(p Pane, lines []string) string {
	color := theme.ColorStdout
	if p == PaneStderr {
		color = theme.ColorStderr
	}
	line := lipgloss.NewStyle().Foreground(color)
	prompt := lipgloss.NewStyle().Foreground(theme.ColorPrompt).Bold(true)

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if strings.HasPrefix(l, "$ ") {
			b.WriteString(prompt.Render(l))
		} else {
			b.WriteString(line.Render(l))
		}
	}
	return b.String()
}

// ToggleFocus moves page scrolling to the other pane.
func (m *Model) ToggleFocus() {
	m.Focus = 1 - m.Focus
}

// Update forwards scroll input to the focused pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.panes[m.Focus], cmd = m.panes[m.Focus].Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.pane(PaneStdout, "stdout"),
		m.pane(PaneStderr, "stderr"),
	)
}

func (m Model) pane(p Pane, name string) string {
	title := theme.StyleHeader.Render(fmt.Sprintf("%s (%d)", name, m.counts[p]))
	border := theme.ColorBorder
	if m.Focus == p {
		title = theme.StyleSelected.Render(fmt.Sprintf("%s (%d)", name, m.counts[p]))
		border = theme.ColorAccent
	}
	body := m.panes[p].View()
	if m.counts[p] == 0 {
		body = theme.StyleDimmed.Render("  (empty)")
	}
	return theme.StyleBorder.
		BorderForeground(border).
		Width(m.panes[p].Width).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}
