// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/devbook-dev/devbook/internal/theme"
)

const intro = `# devbook

Type a command and press **enter** to run it in the remote environment.
Output is cleared before every command. Changing the environment, the
debug flag or the target port replaces the session.
`

// Model caches a renderer and the rendered overlay per width.
type Model struct {
	markdown  string
	renderers map[int]*glamour.TermRenderer
	width     int
	rendered  string
}

// New builds the help text from the given bindings.
func New(bindings []key.Binding) Model {
	return Model{
		markdown:  Markdown(bindings),
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Markdown returns the overlay source: the intro and a key table.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n## Keys\n\n| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

func (m *Model) render(width int) string {
	if m.rendered != "" && m.width == width {
		return m.rendered
	}
	out := m.markdown
	if r, err := m.renderer(width); err == nil {
		if s, err := r.Render(m.markdown); err == nil {
			out = s
		}
	}
	m.width, m.rendered = width, out
	return out
}

func (m *Model) renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	if m.renderers == nil {
		m.renderers = make(map[int]*glamour.TermRenderer)
	}
	m.renderers[width] = r
	return r, nil
}

// View renders the overlay panel.
func (m *Model) View(width, height int) string {
	innerW := width - 8
	if innerW < 30 {
		innerW = 30
	}
	body := strings.TrimRight(m.render(innerW), "\n")
	lines := strings.Split(body, "\n")
	if limit := height - 5; limit > 3 && len(lines) > limit {
		lines = lines[:limit]
	}
	footer := theme.StyleDimmed.Render("esc:close")
	return lipgloss.NewStyle().
		Width(innerW+4).
		Padding(0, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), footer))
}
