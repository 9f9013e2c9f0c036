// Package debug keeps a log of session events and renders it as an
// overlay. Every entry is tagged with the session key it belongs to and the
// state revision it was observed at, so the overlay can be narrowed to one
// kind of event or to the current session.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/devbook-dev/devbook/internal/session"
	"github.com/devbook-dev/devbook/internal/theme"
)

const maxEntries = 200

// Kind classifies an entry.
type Kind int

const (
	KindAll Kind = iota // filter only
	KindState
	KindConfig
	KindCommand
	KindError
)

var kindLabels = map[Kind]string{
	KindAll:     "all",
	KindState:   "state",
	KindConfig:  "cfg",
	KindCommand: "cmd",
	KindError:   "err",
}

func (k Kind) String() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return "?"
}

// Entry is a single event.
type Entry struct {
	Time     time.Time
	Kind     Kind
	Session  session.Key
	Revision uint64
	Message  string
}

// Model holds the log and the overlay's view settings.
type Model struct {
	entries []Entry

	// Current is the key new entries are tagged with.
	Current  session.Key
	Revision uint64

	filter      Kind
	currentOnly bool
	offset      int // rows hidden below the view
	now         func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

// Add records an event for the current session.
func (m *Model) Add(kind Kind, format string, args ...any) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.entries = append(m.entries, Entry{
		Time:     now(),
		Kind:     kind,
		Session:  m.Current,
		Revision: m.Revision,
		Message:  fmt.Sprintf(format, args...),
	})
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
	m.offset = 0
}

// Len is the number of entries kept, ignoring filters.
func (m Model) Len() int { return len(m.entries) }

// CycleFilter narrows the view to the next kind, wrapping back to all.
func (m *Model) CycleFilter() {
	m.filter = (m.filter + 1) % Kind(len(kindLabels))
	m.offset = 0
}

// ToggleCurrentOnly hides entries from sessions other than Current.
func (m *Model) ToggleCurrentOnly() {
	m.currentOnly = !m.currentOnly
	m.offset = 0
}

// Visible returns the entries passing the active filters, oldest first.
func (m Model) Visible() []Entry {
	var out []Entry
	for _, e := range m.entries {
		if m.filter != KindAll && e.Kind != m.filter {
			continue
		}
		if m.currentOnly && e.Session != m.Current {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *Model) ScrollUp(n int) {
	m.offset = min(m.offset+n, max(len(m.Visible())-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.offset = max(m.offset-n, 0)
}

// SessionLabel renders a key as env[+debug][:port].
func SessionLabel(k session.Key) string {
	if k.Env == "" {
		return "-"
	}
	var b strings.Builder
	b.WriteString(k.Env)
	if k.Debug {
		b.WriteString("+debug")
	}
	if k.Port != 0 {
		fmt.Fprintf(&b, ":%d", k.Port)
	}
	return b.String()
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-7, 3)

	scope := "all sessions"
	if m.currentOnly {
		scope = SessionLabel(m.Current)
	}
	title := theme.StyleHeader.Render(" DEBUG LOG ") +
		theme.StyleDimmed.Render(fmt.Sprintf(" kind:%s  scope:%s", m.filter, scope))
	help := theme.StyleDimmed.Render("j/k:scroll  f:kind  s:scope  esc:close  " + m.counts())

	visible := m.Visible()
	if len(visible) == 0 {
		body := theme.StyleDimmed.Render("  No matching events.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(visible) - m.offset
	start := max(end-rows, 0)

	lines := make([]string, 0, end-start)
	for _, e := range visible[start:end] {
		lines = append(lines, m.row(e, innerW))
	}

	more := ""
	if m.offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.offset))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func (m Model) row(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind.String())
	label := SessionLabel(e.Session)
	sess := lipgloss.NewStyle().Foreground(theme.ColorDimmed).Render(fmt.Sprintf("%s#%d", label, e.Revision))

	msg := e.Message
	room := width - 20 - len(label)
	if room > 3 && len(msg) > room {
		msg = msg[:room-3] + "..."
	}
	return fmt.Sprintf("%s %s %s %s", ts, kind, sess, msg)
}

func (m Model) counts() string {
	n := map[Kind]int{}
	for _, e := range m.entries {
		n[e.Kind]++
	}
	return fmt.Sprintf("%d cmd  %d err  %d total", n[KindCommand], n[KindError], len(m.entries))
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindState:
		return theme.ColorKindState
	case KindConfig:
		return theme.ColorKindConfig
	case KindCommand:
		return theme.ColorKindCmd
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
