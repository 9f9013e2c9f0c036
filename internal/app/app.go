package app

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devbook-dev/devbook/internal/config"
	"github.com/devbook-dev/devbook/internal/session"
	"github.com/devbook-dev/devbook/internal/theme"
	"github.com/devbook-dev/devbook/internal/views/debug"
	"github.com/devbook-dev/devbook/internal/views/help"
	"github.com/devbook-dev/devbook/internal/views/output"
	"github.com/devbook-dev/devbook/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// ConfiguredMsg reports the result of a Configure call.
type ConfiguredMsg struct {
	Key session.Key
	Err error
}

// Model is the root Bubble Tea model.
type Model struct {
	binding *session.Binding
	feed    *Feed
	cfg     *config.Config
	ctx     context.Context
	cancel  context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Requested session parameters.
	envIdx  int
	portIdx int // len(cfg.Ports) selects no port
	debug   bool

	// A Configure call is in flight; dirty means the selection changed
	// meanwhile and another call is due when it returns.
	configuring bool
	dirty       bool

	state   session.State
	overlay Overlay

	// Sub-views.
	input     textinput.Model
	statusBar status.Model
	output    output.Model
	debugLog  debug.Model
	help      *help.Model
}

// New creates the root model. feed must be the one the binding notifies.
func New(binding *session.Binding, feed *Feed, cfg *config.Config) Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Prompt = "$ "
	input.Placeholder = "type a command"
	input.Focus()

	keys := DefaultKeyMap()
	helpView := help.New(keys.Bindings())
	m := Model{
		binding:     binding,
		feed:        feed,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		keys:        keys,
		envIdx:      cfg.EnvIndex(cfg.DefaultEnv),
		debug:       cfg.Debug,
		configuring: true, // Init issues the first Configure
		input:       input,
		statusBar:   status.New(),
		output:      output.New(),
		debugLog:    debug.New(),
		help:        &helpView,
	}
	m.syncStatus()
	return m
}

// Init issues the first Configure and starts listening for state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.configure(),
		m.feed.Wait(m.ctx),
		m.statusBar.Tick,
		textinput.Blink,
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.input.Width = msg.Width - 4
		// status bar (3) + input (1) + footer (1)
		m.output.SetSize(msg.Width, msg.Height-5)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.applyState(msg.State)
		return m, m.feed.Wait(m.ctx)

	case ConfiguredMsg:
		return m.handleConfigured(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		m.binding.Dispose()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.ScrollUp):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.ScrollDn):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.LogKind):
			m.debugLog.CycleFilter()
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.LogScope):
			m.debugLog.ToggleCurrentOnly()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Run):
		command := strings.TrimSpace(m.input.Value())
		if command == "" {
			return m, nil
		}
		m.input.Reset()
		m.debugLog.Add(debug.KindCommand, "%s", command)
		m.binding.RunCommand(command)
		return m, nil

	case key.Matches(msg, m.keys.NextEnv):
		m.envIdx = (m.envIdx + 1) % len(m.cfg.Environments)
		return m.reconfigure()

	case key.Matches(msg, m.keys.PrevEnv):
		n := len(m.cfg.Environments)
		m.envIdx = (m.envIdx - 1 + n) % n
		return m.reconfigure()

	case key.Matches(msg, m.keys.Debug):
		m.debug = !m.debug
		return m.reconfigure()

	case key.Matches(msg, m.keys.Port):
		m.portIdx = (m.portIdx + 1) % (len(m.cfg.Ports) + 1)
		return m.reconfigure()

	case key.Matches(msg, m.keys.Retry):
		return m.reconfigure()

	case key.Matches(msg, m.keys.Pane):
		m.output.ToggleFocus()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// reconfigure issues a Configure for the current selection, or defers it
// until the call in flight returns.
func (m Model) reconfigure() (tea.Model, tea.Cmd) {
	m.syncStatus()
	if m.configuring {
		m.dirty = true
		return m, nil
	}
	m.configuring = true
	return m, m.configure()
}

func (m Model) handleConfigured(msg ConfiguredMsg) (tea.Model, tea.Cmd) {
	m.configuring = false
	m.debugLog.Current = msg.Key
	switch {
	case errors.Is(msg.Err, session.ErrDisposed):
		// Quitting, or superseded by Dispose.
	case msg.Err != nil:
		m.statusBar.Err = msg.Err
		m.debugLog.Add(debug.KindError, "%v", msg.Err)
	default:
		m.statusBar.Err = nil
		m.debugLog.Add(debug.KindConfig, "session %s ready", debug.SessionLabel(msg.Key))
	}

	if m.dirty {
		m.dirty = false
		m.configuring = true
		return m, m.configure()
	}
	return m, nil
}

func (m *Model) applyState(st session.State) {
	if st.Revision < m.state.Revision {
		return
	}
	m.debugLog.Revision = st.Revision
	if st.Status != m.state.Status {
		m.debugLog.Add(debug.KindState, "%s", st.Status)
	}
	if st.URL != m.state.URL && st.URL != "" {
		m.debugLog.Add(debug.KindState, "url %s", st.URL)
	}
	m.state = st
	m.statusBar.Status = st.Status
	m.statusBar.URL = st.URL
	m.output.SetOutput(st.Stdout, st.Stderr)
}

// sessionConfig returns the configuration for the current selection.
func (m Model) sessionConfig() session.Config {
	return session.Config{
		Env:    m.cfg.Environments[m.envIdx],
		Debug:  m.debug,
		Port:   m.port(),
		Remote: m.cfg.Remote(),
	}
}

func (m Model) port() int {
	if m.portIdx < len(m.cfg.Ports) {
		return m.cfg.Ports[m.portIdx]
	}
	return 0
}

func (m Model) configure() tea.Cmd {
	cfg := m.sessionConfig()
	b := m.binding
	return func() tea.Msg {
		return ConfiguredMsg{Key: cfg.Key(), Err: b.Configure(cfg)}
	}
}

func (m *Model) syncStatus() {
	m.statusBar.Env = m.cfg.Environments[m.envIdx]
	m.statusBar.Debug = m.debug
	m.statusBar.Port = m.port()
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return m.place(m.debugLog.View(m.width, m.height))
	case OverlayHelp:
		return m.place(m.help.View(m.width, m.height))
	}

	sections := []string{
		m.statusBar.View(),
		m.output.View(),
		m.input.View(),
		theme.StyleDimmed.Render("  enter:run  tab:env  ctrl+d:debug  ctrl+p:port  ctrl+r:retry  ctrl+g:log  f1:help  ctrl+c:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) place(panel string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}
