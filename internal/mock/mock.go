// Package mock provides in-process session clients that need no remote
// environment: a scripted client for --mock mode and a hand-driven one for
// tests.
package mock

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devbook-dev/devbook/internal/session"
)

const defaultTick = 50 * time.Millisecond

// Script controls what a scripted client emits.
type Script struct {
	// Tick is the delay between consecutive events.
	Tick time.Duration
	// Host is announced as the URL host once connected. Empty skips the
	// announcement.
	Host string
	// Responses maps a command to the stdout lines it produces. Commands
	// without an entry print "ok".
	Responses map[string][]string
	// Unreachable lists environments whose construction fails.
	Unreachable map[string]bool
}

// DefaultScript is the script used by --mock.
func DefaultScript() Script {
	return Script{
		Tick: 150 * time.Millisecond,
		Host: "mock.o.usedevbook.app",
		Responses: map[string][]string{
			"ls":        {"index.js", "package.json", "node_modules"},
			"node -v":   {"v16.13.0"},
			"echo $PWD": {"/code"},
		},
		Unreachable: map[string]bool{"offline": true},
	}
}

type stepKind int

const (
	stepStatus stepKind = iota
	stepStdout
	stepStderr
	stepURL
)

type step struct {
	kind   stepKind
	status session.Status
	text   string
}

// Client replays scripted events from a single goroutine, one per tick.
type Client struct {
	cfg    session.Config
	sink   session.EventSink
	script Script
	files  *Files

	mu    sync.Mutex
	queue []step

	stop      chan struct{}
	done      chan struct{}
	once      sync.Once
	emitted   atomic.Int64
	destroyed atomic.Int32
}

// NewFactory returns a session.Factory producing scripted clients.
func NewFactory(script Script) session.Factory {
	return func(cfg session.Config, sink session.EventSink) (session.Client, error) {
		c, err := New(cfg, sink, script)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// New starts a scripted client for cfg.
func New(cfg session.Config, sink session.EventSink, script Script) (*Client, error) {
	if script.Unreachable[cfg.Env] {
		return nil, &session.ConnectionError{Env: cfg.Env, Err: fmt.Errorf("environment unreachable")}
	}
	if script.Tick <= 0 {
		script.Tick = defaultTick
	}

	c := &Client{
		cfg:    cfg,
		sink:   sink,
		script: script,
		files:  NewFiles(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.enqueue(
		step{kind: stepStatus, status: session.Connecting},
		step{kind: stepStatus, status: session.Connected},
	)
	if script.Host != "" {
		c.enqueue(step{kind: stepURL, text: script.Host})
	}
	if cfg.Debug {
		c.enqueue(step{kind: stepStderr, text: fmt.Sprintf("[debug] attached to %s", cfg.Env)})
	}

	go c.run()
	return c, nil
}

func (c *Client) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.script.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if st, ok := c.pop(); ok {
				c.emit(st)
			}
		}
	}
}

func (c *Client) emit(st step) {
	c.emitted.Add(1)
	switch st.kind {
	case stepStatus:
		c.sink.OnStatusChange(st.status)
	case stepStdout:
		c.sink.OnStdout(st.text)
	case stepStderr:
		c.sink.OnStderr(st.text)
	case stepURL:
		host := st.text
		c.sink.OnURLChange(func(port int) string { return fmt.Sprintf("https://%d-%s", port, host) })
	}
}

func (c *Client) enqueue(steps ...step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, steps...)
}

func (c *Client) pop() (step, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return step{}, false
	}
	st := c.queue[0]
	c.queue = c.queue[1:]
	return st, true
}

// RunCommand queues the scripted output for command.
func (c *Client) RunCommand(command string) {
	if c.destroyed.Load() > 0 {
		return
	}
	steps := []step{{kind: stepStdout, text: "$ " + command}}
	switch lines, ok := c.script.Responses[command]; {
	case strings.HasPrefix(command, "err"):
		steps = append(steps, step{kind: stepStderr, text: fmt.Sprintf("%s: command failed", command)})
	case ok:
		for _, l := range lines {
			steps = append(steps, step{kind: stepStdout, text: l})
		}
	default:
		steps = append(steps, step{kind: stepStdout, text: "ok"})
	}
	c.enqueue(steps...)
}

// Destroy stops the client. It is idempotent.
func (c *Client) Destroy() {
	c.destroyed.Add(1)
	c.once.Do(func() { close(c.stop) })
}

// FS returns the client's in-memory *Files.
func (c *Client) FS() any { return c.files }

// Done is closed once the replay goroutine has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// Emitted counts the events delivered to the sink so far.
func (c *Client) Emitted() int64 { return c.emitted.Load() }

// Destroyed counts calls to Destroy.
func (c *Client) Destroyed() int { return int(c.destroyed.Load()) }

// Pending reports how many events are still queued.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Files is a trivial in-memory file store standing in for a remote
// filesystem.
type Files struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewFiles() *Files {
	return &Files{files: make(map[string][]byte)}
}

func (f *Files) ReadFile(name string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.files[name]
	return append([]byte(nil), data...), ok
}

func (f *Files) WriteFile(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append([]byte(nil), data...)
}
