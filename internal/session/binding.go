// Package session binds one remote session client at a time to a UI host.
//
// A Binding owns at most one Client. Configure replaces the client whenever
// the reconnection key (environment, debug flag, port) changes, always
// destroying the old client before constructing the new one. Every client is
// built with a sink tagged by a generation number; callbacks carrying a
// generation other than the current one are dropped, so a replaced or
// disposed client can never write into the state of its successor.
package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithNotify registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change, outside the binding's
// locks, so snapshots may arrive out of order; compare State.Revision.
func WithNotify(fn func(State)) Option {
	return func(b *Binding) {
		b.notify = fn
	}
}

type liveClient struct {
	client Client
	key    Key
	gen    uint64
}

// Binding is the handle a UI host holds for the lifetime of one component.
type Binding struct {
	factory Factory
	logger  *slog.Logger
	notify  func(State)

	// lifecycle serializes Configure calls with each other.
	lifecycle sync.Mutex
	// dispatch is held while a command is forwarded and while a detached
	// client is destroyed, so a command never reaches a destroyed client.
	dispatch sync.Mutex

	mu       sync.Mutex
	gen      uint64
	current  *liveClient
	state    State
	disposed bool
}

// NewBinding returns an idle binding that builds clients with factory.
func NewBinding(factory Factory, opts ...Option) *Binding {
	b := &Binding{
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Configure makes cfg the active configuration. If a client built from the
// same key is live nothing happens. Otherwise the live client is destroyed,
// output and URL are cleared, and a new client is constructed. A construction
// error is returned wrapped; the binding stays idle and does not retry.
func (b *Binding) Configure(cfg Config) error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	key := cfg.Key()

	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return ErrDisposed
	}
	if b.current != nil && b.current.key == key {
		b.mu.Unlock()
		return nil
	}
	b.gen++
	gen := b.gen
	old := b.current
	b.current = nil
	b.state.resetOutput()
	b.state.URL = ""
	b.state.Status = Disconnected
	snap := b.bumpLocked()
	b.mu.Unlock()

	if old != nil {
		b.destroy(old.client)
		b.logger.Debug("session client destroyed", "env", old.key.Env, "generation", old.gen, "reason", "replaced")
	}
	b.publish(snap)

	client, err := b.factory(cfg, &sink{b: b, gen: gen, port: cfg.Port})
	if err != nil {
		b.abandon(gen)
		b.logger.Warn("session client construction failed", "env", cfg.Env, "generation", gen, "err", err)
		return fmt.Errorf("configure session: %w", err)
	}

	b.mu.Lock()
	if b.gen != gen {
		// Dispose ran while the client was being built.
		b.mu.Unlock()
		client.Destroy()
		return ErrDisposed
	}
	b.current = &liveClient{client: client, key: key, gen: gen}
	b.mu.Unlock()

	b.logger.Info("session client created", "env", cfg.Env, "debug", cfg.Debug, "port", cfg.Port, "generation", gen)
	return nil
}

// abandon retires gen after a failed construction so callbacks the failed
// client managed to emit are ignored from now on. Anything those callbacks
// wrote is cleared: without a live client the state is disconnected and
// empty.
func (b *Binding) abandon(gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.gen++
	if b.state.idle() {
		b.mu.Unlock()
		return
	}
	b.state.resetOutput()
	b.state.URL = ""
	b.state.Status = Disconnected
	snap := b.bumpLocked()
	b.mu.Unlock()
	b.publish(snap)
}

// RunCommand clears the output of the previous command and forwards command
// to the live client. Without a live client it does nothing. A Configure or
// Dispose racing the call waits for the forward before destroying the
// client it detached.
func (b *Binding) RunCommand(command string) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	cur := b.current
	if cur == nil {
		b.mu.Unlock()
		return
	}
	b.state.resetOutput()
	snap := b.bumpLocked()
	b.mu.Unlock()

	b.publish(snap)
	cur.client.RunCommand(command)
}

func (b *Binding) destroy(c Client) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	c.Destroy()
}

// Dispose destroys the live client and stops honouring callbacks. State is
// left as it was. Calling Dispose more than once is harmless.
func (b *Binding) Dispose() {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.disposed = true
	b.gen++
	cur := b.current
	b.current = nil
	b.mu.Unlock()

	if cur != nil {
		b.destroy(cur.client)
		b.logger.Debug("session client destroyed", "env", cur.key.Env, "generation", cur.gen, "reason", "disposed")
	}
}

// State returns a copy of the current state.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone()
}

// FS returns the filesystem handle of the live client, or nil.
func (b *Binding) FS() any {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()
	if cur == nil {
		return nil
	}
	return cur.client.FS()
}

// Live reports whether a client is currently owned.
func (b *Binding) Live() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// Key returns the key of the live client.
func (b *Binding) Key() (Key, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Key{}, false
	}
	return b.current.key, true
}

// apply runs mutate if gen is still current and publishes the result.
func (b *Binding) apply(gen uint64, mutate func(*State)) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		b.logger.Debug("dropped callback from stale client", "generation", gen)
		return
	}
	mutate(&b.state)
	snap := b.bumpLocked()
	b.mu.Unlock()
	b.publish(snap)
}

func (b *Binding) bumpLocked() State {
	b.state.Revision++
	return b.state.clone()
}

func (b *Binding) publish(s State) {
	if b.notify != nil {
		b.notify(s)
	}
}

// sink is the EventSink handed to a single client.
type sink struct {
	b    *Binding
	gen  uint64
	port int
}

func (s *sink) OnStatusChange(status Status) {
	s.b.apply(s.gen, func(st *State) { st.Status = status })
}

func (s *sink) OnStdout(line string) {
	s.b.apply(s.gen, func(st *State) { st.Stdout = append(st.Stdout, line) })
}

func (s *sink) OnStderr(line string) {
	s.b.apply(s.gen, func(st *State) { st.Stderr = append(st.Stderr, line) })
}

func (s *sink) OnURLChange(resolve URLResolver) {
	if s.port == 0 || resolve == nil {
		return
	}
	url := resolve(s.port)
	s.b.apply(s.gen, func(st *State) { st.URL = url })
}
