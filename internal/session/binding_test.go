package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	cfg  Config
	sink EventSink
	fs   any

	mu        sync.Mutex
	destroyed int
	commands  []string
	onRun     func(command string)
}

func (c *fakeClient) RunCommand(command string) {
	c.mu.Lock()
	c.commands = append(c.commands, command)
	onRun := c.onRun
	c.mu.Unlock()
	if onRun != nil {
		onRun(command)
	}
}

func (c *fakeClient) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
}

func (c *fakeClient) FS() any { return c.fs }

func (c *fakeClient) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// fakeFactory records every client it builds.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	err     error
	// before runs inside construction, before the client is returned.
	before func(cfg Config, sink EventSink)
}

func (f *fakeFactory) build(cfg Config, sink EventSink) (Client, error) {
	if f.before != nil {
		f.before(cfg, sink)
	}
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeClient{cfg: cfg, sink: sink, fs: fmt.Sprintf("fs-%s", cfg.Env)}
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) last(t *testing.T) *fakeClient {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.clients, "no client constructed")
	return f.clients[len(f.clients)-1]
}

func (f *fakeFactory) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clients {
		if c.destroyCount() == 0 {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBinding(f *fakeFactory, opts ...Option) *Binding {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewBinding(f.build, opts...)
}

func TestConfigureScenario(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)

	require.NoError(t, b.Configure(Config{Env: "e1", Port: 8080}))
	c := f.last(t)

	c.sink.OnStatusChange(Connected)
	c.sink.OnStdout("hello")
	c.sink.OnURLChange(func(p int) string { return fmt.Sprintf("https://host:%d", p) })

	st := b.State()
	assert.Equal(t, Connected, st.Status)
	assert.Equal(t, []string{"hello"}, st.Stdout)
	assert.Empty(t, st.Stderr)
	assert.Equal(t, "https://host:8080", st.URL)

	b.RunCommand("ls")
	st = b.State()
	assert.Empty(t, st.Stdout)
	assert.Empty(t, st.Stderr)
	assert.Equal(t, Connected, st.Status)
	assert.Equal(t, "https://host:8080", st.URL)
	assert.Equal(t, []string{"ls"}, c.commands)
}

func TestConfigureSameKeyKeepsClient(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)

	require.NoError(t, b.Configure(Config{Env: "e1", Port: 3000}))
	require.NoError(t, b.Configure(Config{Env: "e1", Port: 3000, Remote: Remote{Token: "new"}}))

	assert.Len(t, f.clients, 1)
	assert.Equal(t, 0, f.last(t).destroyCount())
	key, ok := b.Key()
	require.True(t, ok)
	assert.Equal(t, Key{Env: "e1", Port: 3000}, key)
}

func TestReconfigureReplacesClient(t *testing.T) {
	tests := []struct {
		name string
		next Config
	}{
		{"env change", Config{Env: "e2", Port: 8080}},
		{"debug change", Config{Env: "e1", Debug: true, Port: 8080}},
		{"port change", Config{Env: "e1", Port: 9090}},
		{"port removed", Config{Env: "e1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFactory{}
			b := newTestBinding(f)
			require.NoError(t, b.Configure(Config{Env: "e1", Port: 8080}))
			first := f.last(t)

			require.NoError(t, b.Configure(tt.next))
			require.Len(t, f.clients, 2)
			assert.Equal(t, 1, first.destroyCount())
			assert.Equal(t, 0, f.last(t).destroyCount())
			assert.Equal(t, tt.next, f.last(t).cfg)
		})
	}
}

func TestSingleOwnershipAcrossReconfigurations(t *testing.T) {
	f := &fakeFactory{}
	f.before = func(Config, EventSink) {
		// Every previous client must already be gone when a new one is built.
		assert.Equal(t, 0, f.liveCount())
	}
	b := newTestBinding(f)

	envs := []string{"a", "b", "b", "c", "a", "a", "d"}
	for i, env := range envs {
		require.NoError(t, b.Configure(Config{Env: env, Debug: i%3 == 0}))
		assert.LessOrEqual(t, f.liveCount(), 1)
	}
	b.Dispose()

	assert.Equal(t, 0, f.liveCount())
	for i, c := range f.clients {
		assert.Equal(t, 1, c.destroyCount(), "client %d", i)
	}
}

func TestReconnectResetsOutputBeforeConstruction(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "e1", Port: 8080}))
	c := f.last(t)
	c.sink.OnStatusChange(Connected)
	c.sink.OnStdout("out")
	c.sink.OnStderr("err")
	c.sink.OnURLChange(func(p int) string { return fmt.Sprintf("https://%d-host", p) })

	var seen State
	f.before = func(Config, EventSink) { seen = b.State() }
	require.NoError(t, b.Configure(Config{Env: "e2", Port: 8080}))

	assert.Empty(t, seen.Stdout)
	assert.Empty(t, seen.Stderr)
	assert.Empty(t, seen.URL)
	assert.Equal(t, Disconnected, seen.Status)
}

func TestRunCommandClearsBeforeForwarding(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "e1"}))
	c := f.last(t)
	c.sink.OnStdout("old out")
	c.sink.OnStderr("old err")

	var atDispatch State
	c.onRun = func(string) { atDispatch = b.State() }
	b.RunCommand("x")

	assert.Empty(t, atDispatch.Stdout)
	assert.Empty(t, atDispatch.Stderr)

	c.sink.OnStdout("new out")
	assert.Equal(t, []string{"new out"}, b.State().Stdout)
}

func TestStaleCallbacksIgnored(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "a", Port: 80}))
	a := f.last(t)
	require.NoError(t, b.Configure(Config{Env: "b", Port: 80}))
	bc := f.last(t)
	bc.sink.OnStatusChange(Connected)

	a.sink.OnStdout("late")
	a.sink.OnStderr("late")
	a.sink.OnStatusChange(Disconnected)
	a.sink.OnURLChange(func(int) string { return "https://stale" })

	st := b.State()
	assert.NotContains(t, st.Stdout, "late")
	assert.NotContains(t, st.Stderr, "late")
	assert.Equal(t, Connected, st.Status)
	assert.Empty(t, st.URL)
}

func TestCallbacksAfterDisposeIgnored(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "a"}))
	c := f.last(t)
	c.sink.OnStdout("kept")
	b.Dispose()

	c.sink.OnStdout("late")
	assert.Equal(t, []string{"kept"}, b.State().Stdout)
}

func TestRunCommandWithoutClientIsNoop(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)

	before := b.State()
	assert.NotPanics(t, func() { b.RunCommand("ls") })
	assert.Equal(t, before, b.State())

	require.NoError(t, b.Configure(Config{Env: "a"}))
	f.last(t).sink.OnStdout("x")
	b.Dispose()
	before = b.State()
	b.RunCommand("ls")
	assert.Equal(t, before, b.State())
	assert.Empty(t, f.last(t).commands)
}

func TestURLRequiresPort(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "a"}))
	c := f.last(t)

	called := false
	for i := 0; i < 3; i++ {
		c.sink.OnURLChange(func(int) string {
			called = true
			return "https://x"
		})
	}
	assert.Empty(t, b.State().URL)
	assert.False(t, called, "resolver should not run without a port")
}

func TestConstructionErrorPropagates(t *testing.T) {
	connErr := &ConnectionError{Env: "a", Err: errors.New("refused")}
	f := &fakeFactory{
		err: connErr,
		before: func(_ Config, sink EventSink) {
			sink.OnStatusChange(Connecting)
		},
	}
	b := newTestBinding(f)

	err := b.Configure(Config{Env: "a"})
	require.Error(t, err)
	var target *ConnectionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "a", target.Env)
	assert.False(t, b.Live())
	assert.Equal(t, Disconnected, b.State().Status)
	assert.Nil(t, b.FS())

	// Same key again is a fresh attempt, not a no-op.
	f.err = nil
	f.before = nil
	require.NoError(t, b.Configure(Config{Env: "a"}))
	assert.True(t, b.Live())
}

func TestConstructionErrorClearsPartialOutput(t *testing.T) {
	var notified []State
	f := &fakeFactory{
		err: &ConnectionError{Env: "a", Err: errors.New("refused")},
		before: func(_ Config, sink EventSink) {
			sink.OnStatusChange(Connecting)
			sink.OnStdout("partial")
			sink.OnStderr("boom")
			sink.OnURLChange(func(port int) string { return fmt.Sprintf("https://%d-h", port) })
		},
	}
	b := newTestBinding(f, WithNotify(func(s State) { notified = append(notified, s) }))

	require.Error(t, b.Configure(Config{Env: "a", Port: 8080}))

	st := b.State()
	assert.False(t, b.Live())
	assert.Equal(t, Disconnected, st.Status)
	assert.Empty(t, st.Stdout)
	assert.Empty(t, st.Stderr)
	assert.Empty(t, st.URL)

	require.NotEmpty(t, notified)
	last := notified[len(notified)-1]
	assert.Equal(t, st.Revision, last.Revision, "cleared state is published")
	assert.Empty(t, last.Stdout)
}

func TestConstructionErrorWithoutCallbacksPublishesNothing(t *testing.T) {
	var count int
	f := &fakeFactory{err: errors.New("boom")}
	b := newTestBinding(f, WithNotify(func(State) { count++ }))

	require.Error(t, b.Configure(Config{Env: "a"}))
	assert.Equal(t, 1, count, "only the pre-construction reset is published")
}

func TestRunCommandFinishesBeforeReplacementDestroys(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "a"}))

	first := f.last(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	first.onRun = func(string) {
		close(entered)
		<-release
	}

	go b.RunCommand("ls")
	<-entered

	configured := make(chan error, 1)
	go func() { configured <- b.Configure(Config{Env: "b"}) }()

	select {
	case <-configured:
		t.Fatal("replacement finished while a command was being forwarded")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, first.destroyCount())

	close(release)
	require.NoError(t, <-configured)
	assert.Equal(t, 1, first.destroyCount())
	assert.Equal(t, []string{"ls"}, first.commands)
}

func TestCallbacksFromFailedConstructionIgnored(t *testing.T) {
	var leaked EventSink
	f := &fakeFactory{
		err:    errors.New("boom"),
		before: func(_ Config, sink EventSink) { leaked = sink },
	}
	b := newTestBinding(f)
	require.Error(t, b.Configure(Config{Env: "a"}))

	leaked.OnStdout("ghost")
	assert.Empty(t, b.State().Stdout)
}

func TestDisposeDestroysExactlyOnce(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "a"}))
	c := f.last(t)
	c.sink.OnStdout("x")

	b.Dispose()
	b.Dispose()

	assert.Equal(t, 1, c.destroyCount())
	assert.False(t, b.Live())
	assert.Equal(t, []string{"x"}, b.State().Stdout, "dispose keeps state")
	assert.ErrorIs(t, b.Configure(Config{Env: "b"}), ErrDisposed)
	assert.Len(t, f.clients, 1)
}

func TestDisposeDuringConstruction(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	f.before = func(Config, EventSink) { b.Dispose() }

	err := b.Configure(Config{Env: "a"})
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Equal(t, 1, f.last(t).destroyCount())
	assert.False(t, b.Live())
}

func TestFSPassThrough(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	assert.Nil(t, b.FS())

	require.NoError(t, b.Configure(Config{Env: "node"}))
	assert.Equal(t, "fs-node", b.FS())

	b.Dispose()
	assert.Nil(t, b.FS())
}

func TestNotifyRevisionsIncrease(t *testing.T) {
	f := &fakeFactory{}
	var (
		mu   sync.Mutex
		revs []uint64
	)
	b := newTestBinding(f, WithNotify(func(s State) {
		mu.Lock()
		revs = append(revs, s.Revision)
		mu.Unlock()
	}))

	require.NoError(t, b.Configure(Config{Env: "a"}))
	c := f.last(t)
	c.sink.OnStatusChange(Connected)
	c.sink.OnStdout("1")
	b.RunCommand("ls")
	c.sink.OnStderr("2")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, revs, 5)
	for i := 1; i < len(revs); i++ {
		assert.Greater(t, revs[i], revs[i-1])
	}
	assert.Equal(t, revs[len(revs)-1], b.State().Revision)
}

func TestConcurrentStaleOutput(t *testing.T) {
	f := &fakeFactory{}
	b := newTestBinding(f)
	require.NoError(t, b.Configure(Config{Env: "old"}))
	old := f.last(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			old.sink.OnStdout("old")
		}
	}()
	require.NoError(t, b.Configure(Config{Env: "new"}))
	wg.Wait()

	cur := f.last(t)
	for i := 0; i < 10; i++ {
		cur.sink.OnStdout("new")
	}
	st := b.State()
	assert.NotContains(t, st.Stdout, "old")
	assert.Len(t, st.Stdout, 10)
}
