package mock

import (
	"errors"
	"sync"

	"github.com/devbook-dev/devbook/internal/session"
)

// Recorder hands out clients that emit nothing on their own. Tests drive
// them through RecordedClient.Sink.
type Recorder struct {
	mu      sync.Mutex
	clients []*RecordedClient
	// Err, if set, fails the next construction and is then cleared.
	Err error
}

// Factory implements session.Factory.
func (r *Recorder) Factory(cfg session.Config, sink session.EventSink) (session.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		err := r.Err
		r.Err = nil
		return nil, err
	}
	c := &RecordedClient{Config: cfg, Sink: sink}
	r.clients = append(r.clients, c)
	return c, nil
}

// Clients returns every client built so far, oldest first.
func (r *Recorder) Clients() []*RecordedClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*RecordedClient(nil), r.clients...)
}

// Last returns the newest client.
func (r *Recorder) Last() (*RecordedClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		return nil, errors.New("no client constructed")
	}
	return r.clients[len(r.clients)-1], nil
}

// RecordedClient records what the binding asks of it.
type RecordedClient struct {
	Config session.Config
	Sink   session.EventSink

	mu        sync.Mutex
	commands  []string
	destroyed int
}

func (c *RecordedClient) RunCommand(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
}

func (c *RecordedClient) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
}

func (c *RecordedClient) FS() any { return nil }

// Commands returns the commands received so far.
func (c *RecordedClient) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Destroyed reports how many times Destroy was called.
func (c *RecordedClient) Destroyed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
