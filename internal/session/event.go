package session

import (
	"errors"
	"fmt"
	"time"
)

// Remote carries the settings a client needs to reach its environment.
// Changing it alone does not trigger reconnection.
type Remote struct {
	Endpoint    string
	Token       string
	HTTPTimeout time.Duration
}

// Config describes the session a binding should maintain. Port is optional;
// zero means no port is targeted and no URL will be resolved.
type Config struct {
	Env    string
	Debug  bool
	Port   int
	Remote Remote
}

// Key is the subset of Config whose change replaces the session client.
type Key struct {
	Env   string
	Debug bool
	Port  int
}

// Key returns the reconnection key of c.
func (c Config) Key() Key {
	return Key{Env: c.Env, Debug: c.Debug, Port: c.Port}
}

// URLResolver maps a port on the environment to a URL that reaches it.
type URLResolver func(port int) string

// EventSink receives the callbacks a session client emits. Callbacks from a
// single client are delivered in order.
type EventSink interface {
	OnStatusChange(status Status)
	OnStdout(line string)
	OnStderr(line string)
	OnURLChange(resolve URLResolver)
}

// Client is a live connection to a remote environment. RunCommand is fire and
// forget: output arrives through the EventSink the client was built with.
// Destroy releases the connection.
type Client interface {
	RunCommand(command string)
	Destroy()
	// FS returns the client's filesystem handle. Callers treat it as opaque.
	FS() any
}

// Factory builds a client for cfg that reports to sink.
type Factory func(cfg Config, sink EventSink) (Client, error)

// ErrDisposed is returned by Configure after Dispose.
var ErrDisposed = errors.New("session binding disposed")

// ConnectionError reports that a client could not be constructed.
type ConnectionError struct {
	Env string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to environment %q: %v", e.Env, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
