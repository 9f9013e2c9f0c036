package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devbook-dev/devbook/internal/session"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	dialTimeout        = 10 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

var errNotConnected = errors.New("not connected")

// Option configures a WSClient.
type Option func(*WSClient)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *WSClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *WSClient) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewDialer returns a dialer that honours proxy environment variables and
// bounds the handshake by timeout.
func NewDialer(timeout time.Duration) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
}

// WithReconnect sets the backoff bounds used after a connection drops.
func WithReconnect(initial, max time.Duration) Option {
	return func(c *WSClient) {
		if initial > 0 {
			c.reconnectBase = initial
		}
		if max > 0 {
			c.reconnectMax = max
		}
	}
}

// WSClient is a session client for one environment. It keeps the socket
// open until Destroy, redialing with exponential backoff when it drops.
type WSClient struct {
	url   string
	token string
	env   string
	debug bool

	sink          session.EventSink
	logger        *slog.Logger
	dialer        *websocket.Dialer
	reconnectBase time.Duration
	reconnectMax  time.Duration
	fs            *FS

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes except control frames
	conn    *websocket.Conn
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// Factory adapts Dial to session.Factory. ctx bounds each initial dial.
func Factory(ctx context.Context, opts ...Option) session.Factory {
	return func(cfg session.Config, sink session.EventSink) (session.Client, error) {
		c, err := Dial(ctx, cfg, sink, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Dial connects to the environment named by cfg and starts streaming its
// events into sink. A failed first connection is returned as a
// *session.ConnectionError; later drops are retried in the background.
func Dial(ctx context.Context, cfg session.Config, sink session.EventSink, opts ...Option) (*WSClient, error) {
	sessionID := uuid.NewString()
	wsURL, err := SessionURL(cfg, sessionID)
	if err != nil {
		return nil, &session.ConnectionError{Env: cfg.Env, Err: err}
	}

	c := &WSClient{
		url:           wsURL,
		token:         cfg.Remote.Token,
		env:           cfg.Env,
		debug:         cfg.Debug,
		sink:          sink,
		logger:        slog.Default(),
		dialer:        websocket.DefaultDialer,
		reconnectBase: reconnectBaseDelay,
		reconnectMax:  reconnectMaxDelay,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("env", cfg.Env, "session", sessionID)

	timeout := cfg.Remote.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.fs = NewFS(DeriveHTTPBase(wsURL), cfg.Env, cfg.Remote.Token, &http.Client{Timeout: timeout})

	// The connection outlives the dial context.
	c.ctx, c.cancel = context.WithCancel(context.Background())

	sink.OnStatusChange(session.Connecting)
	conn, err := c.connect(ctx)
	if err != nil {
		c.cancel()
		close(c.done)
		sink.OnStatusChange(session.Disconnected)
		return nil, &session.ConnectionError{Env: cfg.Env, Err: err}
	}
	if !c.attach(conn) {
		close(c.done)
		return nil, &session.ConnectionError{Env: cfg.Env, Err: context.Canceled}
	}
	c.logger.Info("session connected", "url", wsURL)
	sink.OnStatusChange(session.Connected)

	go c.run(conn)
	return c, nil
}

func (c *WSClient) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	// The connection isn't shared yet, so no write mutex is needed.
	if c.token != "" {
		data, err := encode(MsgAuth, AuthPayload{Token: c.token})
		if err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = conn.WriteMessage(websocket.TextMessage, data)
		}
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}
	return conn, nil
}

// attach makes conn the active connection and starts its ping loop. It
// reports false, closing conn, if the client was destroyed meanwhile.
func (c *WSClient) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		conn.Close()
		return false
	}
	if c.pingCtx != nil {
		c.pingCtx()
	}
	pingCtx, pingCancel := context.WithCancel(c.ctx)
	c.conn = conn
	c.pingCtx = pingCancel

	go c.pingLoop(pingCtx, conn)
	return true
}

// run reads from conn until it fails, then redials until destroyed.
func (c *WSClient) run(conn *websocket.Conn) {
	defer close(c.done)
	for {
		err := c.readLoop(conn)
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("session connection lost", "err", err)
		c.sink.OnStatusChange(session.Disconnected)

		conn, err = c.redial()
		if err != nil {
			return
		}
		c.logger.Info("session reconnected")
		c.sink.OnStatusChange(session.Connected)
	}
}

func (c *WSClient) redial() (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.reconnectBase
	b.MaxInterval = c.reconnectMax
	b.Reset()

	for {
		c.sink.OnStatusChange(session.Connecting)
		conn, err := c.connect(c.ctx)
		if err == nil {
			if !c.attach(conn) {
				return nil, context.Canceled
			}
			return conn, nil
		}
		delay := b.NextBackOff()
		c.logger.Warn("session redial failed", "err", err, "retry_in", delay)
		c.sink.OnStatusChange(session.Disconnected)

		t := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return nil, c.ctx.Err()
		case <-t.C:
		}
	}
}

func (c *WSClient) readLoop(conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			return err
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropped malformed frame", "err", err)
			continue
		}

		c.dispatch(msg)
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(msg WSMessage) {
	c.trace("frame received", "type", msg.Type, "seq", msg.Seq)

	switch msg.Type {
	case MsgStatus:
		var p StatusPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.sink.OnStatusChange(p.Status)
		}
	case MsgStdout:
		var p OutputPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.sink.OnStdout(p.Line)
		}
	case MsgStderr:
		var p OutputPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.sink.OnStderr(p.Line)
		}
	case MsgURL:
		var p URLPayload
		if json.Unmarshal(msg.Payload, &p) == nil && p.Host != "" {
			host := p.Host
			c.sink.OnURLChange(func(port int) string { return PortURL(host, port) })
		}
	case MsgError:
		var p ErrorPayload
		json.Unmarshal(msg.Payload, &p)
		c.logger.Warn("environment reported error", "message", p.Message)
	default:
		c.logger.Debug("ignored frame", "type", msg.Type)
	}
}

// RunCommand sends command to the environment. Delivery failures are logged;
// the outcome is only observable through the sink.
func (c *WSClient) RunCommand(command string) {
	id := uuid.NewString()
	c.trace("run command", "id", id, "command", command)
	if err := c.send(MsgRun, RunPayload{ID: id, Command: command}); err != nil {
		c.logger.Warn("run command not sent", "id", id, "err", err)
	}
}

func (c *WSClient) send(t MessageType, payload any) error {
	data, err := encode(t, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Destroy closes the connection and stops reconnecting. It is idempotent.
func (c *WSClient) Destroy() {
	c.once.Do(func() {
		c.mu.Lock()
		c.cancel()
		conn := c.conn
		c.conn = nil
		if c.pingCtx != nil {
			c.pingCtx()
		}
		c.mu.Unlock()

		if conn != nil {
			// WriteControl and Close are safe alongside the reader.
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
		}
		c.logger.Info("session destroyed")
	})
}

// Done is closed once the client's background goroutine has exited.
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// FS returns the client's *FS.
func (c *WSClient) FS() any {
	return c.fs
}

// trace logs protocol detail, promoted to info when the session runs in
// debug mode.
func (c *WSClient) trace(msg string, args ...any) {
	if c.debug {
		c.logger.Info(msg, args...)
		return
	}
	c.logger.Debug(msg, args...)
}

func encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(WSMessage{Type: t, Payload: raw})
}

// SessionURL builds the websocket URL for cfg. http(s) endpoints are
// converted to ws(s).
func SessionURL(cfg session.Config, sessionID string) (string, error) {
	if cfg.Env == "" || strings.ContainsAny(cfg.Env, "/?#") {
		return "", fmt.Errorf("invalid environment %q", cfg.Env)
	}
	u, err := url.Parse(cfg.Remote.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", cfg.Remote.Endpoint)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/envs/" + cfg.Env + "/ws"
	q := u.Query()
	q.Set("debug", strconv.FormatBool(cfg.Debug))
	if sessionID != "" {
		q.Set("session", sessionID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PortURL is the public address of port on an environment exposed at host.
func PortURL(host string, port int) string {
	return fmt.Sprintf("https://%d-%s", port, host)
}

// DeriveHTTPBase converts ws://host:port/... to http://host:port.
func DeriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") || u.Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
