// Package natsclient wraps the NATS connection shared by every node of
// a Context: core pub/sub for volatile topics, JetStream streams for
// transient-local caching, request/reply for services, and a key-value
// bucket for liveliness announcements.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jazi007/oxidros/errors"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client manages one NATS connection and the JetStream resources built
// on it. A Client is shared by every node derived from the same
// Context; all methods are safe for concurrent use.
type Client struct {
	url    string
	status atomic.Value // stores ConnectionStatus
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	js        jetstream.JetStream
	kv        jetstream.KeyValue
	announced map[string]struct{}

	// Connection options
	name          string
	timeout       time.Duration
	drainTimeout  time.Duration
	maxReconnects int
	reconnectWait time.Duration
	username      string
	password      string
	token         string

	closeMu sync.Mutex
	closed  atomic.Bool
}

// New creates a client for the given server URL. The client does not
// connect until Connect is called.
func New(url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		timeout:       5 * time.Second,
		drainTimeout:  10 * time.Second,
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "New", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")
	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the server URL this client targets.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	v := c.status.Load()
	if v == nil {
		return StatusDisconnected
	}
	return v.(ConnectionStatus)
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

func (c *Client) setStatus(s ConnectionStatus) { c.status.Store(s) }

// Connect establishes the connection and initializes JetStream. An
// unreachable server is a fatal startup condition, not a retryable one.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Debug("connecting", "url", c.url)

	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if !c.closed.Load() {
				c.setStatus(StatusDisconnected)
				c.logger.Warn("connection closed")
			}
		}),
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		done <- result{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			return errors.WrapFatal(errors.ErrConnection, "Client", "Connect", "establish connection to "+c.url)
		}
		js, err := jetstream.New(r.conn)
		if err != nil {
			r.conn.Close()
			c.setStatus(StatusDisconnected)
			return errors.WrapFatal(err, "Client", "Connect", "initialize jetstream")
		}
		c.mu.Lock()
		c.conn = r.conn
		c.js = js
		c.mu.Unlock()
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		return errors.WrapFatal(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.logger.Info("connected", "url", c.url)
	return nil
}

// Conn returns the underlying NATS connection, nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// JetStream returns the JetStream handle, nil before Connect.
func (c *Client) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// Publish sends a message with headers on the subject.
func (c *Client) Publish(subject string, header nats.Header, data []byte) error {
	conn := c.Conn()
	if conn == nil {
		return errors.WrapFatal(errors.ErrConnection, "Client", "Publish", "not connected")
	}
	msg := &nats.Msg{Subject: subject, Header: header, Data: data}
	if err := conn.PublishMsg(msg); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// Subscribe registers an async handler on the subject. The subject may
// contain wildcard tokens.
func (c *Client) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.WrapFatal(errors.ErrConnection, "Client", "Subscribe", "not connected")
	}
	sub, err := conn.Subscribe(subject, handler)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Subscribe", "subscribe to "+subject)
	}
	return sub, nil
}

// Request performs a request/reply exchange on the subject, carrying
// headers both ways.
func (c *Client) Request(ctx context.Context, subject string, header nats.Header, data []byte) (*nats.Msg, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.WrapFatal(errors.ErrConnection, "Client", "Request", "not connected")
	}
	msg := &nats.Msg{Subject: subject, Header: header, Data: data}
	reply, err := conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Request", "request to "+subject)
	}
	return reply, nil
}

// Close drains the connection and releases all resources. Safe to call
// more than once.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}
	c.setStatus(StatusClosed)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.kv = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return errors.WrapTransient(err, "Client", "Close", "drain connection")
	}
	return nil
}
