// Package transport carries control-channel text frames between the device
// and its coordinator over a WebSocket connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize    = 16
	DefaultWriteTimeout = 5 * time.Second
	DefaultDialTimeout  = 10 * time.Second
)

var (
	// ErrNotConnected indicates no open connection to the coordinator
	ErrNotConnected = errors.New("channel not connected")

	// ErrInvalidAddress indicates a coordinator address that cannot be dialed
	ErrInvalidAddress = errors.New("invalid coordinator address")
)

// Client is a reconnectable WebSocket client. Inbound frames from every
// connection it makes are delivered on one bounded queue.
type Client struct {
	address      string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	queue        chan string

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithQueueSize sets the inbound queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queue = make(chan string, n)
		}
	}
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// NewClient creates a client for address. Call Connect to dial.
func NewClient(address string, opts ...Option) (*Client, error) {
	u, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	c := &Client{
		address:      u,
		dialer:       &websocket.Dialer{HandshakeTimeout: DefaultDialTimeout},
		writeTimeout: DefaultWriteTimeout,
		queue:        make(chan string, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeAddress turns a bare host:port into ws://host:port/ and checks
// that the scheme is ws or wss.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrInvalidAddress
	}
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Address returns the normalized coordinator URL.
func (c *Client) Address() string {
	return c.address
}

// Messages returns the inbound frame queue.
func (c *Client) Messages() <-chan string {
	return c.queue
}

// Connect dials the coordinator, replacing any existing connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.address, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	log.Debug().Str("address", c.address).Msg("Channel dialed")
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				log.Debug().Err(err).Msg("Channel read ended")
			}
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		select {
		case c.queue <- string(data):
		default:
			log.Warn().Int("capacity", cap(c.queue)).Msg("Inbound queue full, dropping frame")
		}
	}
}

// Send writes text as a single text frame.
func (c *Client) Send(text string) error {
	return c.write(func(conn *websocket.Conn, deadline time.Time) error {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, []byte(text))
	})
}

// Ping sends a WebSocket ping control frame.
func (c *Client) Ping() error {
	return c.write(func(conn *websocket.Conn, deadline time.Time) error {
		return conn.WriteControl(websocket.PingMessage, nil, deadline)
	})
}

func (c *Client) write(fn func(*websocket.Conn, time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := fn(c.conn, time.Now().Add(c.writeTimeout)); err != nil {
		c.closeLocked()
		return fmt.Errorf("channel write: %w", err)
	}
	return nil
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the current connection, if any. The client can be
// reconnected afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
	c.conn = nil
}
