package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go-canvas/pkg/canvas"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the relay. A full board snapshot is
	// roughly 2500 pixels.
	maxMessageSize = 1 << 20

	// Query parameter carrying the participant id on connect.
	ParticipantParam = "userId"
)

var (
	ErrNotOpen    = errors.New("channel not open")
	ErrClosed     = errors.New("channel closed")
	ErrBufferFull = errors.New("send buffer full")
)

// State is the lifecycle position of a Channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Channel.
type Options struct {
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
	SendBuffer int
}

// Channel is one duplex websocket stream to the relay. It is single use: a
// reconnect is a new Channel.
type Channel struct {
	dialer *websocket.Dialer
	log    *zap.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	handler func([]byte)
	err     error

	// Buffered channel of outbound frames.
	send chan []byte

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Channel{
		dialer: opts.Dialer,
		log:    opts.Logger,
		send:   make(chan []byte, opts.SendBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Endpoint appends the participant id to the relay URL.
func Endpoint(base string, id canvas.ParticipantID) (string, error) {
	u, err := url.Parse(base)
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
		return "", fmt.Errorf("endpoint %q: unsupported scheme %q", base, u.Scheme)
	}
	q := u.Query()
	q.Set(ParticipantParam, string(id))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OnMessage registers the single inbound dispatcher. Frames are delivered one
// at a time, in arrival order, on the channel's read goroutine. It must be
// set before Open.
func (c *Channel) OnMessage(h func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Open dials the relay as id and starts pumping frames.
func (c *Channel) Open(ctx context.Context, endpoint string, id canvas.ParticipantID) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("open: channel is %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	target, err := Endpoint(endpoint, id)
	if err != nil {
		c.shutdown(err)
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		err = fmt.Errorf("dial %s: %w", endpoint, err)
		c.shutdown(err)
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.log.Info("channel open", zap.String("endpoint", endpoint), zap.String("participant", string(id)))

	go c.writePump(conn)
	go c.readPump(conn)
	return nil
}

// Send encodes v as JSON and queues it. When the channel is not open the
// message is dropped and ErrNotOpen returned; nothing is retried.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return ErrNotOpen
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("send buffer full, dropping frame", zap.Int("bytes", len(data)))
		return ErrBufferFull
	}
}

// Close releases the connection. It is safe to call more than once and from
// any goroutine.
func (c *Channel) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the channel has stopped for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the channel stopped. It is nil after an explicit Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.err = cause
		conn := c.conn
		c.mu.Unlock()

		close(c.quit)
		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
		}

		if cause != nil {
			c.log.Warn("channel dropped", zap.Error(cause))
		} else {
			c.log.Info("channel closed")
		}
		close(c.done)
	})
}

// readPump delivers inbound frames to the handler until the connection fails.
func (c *Channel) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(fmt.Errorf("relay closed connection: %w", err))
			} else {
				c.shutdown(fmt.Errorf("read: %w", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		c.mu.Lock()
		open := c.state == StateOpen
		h := c.handler
		c.mu.Unlock()
		if !open {
			return
		}
		if h != nil {
			h(data)
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Channel) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.quit:
			return
		}
	}
}
