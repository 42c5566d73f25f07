package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the transport handle the broker delivers to. Send must not block.
type Conn interface {
	ID() string
	Send(payload []byte) error
}

// closer is implemented by connections that can be shut down by the hub.
type closer interface {
	Close(code int, reason string)
}

var (
	// ErrConnClosed is returned by Send after the connection was closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Send when a slow client fell behind.
	ErrSendBufferFull = errors.New("connection buffer exceeded")
)

// Close codes sent to clients.
const (
	CloseSlowConsumer = 4008
	CloseShutdown     = websocket.CloseGoingAway
)

// ConnOptions tunes a websocket Connection.
type ConnOptions struct {
	SendBuffer      int
	PingPeriod      time.Duration
	ReadTimeout     time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 128
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.ReadTimeout <= o.PingPeriod {
		o.ReadTimeout = 2 * o.PingPeriod
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	return o
}

// Connection wraps a websocket and coordinates outbound writes via a buffered
// channel. It is safe for concurrent use.
type Connection struct {
	id   string
	ws   *websocket.Conn
	opts ConnOptions

	send  chan []byte
	once  sync.Once
	close chan struct{}
}

// NewConnection constructs a Connection with a fresh id.
func NewConnection(ws *websocket.Conn, opts ConnOptions) *Connection {
	opts = opts.withDefaults()
	return &Connection{
		id:    uuid.NewString(),
		ws:    ws,
		opts:  opts,
		send:  make(chan []byte, opts.SendBuffer),
		close: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer is
// full, the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		// Close performs network writes; keep it off the caller's path.
		go c.Close(CloseSlowConsumer, "send buffer full")
		return ErrSendBufferFull
	}
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} { return c.close }

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		deadline := time.Now().Add(c.opts.WriteWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

// ReadLoop reads text frames until the peer goes away or the read deadline
// lapses, handing each frame to handle. It blocks; the caller unregisters the
// connection once it returns.
func (c *Connection) ReadLoop(handle func(frame []byte)) error {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		if kind != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
