package sfs

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/sfs/internal/coarsetime"
	"github.com/pior/sfs/wire"
)

var (
	ErrConnectionClosed = errors.New("sfs: connection closed")
)

const readBufferSize = 4096

// Connection is a socket transport. Messages are terminated by wire.EOM in
// both directions.
type Connection struct {
	addr      string
	conn      net.Conn
	framer    *wire.Framer
	onMessage func(string)
	onClose   func(error)

	mu       sync.Mutex // serializes writes
	closed   atomic.Bool
	lastUsed atomic.Int64
	done     chan struct{}
}

// dialSocket opens a TCP connection to addr.
func dialSocket(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// newConnection wraps conn. onMessage receives every complete message in
// order from the reader goroutine; onClose is called once if the peer or
// the network ends the connection, never after Close.
func newConnection(conn net.Conn, onMessage func(string), onClose func(error)) *Connection {
	c := &Connection{
		addr:      conn.RemoteAddr().String(),
		conn:      conn,
		framer:    wire.NewFramer(),
		onMessage: onMessage,
		onClose:   onClose,
		done:      make(chan struct{}),
	}
	c.touch()
	return c
}

// start launches the reader goroutine.
func (c *Connection) start() {
	go c.readLoop()
}

func (c *Connection) readLoop() {
	defer close(c.done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.touch()
			for _, msg := range c.framer.Feed(buf[:n]) {
				c.onMessage(msg)
			}
		}
		if err == nil && n == 0 {
			err = io.EOF
		}
		if err != nil {
			if c.closed.CompareAndSwap(false, true) {
				_ = c.conn.Close()
				if c.onClose != nil {
					c.onClose(err)
				}
			}
			return
		}
	}
}

// Send writes msg followed by the end-of-message byte.
func (c *Connection) Send(msg string) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame := make([]byte, 0, len(msg)+1)
	frame = append(frame, msg...)
	frame = append(frame, wire.EOM)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return err
	}
	c.touch()
	return nil
}

// Close closes the socket. The reader goroutine exits without calling
// onClose.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// Done is closed when the reader goroutine has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// IsClosed returns whether the connection is closed
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Addr returns the remote address
func (c *Connection) Addr() string {
	return c.addr
}

// LastUsed returns when data was last read or written.
func (c *Connection) LastUsed() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}

func (c *Connection) touch() {
	c.lastUsed.Store(coarsetime.Now().UnixNano())
}
