package testutils

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is an in-memory net.Conn standing in for a game server.
// Reads block until data is fed, the peer hangs up, or the mock is closed.
type ConnectionMock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	closed   bool
	hungUp   bool
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	m := &ConnectionMock{}
	m.cond = sync.NewCond(&m.mu)
	m.readBuf.WriteString(strings.Join(responseData, ""))
	return m
}

// Feed makes data available to Read.
func (m *ConnectionMock) Feed(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.WriteString(data)
	m.cond.Broadcast()
}

// HangUp makes Read return io.EOF once pending data is consumed.
func (m *ConnectionMock) HangUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hungUp = true
	m.cond.Broadcast()
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.readBuf.Len() == 0 && !m.closed && !m.hungUp {
		m.cond.Wait()
	}
	if m.closed {
		return 0, net.ErrClosed
	}
	if m.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9339}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// WrittenMessages returns the messages written so far, split on the
// 0x00 terminator.
func (m *ConnectionMock) WrittenMessages() []string {
	raw := m.GetWrittenRequest()
	if raw == "" {
		return nil
	}
	msgs := strings.Split(raw, "\x00")
	if msgs[len(msgs)-1] == "" {
		msgs = msgs[:len(msgs)-1]
	}
	return msgs
}
