package sfs

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer accepts one connection and hands it to serve.
func startServer(t *testing.T, serve func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()
	return listener.Addr().String()
}

type messageSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *messageSink) add(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *messageSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func TestConnection_SendAndReceive(t *testing.T) {
	received := make(chan string, 1)
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
		_, _ = conn.Write([]byte("<a/>\x00<b/>\x00<c"))
		_, _ = conn.Write([]byte("/>\x00"))
		time.Sleep(100 * time.Millisecond)
	})

	netConn, err := dialSocket(context.Background(), addr, time.Second)
	require.NoError(t, err)

	sink := &messageSink{}
	conn := newConnection(netConn, sink.add, nil)
	conn.start()
	defer conn.Close()

	assert.Equal(t, addr, conn.Addr())
	assert.False(t, conn.IsClosed())

	require.NoError(t, conn.Send("<ping/>"))
	select {
	case got := <-received:
		assert.Equal(t, "<ping/>\x00", got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive the message")
	}

	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"<a/>", "<b/>", "<c/>"}, sink.all())
	assert.False(t, conn.LastUsed().IsZero())
}

func TestConnection_PeerClose(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("<bye/>\x00"))
		conn.Close()
	})

	netConn, err := dialSocket(context.Background(), addr, time.Second)
	require.NoError(t, err)

	sink := &messageSink{}
	closed := make(chan error, 1)
	conn := newConnection(netConn, sink.add, func(err error) { closed <- err })
	conn.start()

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("onClose not called")
	}

	<-conn.Done()
	assert.True(t, conn.IsClosed())
	assert.Equal(t, []string{"<bye/>"}, sink.all())
	assert.ErrorIs(t, conn.Send("<late/>"), ErrConnectionClosed)
}

func TestConnection_LocalCloseDoesNotNotify(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	})

	netConn, err := dialSocket(context.Background(), addr, time.Second)
	require.NoError(t, err)

	called := false
	conn := newConnection(netConn, func(string) {}, func(error) { called = true })
	conn.start()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit")
	}
	assert.False(t, called)
}

func TestDialSocket_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = dialSocket(context.Background(), addr, time.Second)
	assert.Error(t, err)
}
