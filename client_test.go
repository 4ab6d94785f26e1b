package sfs

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pior/sfs/internal/testutils"
	"github.com/pior/sfs/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEventTypes = []EventType{
	EventConnection, EventConnectionLost, EventLogin, EventLogout,
	EventRoomListUpdate, EventUserCountChange, EventJoinRoom, EventJoinRoomError,
	EventUserEnterRoom, EventUserLeaveRoom, EventPublicMessage, EventPrivateMessage,
	EventModeratorMessage, EventAdminMessage, EventObjectReceived,
	EventRoomVariablesUpdate, EventUserVariablesUpdate, EventRoomAdded, EventRoomDeleted,
	EventRandomKey, EventRoundTripResponse, EventCreateRoomError,
	EventBuddyList, EventBuddyListError, EventBuddyListUpdate, EventBuddyPermissionRequest,
	EventBuddyRoom, EventRoomLeft, EventSpectatorSwitched, EventPlayerSwitched,
	EventExtensionResponse, EventConfigLoadSuccess, EventConfigLoadFailure,
}

func newTestClient(t *testing.T, config Config) *Client {
	t.Helper()
	c, err := NewClient(config)
	require.NoError(t, err)
	return c
}

// recorder collects every event delivered to a client.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(c *Client) *recorder {
	r := &recorder{}
	for _, t := range allEventTypes {
		c.Handle(t, r.add)
	}
	return r
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func eventsOf[E Event](r *recorder) []E {
	var out []E
	for _, e := range r.all() {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}

func lastEvent[E Event](t *testing.T, r *recorder) E {
	t.Helper()
	events := eventsOf[E](r)
	require.NotEmpty(t, events, "no event of type %T", *new(E))
	return events[len(events)-1]
}

func sysMsg(action string, room int, body string) string {
	return wire.BuildXML(wire.HandlerSys, action, room, body)
}

// connectMock connects a client with immediate dispatch to an in-memory
// server connection.
func connectMock(t *testing.T, cfg Config) (*Client, *testutils.ConnectionMock, *recorder) {
	t.Helper()

	mock := testutils.NewConnectionMock()
	if cfg.Host == "" && len(cfg.Servers) == 0 {
		cfg.Host = "127.0.0.1"
	}
	cfg.Dispatch = DispatchImmediate
	cfg.dial = func(context.Context, string) (net.Conn, error) { return mock, nil }

	c := newTestClient(t, cfg)
	rec := record(c)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, mock, rec
}

const (
	roomListBody = `<rmList>` +
		`<rm id='1' priv='0' temp='0' game='0' ucnt='2' scnt='0' maxu='50' maxs='0' lmb='1'><n><![CDATA[Lobby]]></n><vars /></rm>` +
		`<rm id='2' priv='0' temp='1' game='1' ucnt='1' scnt='1' maxu='4' maxs='2' lmb='0'><n><![CDATA[Arena]]></n>` +
		`<vars><var n='score' t='n'><![CDATA[10]]></var></vars></rm>` +
		`</rmList>`

	lobbyJoinBody = `<pid id='-1' /><vars /><uLs r='1'>` +
		`<u i='1' m='0' s='0' p='-1'><n><![CDATA[alice]]></n><vars /></u>` +
		`<u i='2' m='1' s='0' p='-1'><n><![CDATA[bob]]></n><vars><var n='level' t='n'><![CDATA[3]]></var></vars></u>` +
		`</uLs>`
)

// joinLobby drives a connected client through login, room list and join of
// room 1 as alice, with bob already in the room.
func joinLobby(t *testing.T, c *Client, mock *testutils.ConnectionMock) {
	t.Helper()
	c.handleMessage(sysMsg("apiOK", 0, ""))
	c.handleMessage(sysMsg("logOK", 0, "<login n='alice' id='1' mod='0' />"))
	c.handleMessage(sysMsg("rmList", -1, roomListBody))
	require.NoError(t, c.JoinRoom(1))
	c.handleMessage(sysMsg("joinOK", 1, lobbyJoinBody))
	require.Equal(t, 1, c.ActiveRoomID())
}

// lastWritten returns the last message the client wrote to the mock.
func lastWritten(t *testing.T, mock *testutils.ConnectionMock) string {
	t.Helper()
	msgs := mock.WrittenMessages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestNewClient(t *testing.T) {
	c := newTestClient(t, Config{Host: "127.0.0.1"})

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, ModeDisconnected, c.ConnectionMode())
	assert.False(t, c.IsConnected())
	assert.Equal(t, -1, c.ActiveRoomID())
	assert.Equal(t, -1, c.MyUserID())
	assert.Equal(t, Version, c.Version())
	assert.True(t, c.LastMessageAt().IsZero())
	assert.Zero(t, c.IdleFor())
}

func TestNewClient_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"no host", Config{}},
		{"xml separator", Config{Host: "h", Separator: '<'}},
		{"json separator", Config{Host: "h", Separator: '{'}},
		{"port out of range", Config{Host: "h", Port: 70000}},
		{"negative tunnel port", Config{Host: "h", BlueBoxPort: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestConnect_Socket(t *testing.T) {
	c, mock, rec := connectMock(t, Config{})

	assert.Equal(t, ModeSocket, c.ConnectionMode())
	assert.Equal(t,
		[]string{"<msg t='sys'><body action='verChk' r='0'><ver v='160' /></body></msg>"},
		mock.WrittenMessages())

	// the session is only up once the server accepts the version
	assert.False(t, c.IsConnected())
	assert.Empty(t, rec.all())

	c.handleMessage(sysMsg("apiOK", 0, ""))

	assert.True(t, c.IsConnected())
	require.Len(t, rec.all(), 1)
	evt := lastEvent[*ConnectionEvent](t, rec)
	assert.True(t, evt.Success)
	assert.Equal(t, uint64(1), c.Stats().SocketConnects)
}

func TestConnect_ObsoleteAPI(t *testing.T) {
	c, _, rec := connectMock(t, Config{})

	c.handleMessage(sysMsg("apiKO", 0, ""))

	evt := lastEvent[*ConnectionEvent](t, rec)
	assert.False(t, evt.Success)
	assert.Equal(t, "API are obsolete, please upgrade", evt.Error)
	assert.False(t, c.IsConnected())
}

func TestConnect_ReadsFramedMessages(t *testing.T) {
	c, mock, rec := connectMock(t, Config{})

	// the second message is split across reads
	key := sysMsg("rndK", -1, "<k>abc</k>")
	mock.Feed(sysMsg("apiOK", 0, "") + "\x00" + key[:20])
	mock.Feed(key[20:] + "\x00")

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, lastEvent[*ConnectionEvent](t, rec).Success)
	assert.Equal(t, "abc", lastEvent[*RandomKeyEvent](t, rec).Key)
	assert.False(t, c.LastMessageAt().IsZero())
	assert.GreaterOrEqual(t, c.IdleFor(), time.Duration(0))
}

func TestConnect_AlreadyConnected(t *testing.T) {
	c, _, _ := connectMock(t, Config{})

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnect_FailureWithoutFallback(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Dispatch: DispatchImmediate, SmartConnect: false}
	cfg.dial = func(context.Context, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, cfg)
	rec := record(c)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	require.Len(t, rec.all(), 1)
	evt := lastEvent[*ConnectionEvent](t, rec)
	assert.False(t, evt.Success)
	assert.NotEmpty(t, evt.Error)
	assert.Equal(t, ModeDisconnected, c.ConnectionMode())
	assert.Equal(t, uint64(1), c.Stats().ConnectFailures)
	assert.Equal(t, uint64(0), c.Stats().Fallbacks)
}

// blueBoxServer is a minimal tunnel servlet answering the version check.
type blueBoxServer struct {
	mu       sync.Mutex
	received []string
}

const tunnelSessionID = "0123456789abcdef0123456789abcdef"

func (s *blueBoxServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("sfsHttp")
	if payload == "connect" {
		_, _ = w.Write([]byte("#" + tunnelSessionID))
		return
	}

	msg := strings.TrimPrefix(payload, tunnelSessionID)
	s.mu.Lock()
	s.received = append(s.received, msg)
	s.mu.Unlock()

	if strings.Contains(msg, "action='verChk'") {
		_, _ = w.Write([]byte(sysMsg("apiOK", 0, "") + "\n"))
	}
}

func (s *blueBoxServer) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func TestConnect_FallbackToTunnel(t *testing.T) {
	bb := &blueBoxServer{}
	srv := httptest.NewServer(bb)
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := Config{
		Host:         "127.0.0.1",
		BlueBoxPort:  port,
		SmartConnect: true,
		PollInterval: 10 * time.Millisecond,
		Dispatch:     DispatchImmediate,
	}
	cfg.dial = func(context.Context, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, cfg)
	rec := record(c)

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	assert.Equal(t, ModeHTTP, c.ConnectionMode())
	require.Eventually(t, func() bool {
		return len(eventsOf[*ConnectionEvent](rec)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	// one event for the whole attempt, socket failure included
	time.Sleep(50 * time.Millisecond)
	events := eventsOf[*ConnectionEvent](rec)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.True(t, c.IsConnected())

	assert.Contains(t, bb.messages(), "<msg t='sys'><body action='verChk' r='0'><ver v='160' /></body></msg>")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Fallbacks)
	assert.Equal(t, uint64(1), stats.TunnelConnects)
	assert.Equal(t, uint64(0), stats.SocketConnects)
}

func TestConnect_TunnelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := Config{Host: "127.0.0.1", BlueBoxPort: port, SmartConnect: true, Dispatch: DispatchImmediate}
	cfg.dial = func(context.Context, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, cfg)
	rec := record(c)

	require.Error(t, c.Connect(context.Background()))

	events := eventsOf[*ConnectionEvent](rec)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, ModeDisconnected, c.ConnectionMode())
}

func TestConnectionLost(t *testing.T) {
	c, mock, rec := connectMock(t, Config{})
	joinLobby(t, c, mock)
	rec.reset()

	mock.HangUp()

	require.Eventually(t, func() bool {
		return len(eventsOf[*ConnectionLostEvent](rec)) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, ModeDisconnected, c.ConnectionMode())
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.Rooms())
	assert.Equal(t, -1, c.ActiveRoomID())
	assert.ErrorIs(t, c.GetRoomList(), ErrNotConnected)
}

func TestDisconnect(t *testing.T) {
	c, mock, rec := connectMock(t, Config{})
	c.handleMessage(sysMsg("apiOK", 0, ""))
	rec.reset()

	require.NoError(t, c.Disconnect())

	assert.True(t, mock.IsClosed())
	assert.Len(t, eventsOf[*ConnectionLostEvent](rec), 1)
	assert.Equal(t, ModeDisconnected, c.ConnectionMode())
	assert.False(t, c.IsConnected())

	assert.ErrorIs(t, c.Disconnect(), ErrNotConnected)
	assert.ErrorIs(t, c.GetRandomKey(), ErrNotConnected)

	// closing locally never reports a second loss
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, eventsOf[*ConnectionLostEvent](rec), 1)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	var mocks []*testutils.ConnectionMock
	cfg := Config{Host: "127.0.0.1", Dispatch: DispatchImmediate}
	cfg.dial = func(context.Context, string) (net.Conn, error) {
		m := testutils.NewConnectionMock()
		mocks = append(mocks, m)
		return m, nil
	}
	c := newTestClient(t, cfg)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	require.Len(t, mocks, 2)
	assert.True(t, mocks[0].IsClosed())
	assert.False(t, mocks[1].IsClosed())
	assert.Len(t, mocks[1].WrittenMessages(), 1)
}

func TestHandleMessage_Malformed(t *testing.T) {
	c, _, rec := connectMock(t, Config{})

	c.handleMessage("<msg t='sys'><body action='apiOK'")
	c.handleMessage("garbage")
	c.handleMessage("<cross-domain-policy><allow-access-from domain='*' /></cross-domain-policy>")
	c.handleMessage(`{"t":"unknown","b":{}}`)

	assert.Empty(t, rec.all())
	stats := c.Stats()
	assert.Equal(t, uint64(4), stats.MessagesReceived)
	assert.Equal(t, uint64(2), stats.DroppedMessages)
	assert.Equal(t, uint64(4), stats.ParseErrors+stats.DroppedMessages)

	// the session survives
	c.handleMessage(sysMsg("apiOK", 0, ""))
	assert.Len(t, eventsOf[*ConnectionEvent](rec), 1)
}

func TestHandleMessage_SysInStringFormat(t *testing.T) {
	c, _, rec := connectMock(t, Config{})

	c.handleMessage("%sys%apiOK%")

	assert.Empty(t, rec.all())
	assert.False(t, c.IsConnected())
}

func TestOn_Typed(t *testing.T) {
	c, _, _ := connectMock(t, Config{})

	var got *RandomKeyEvent
	On(c, func(e *RandomKeyEvent) { got = e })

	c.handleMessage(sysMsg("rndK", -1, "<k>key</k>"))

	require.NotNil(t, got)
	assert.Equal(t, "key", got.Key)
}

func TestQueuedDispatch(t *testing.T) {
	mock := testutils.NewConnectionMock()
	cfg := Config{Host: "127.0.0.1", Dispatch: DispatchQueued}
	cfg.dial = func(context.Context, string) (net.Conn, error) { return mock, nil }
	c := newTestClient(t, cfg)
	rec := record(c)

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	c.handleMessage(sysMsg("apiOK", 0, ""))
	c.handleMessage(sysMsg("rndK", -1, "<k>one</k>"))
	c.handleMessage(sysMsg("rndK", -1, "<k>two</k>"))

	assert.Empty(t, rec.all())
	assert.Equal(t, 3, c.QueueLen())

	assert.True(t, c.ProcessSingleEvent())
	require.Len(t, rec.all(), 1)
	assert.IsType(t, &ConnectionEvent{}, rec.all()[0])

	assert.Equal(t, 2, c.ProcessEventQueue())
	keys := eventsOf[*RandomKeyEvent](rec)
	require.Len(t, keys, 2)
	assert.Equal(t, "one", keys[0].Key)
	assert.Equal(t, "two", keys[1].Key)

	assert.False(t, c.ProcessSingleEvent())
	assert.Equal(t, 0, c.ProcessEventQueue())
}
