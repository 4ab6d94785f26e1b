package sfs

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pior/sfs/bluebox"
	"github.com/pior/sfs/internal/coarsetime"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Version is the client API version.
const Version = "1.6.0"

// protocolVersion is announced to the server right after connecting.
const protocolVersion = "160"

// ActiveRoom stands for the currently joined room in request methods.
const ActiveRoom = -1

// ConnectionMode reports which transport carries the session.
type ConnectionMode string

const (
	ModeDisconnected ConnectionMode = "disconnected"
	ModeSocket       ConnectionMode = "socket"
	ModeHTTP         ConnectionMode = "http"
)

// Client is a session with a game server. It owns the transport, the room
// directory, the buddy list and the event dispatcher.
//
// Inbound messages are handled one at a time, whichever transport they
// arrive on. Entities handed to the application may be read concurrently
// with that processing.
type Client struct {
	id         string
	logger     zerolog.Logger
	baseLogger zerolog.Logger
	stats      *clientStatsCollector
	events     *dispatcher
	handlers   map[string]MessageHandler

	separator   atomic.Uint32
	lastMessage atomic.Int64

	newBreaker func(string) *gobreaker.CircuitBreaker[net.Conn]
	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[net.Conn]

	// transport
	connMu     sync.Mutex
	config     Config
	mode       ConnectionMode
	connecting bool
	sock       *Connection
	tunnel     *bluebox.Conn

	// held while a handler processes a message
	inbound sync.Mutex

	// session
	mu           sync.RWMutex
	connected    bool
	changingRoom bool
	moderator    bool
	playerID     int
	activeRoomID int
	myUserID     int
	myUserName   string
	rooms        map[int]*Room
	buddies      []*Buddy
	myBuddyVars  map[string]string
	benchStart   time.Time
}

// NewClient creates a disconnected client.
func NewClient(config Config) (*Client, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	if config.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}

	id := uuid.NewString()
	base := logger.With().Str("client_id", id).Logger()
	stats := newClientStatsCollector()

	c := &Client{
		id:         id,
		logger:     base.With().Str("component", "client").Logger(),
		baseLogger: base,
		stats:      stats,
		events:     newDispatcher(config.Dispatch, base.With().Str("component", "events").Logger(), stats),
		newBreaker: config.NewCircuitBreaker,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[net.Conn]),
		config:     config,
		mode:       ModeDisconnected,
	}
	c.separator.Store(uint32(config.Separator))
	c.handlers = map[string]MessageHandler{
		wire.HandlerSys: newSysHandler(c),
		wire.HandlerExt: newExtHandler(c),
	}
	c.resetSession(false)

	return c, nil
}

// ID returns the client instance id used in logs and metrics.
func (c *Client) ID() string {
	return c.id
}

// Stats returns a snapshot of the client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// Handle registers fn as the consumer of events of type t, replacing any
// previous one. A nil fn unregisters.
func (c *Client) Handle(t EventType, fn func(Event)) {
	c.events.handle(t, fn)
}

// On registers a typed consumer:
//
//	sfs.On(client, func(e *sfs.JoinRoomEvent) { ... })
func On[E Event](c *Client, fn func(E)) {
	var zero E
	c.events.handle(zero.Type(), func(evt Event) {
		if e, ok := evt.(E); ok {
			fn(e)
		}
	})
}

// ProcessEventQueue delivers every queued event and returns how many were
// delivered. It is a no-op in DispatchImmediate mode.
func (c *Client) ProcessEventQueue() int {
	return c.events.processAll()
}

// ProcessSingleEvent delivers the oldest queued event, if any.
func (c *Client) ProcessSingleEvent() bool {
	return c.events.processOne()
}

// QueueLen returns the number of events waiting in the queue.
func (c *Client) QueueLen() int {
	return c.events.len()
}

func (c *Client) dispatch(evt Event) {
	c.events.dispatch(evt)
}

// ConnectionMode returns the transport in use.
func (c *Client) ConnectionMode() ConnectionMode {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.mode
}

// IsConnected reports whether the server accepted the connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) MyUserID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.myUserID
}

func (c *Client) MyUserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.myUserName
}

func (c *Client) IsModerator() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.moderator
}

// PlayerID returns the player slot in the active game room, -1 when
// spectating.
func (c *Client) PlayerID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// ActiveRoomID returns the id of the last joined room, -1 if none.
func (c *Client) ActiveRoomID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeRoomID
}

// LastMessageAt returns when the last message was received.
func (c *Client) LastMessageAt() time.Time {
	ns := c.lastMessage.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// IdleFor returns how long the client has gone without receiving a
// message, zero if none was ever received.
func (c *Client) IdleFor() time.Duration {
	last := c.LastMessageAt()
	if last.IsZero() {
		return 0
	}
	return coarsetime.Since(last)
}

// Version returns the client API version.
func (c *Client) Version() string {
	return Version
}

// resetSession clears the session state. A logout keeps the connection
// flag since the transport stays up.
func (c *Client) resetSession(logout bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changingRoom = false
	c.moderator = false
	c.playerID = wire.DefaultInt
	c.activeRoomID = wire.DefaultInt
	c.myUserID = wire.DefaultInt
	c.myUserName = ""
	c.rooms = make(map[int]*Room)
	c.buddies = nil
	c.myBuddyVars = make(map[string]string)
	if !logout {
		c.connected = false
	}
}

func (c *Client) settings() Config {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.config
}

// Connect opens a socket to the server and announces the protocol version.
// When the socket cannot be opened and SmartConnect is enabled, the HTTP
// tunnel is tried instead.
//
// The outcome is reported by exactly one ConnectionEvent: sent by the server
// once it accepts the version, or dispatched locally when no transport could
// be opened, in which case the error is also returned.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.mode != ModeDisconnected || c.connecting {
		c.connMu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	cfg := c.config
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		c.connecting = false
		c.connMu.Unlock()
	}()

	c.resetSession(false)

	addr := serverAddr(cfg)
	conn, err := c.dial(ctx, cfg, addr)
	if err == nil {
		c.stats.recordSocketConnect()
		c.logger.Info().Str("addr", addr).Msg("socket connected")

		var sock *Connection
		sock = newConnection(conn, c.handleMessage, func(err error) {
			c.transportLost(sock, nil, err)
		})

		c.connMu.Lock()
		c.sock = sock
		c.mode = ModeSocket
		c.connMu.Unlock()

		sock.start()
		return c.sendVersionCheck()
	}

	c.logger.Warn().Err(err).Str("addr", addr).Msg("socket connect failed")
	if !cfg.SmartConnect {
		return c.connectFailed(fmt.Errorf("sfs: connect %s: %w", addr, err))
	}

	c.stats.recordFallback()
	return c.connectTunnel(ctx, cfg, addr)
}

func (c *Client) dial(ctx context.Context, cfg Config, addr string) (net.Conn, error) {
	dial := cfg.dial
	if dial == nil {
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialSocket(ctx, addr, cfg.DialTimeout)
		}
	}

	cb := c.breakerFor(addr)
	if cb == nil {
		return dial(ctx, addr)
	}
	return cb.Execute(func() (net.Conn, error) {
		return dial(ctx, addr)
	})
}

func (c *Client) connectTunnel(ctx context.Context, cfg Config, addr string) error {
	url := tunnelURL(cfg, addr)
	c.logger.Info().Str("url", url).Msg("trying http tunnel")

	var tunnel *bluebox.Conn
	var err error
	tunnel, err = bluebox.Dial(ctx, bluebox.Config{
		URL:          url,
		PollInterval: cfg.PollInterval,
		Codec:        cfg.TunnelCodec,
		HTTPClient:   cfg.HTTPClient,
		MaxInFlight:  cfg.TunnelMaxInFlight,
		Logger:       &c.baseLogger,
		OnMessage:    c.handleMessage,
		OnClose: func(err error) {
			c.transportLost(nil, tunnel, err)
		},
	})
	if err != nil {
		return c.connectFailed(fmt.Errorf("sfs: tunnel connect %s: %w", url, err))
	}
	c.stats.recordTunnelConnect()

	c.connMu.Lock()
	c.tunnel = tunnel
	c.mode = ModeHTTP
	c.connMu.Unlock()

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	tunnel.StartPolling()
	return c.sendVersionCheck()
}

func (c *Client) connectFailed(err error) error {
	c.stats.recordConnectFailure()
	c.logger.Error().Err(err).Msg("connection failed")
	c.dispatch(&ConnectionEvent{Success: false, Error: err.Error()})
	return err
}

func (c *Client) sendVersionCheck() error {
	return c.sendXML(wire.HandlerSys, "verChk", 0, "<ver v='"+protocolVersion+"' />")
}

// transportLost handles the death of sock or tunnel. Stale notifications
// from a transport that was already replaced or closed are ignored.
func (c *Client) transportLost(sock *Connection, tunnel *bluebox.Conn, err error) {
	c.connMu.Lock()
	if (sock != nil && c.sock != sock) || (tunnel != nil && c.tunnel != tunnel) {
		c.connMu.Unlock()
		return
	}
	c.sock = nil
	c.tunnel = nil
	c.mode = ModeDisconnected
	c.connMu.Unlock()

	if tunnel != nil {
		_ = tunnel.Close()
	}

	c.logger.Warn().Err(err).Msg("connection lost")
	c.resetSession(false)
	c.dispatch(&ConnectionLostEvent{})
}

// Disconnect closes the transport, clears the session and dispatches a
// ConnectionLostEvent.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	sock, tunnel := c.sock, c.tunnel
	c.sock = nil
	c.tunnel = nil
	c.mode = ModeDisconnected
	c.connMu.Unlock()

	if sock == nil && tunnel == nil {
		return ErrNotConnected
	}

	var err error
	if sock != nil {
		err = sock.Close()
	}
	if tunnel != nil {
		err = tunnel.Close()
	}

	c.logger.Info().Msg("disconnected")
	c.resetSession(false)
	c.dispatch(&ConnectionLostEvent{})
	return err
}

// send writes msg on the active transport.
func (c *Client) send(msg string) error {
	c.connMu.Lock()
	sock, tunnel := c.sock, c.tunnel
	c.connMu.Unlock()

	var err error
	switch {
	case sock != nil:
		err = sock.Send(msg)
	case tunnel != nil:
		err = tunnel.Send(msg)
	default:
		c.logger.Warn().Msg("send while disconnected")
		return ErrNotConnected
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("send failed")
		return err
	}

	c.stats.recordSend()
	c.logger.Debug().Str("msg", msg).Msg("send")
	return nil
}

func (c *Client) sendXML(handler, action string, room int, body string) error {
	return c.send(wire.BuildXML(handler, action, room, body))
}

func (c *Client) serverAddr() string {
	return serverAddr(c.settings())
}

func serverAddr(cfg Config) string {
	if len(cfg.Servers) > 0 {
		return cfg.Servers[cfg.SelectServer(cfg.Zone, len(cfg.Servers))]
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

func tunnelURL(cfg Config, socketAddr string) string {
	host := cfg.BlueBoxHost
	if host == "" {
		host = cfg.Host
	}
	if host == "" {
		host, _, _ = net.SplitHostPort(socketAddr)
	}
	port := cfg.BlueBoxPort
	if port == 0 {
		port = cfg.HTTPPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
