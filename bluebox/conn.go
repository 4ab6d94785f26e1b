package bluebox

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/jackc/puddle/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultPath is the servlet path of the tunnel on the server.
	DefaultPath = "BlueBox/HttpBox.do"

	// ParamName is the form field carrying the encoded payload.
	ParamName = "sfsHttp"

	// PollMessage is sent when there is nothing else to send.
	PollMessage = "poll"

	DefaultPollInterval = 750 * time.Millisecond
	MaxPollInterval     = 10 * time.Second
	DefaultMaxInFlight  = 2

	handshakeMessage  = "connect"
	disconnectMessage = "disconnect"
	connectionLost    = "ERR#01"

	maxResponseSize = 4 << 20
	closeTimeout    = 2 * time.Second
	inboxSize       = 64
)

// Config holds configuration for a tunnel connection.
type Config struct {
	// URL is the base address of the tunnel, e.g. "http://127.0.0.1:8080".
	// Required.
	URL string

	// Path is the servlet path appended to URL.
	// Defaults to DefaultPath.
	Path string

	// PollInterval is the minimum delay between two poll requests.
	// Clamped to [0, MaxPollInterval]. Zero polls as fast as the server answers.
	PollInterval time.Duration

	// Codec multiplexes the session id with payloads.
	// Defaults to RawCodec.
	Codec Codec

	// HTTPClient is used for every request.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// MaxInFlight bounds the number of concurrent requests (sends and polls).
	// Defaults to DefaultMaxInFlight.
	MaxInFlight int32

	// Logger receives transport traffic at debug level and faults at warn level.
	// If nil, logging is disabled.
	Logger *zerolog.Logger

	// OnMessage is called for every message line received, in order, from a
	// single goroutine.
	OnMessage func(msg string)

	// OnClose is called once when the server drops the session or a request
	// fails. It is not called after Close.
	OnClose func(err error)
}

// ClampPollInterval bounds d to the accepted polling range.
func ClampPollInterval(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// lane is a request slot. Holding one is required to issue a request.
type lane struct{}

// Stats contains statistics about a tunnel connection.
type Stats struct {
	Requests     uint64 // Requests issued, handshake included
	Failures     uint64 // Requests that failed at the HTTP level
	Polls        uint64 // Poll requests issued
	InFlight     int32  // Requests currently in flight
	Lanes        int32  // Lanes created so far
	LaneAcquires int64  // Total lane acquisitions
}

// Conn is an HTTP tunnel session. Outbound messages are sent in order by a
// single sender goroutine; inbound lines are delivered by another one.
type Conn struct {
	endpoint     string
	codec        Codec
	http         *http.Client
	logger       zerolog.Logger
	onMessage    func(string)
	onClose      func(error)
	pollInterval time.Duration

	lanes *puddle.Pool[*lane]

	sessionID string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	outbox []string
	wake   chan struct{}

	inbox     chan inbound
	loops     sync.WaitGroup
	pollOnce  sync.Once
	closeOnce sync.Once
	lostOnce  sync.Once
	failed    atomic.Bool

	requests atomic.Uint64
	failures atomic.Uint64
	polls    atomic.Uint64
}

// inbound is a received line, or a terminal error when err is set.
type inbound struct {
	msg string
	err error
}

// Dial performs the tunnel handshake and returns a connected session.
// Polling is not started until StartPolling is called.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("bluebox: URL is required")
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	codec := cfg.Codec
	if codec == nil {
		codec = RawCodec{}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Conn{
		endpoint:     strings.TrimRight(cfg.URL, "/") + "/" + strings.TrimLeft(path, "/"),
		codec:        codec,
		http:         client,
		logger:       logger.With().Str("component", "bluebox").Logger(),
		onMessage:    cfg.OnMessage,
		onClose:      cfg.OnClose,
		pollInterval: ClampPollInterval(cfg.PollInterval),
		wake:         make(chan struct{}, 1),
		inbox:        make(chan inbound, inboxSize),
	}

	lanes, err := puddle.NewPool(&puddle.Config[*lane]{
		Constructor: func(context.Context) (*lane, error) { return &lane{}, nil },
		Destructor:  func(*lane) {},
		MaxSize:     maxInFlight,
	})
	if err != nil {
		return nil, err
	}
	c.lanes = lanes

	body, err := c.post(ctx, handshakeMessage)
	if err != nil {
		lanes.Close()
		return nil, &HandshakeError{URL: c.endpoint, Err: err}
	}
	sessionID, err := codec.Decode(body)
	if err != nil {
		lanes.Close()
		return nil, &HandshakeError{URL: c.endpoint, Response: body, Err: err}
	}
	c.sessionID = sessionID
	c.logger.Debug().Str("session_id", sessionID).Msg("tunnel connected")

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.loops.Add(1)
	go c.sendLoop()
	go c.readLoop()

	return c, nil
}

// SessionID returns the id issued by the server at handshake.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Send queues msg for delivery. It never blocks on the network.
func (c *Conn) Send(msg string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.outbox = append(c.outbox, msg)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// StartPolling starts the poll goroutine. Further calls are no-ops.
func (c *Conn) StartPolling() {
	c.pollOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.loops.Add(1)
		go c.pollLoop()
	})
}

// Close stops polling, notifies the server and releases the session.
// It is safe to call from OnMessage and OnClose.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		lost := c.failed.Load()
		c.shutdown()
		c.loops.Wait()

		if !lost {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_, err = c.post(ctx, disconnectMessage)
		}
		c.lanes.Close()
	})
	return err
}

// Stats returns a snapshot of the connection statistics.
func (c *Conn) Stats() Stats {
	s := c.lanes.Stat()
	return Stats{
		Requests:     c.requests.Load(),
		Failures:     c.failures.Load(),
		Polls:        c.polls.Load(),
		InFlight:     s.AcquiredResources(),
		Lanes:        s.TotalResources(),
		LaneAcquires: s.AcquireCount(),
	}
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.outbox = nil
	c.mu.Unlock()
	c.cancel()
}

func (c *Conn) sendLoop() {
	defer c.loops.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if len(c.outbox) == 0 {
				c.mu.Unlock()
				break
			}
			msg := c.outbox[0]
			c.outbox = c.outbox[1:]
			c.mu.Unlock()

			c.exchange(msg)
			if c.ctx.Err() != nil {
				return
			}
		}
	}
}

func (c *Conn) pollLoop() {
	defer c.loops.Done()

	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for {
		if err := limiter.Wait(c.ctx); err != nil {
			return
		}
		c.polls.Add(1)
		c.exchange(PollMessage)
		if c.ctx.Err() != nil {
			return
		}
	}
}

func (c *Conn) readLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case in := <-c.inbox:
			if in.err != nil {
				c.shutdown()
				if c.onClose != nil {
					c.onClose(in.err)
				}
				return
			}
			if c.onMessage != nil {
				c.onMessage(in.msg)
			}
		}
	}
}

// exchange sends msg and queues the reply lines for delivery.
func (c *Conn) exchange(msg string) {
	if msg != PollMessage {
		c.logger.Debug().Str("msg", msg).Msg("send")
	}

	body, err := c.post(c.ctx, msg)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Msg("tunnel request failed")
		c.fail(err)
		return
	}
	c.dispatch(body)
}

func (c *Conn) dispatch(body string) {
	if body == "" {
		return
	}
	if strings.HasPrefix(body, HandshakeToken) {
		c.logger.Warn().Msg("ignoring handshake reply on established session")
		return
	}

	c.logger.Debug().Str("body", body).Msg("receive")
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, connectionLost) {
			c.fail(ErrConnectionLost)
			return
		}
		c.deliver(inbound{msg: line})
	}
}

func (c *Conn) fail(err error) {
	c.lostOnce.Do(func() {
		c.failed.Store(true)
		c.deliver(inbound{err: err})
	})
}

func (c *Conn) deliver(in inbound) {
	select {
	case c.inbox <- in:
	case <-c.ctx.Done():
	}
}

// post issues one request on a free lane and returns the body with trailing
// whitespace removed.
func (c *Conn) post(ctx context.Context, msg string) (string, error) {
	res, err := c.lanes.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer res.Release()
	c.requests.Add(1)

	form := url.Values{ParamName: {c.codec.Encode(c.sessionID, msg)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.failures.Add(1)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.failures.Add(1)
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.failures.Add(1)
		return "", err
	}
	return strings.TrimRightFunc(string(data), unicode.IsSpace), nil
}
