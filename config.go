package sfs

import (
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pior/sfs/bluebox"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultPort        = 9339
	DefaultHTTPPort    = 8080
	DefaultDialTimeout = 5 * time.Second
)

// Config holds configuration for a client session.
type Config struct {
	// Host is the socket server address.
	// Required unless Servers is set.
	Host string

	// Port is the socket server port.
	// Defaults to DefaultPort.
	Port int

	// Servers lists socket servers as "host:port". When set, SelectServer
	// picks one of them from Zone and Host/Port are only used to reach the
	// tunnel.
	Servers []string

	// SelectServer picks which of Servers to dial.
	// If nil, uses DefaultServerSelector.
	SelectServer ServerSelector

	// Zone is the zone used by Login when none is given, and the key for
	// server selection.
	Zone string

	// BlueBoxHost is the HTTP tunnel address.
	// Defaults to Host, or to the host of the selected server.
	BlueBoxHost string

	// BlueBoxPort is the HTTP tunnel port.
	// Defaults to HTTPPort.
	BlueBoxPort int

	// HTTPPort is the web server port of the game server.
	// Defaults to DefaultHTTPPort.
	HTTPPort int

	// SmartConnect enables the fallback to the HTTP tunnel when the socket
	// cannot be opened. DefaultConfig enables it.
	SmartConnect bool

	// PollInterval is the delay between two tunnel polls.
	// Defaults to bluebox.DefaultPollInterval, clamped to bluebox.MaxPollInterval.
	PollInterval time.Duration

	// Separator delimits string-format messages. It cannot be '<' or '{'.
	// Defaults to wire.DefaultSeparator.
	Separator byte

	// DialTimeout bounds the socket dial.
	// Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// Dispatch selects how events are delivered.
	// Defaults to DispatchQueued.
	Dispatch DispatchMode

	// Debug lowers the logger level to debug, which logs every message
	// sent and received.
	Debug bool

	// Logger receives the client logs.
	// If nil, logging is disabled.
	Logger *zerolog.Logger

	// NewCircuitBreaker creates a circuit breaker for a socket server.
	// Called once per server address on first dial.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) *gobreaker.CircuitBreaker[net.Conn]

	// HTTPClient is used by the tunnel.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// TunnelCodec multiplexes the tunnel session id with payloads.
	// Defaults to bluebox.RawCodec.
	TunnelCodec bluebox.Codec

	// TunnelMaxInFlight bounds concurrent tunnel requests.
	// Defaults to bluebox.DefaultMaxInFlight.
	TunnelMaxInFlight int32

	// for testing purposes only
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// DefaultConfig returns a Config with the fallback enabled and every
// default filled in. Host is left empty.
func DefaultConfig() Config {
	return Config{
		Port:         DefaultPort,
		HTTPPort:     DefaultHTTPPort,
		SmartConnect: true,
		PollInterval: bluebox.DefaultPollInterval,
		Separator:    wire.DefaultSeparator,
		DialTimeout:  DefaultDialTimeout,
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = bluebox.DefaultPollInterval
	}
	cfg.PollInterval = bluebox.ClampPollInterval(cfg.PollInterval)
	if cfg.Separator == 0 {
		cfg.Separator = wire.DefaultSeparator
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.SelectServer == nil {
		cfg.SelectServer = DefaultServerSelector
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.Host == "" && len(cfg.Servers) == 0 {
		return fmt.Errorf("sfs: Host or Servers is required")
	}
	if !wire.ValidSeparator(cfg.Separator) {
		return fmt.Errorf("sfs: invalid separator %q", cfg.Separator)
	}
	for name, port := range map[string]int{"Port": cfg.Port, "HTTPPort": cfg.HTTPPort, "BlueBoxPort": cfg.BlueBoxPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("sfs: %s %d is out of range", name, port)
		}
	}
	return nil
}

// fileConfig is the client configuration file:
//
//	<SmartFoxClient>
//		<ip>127.0.0.1</ip>
//		<port>9339</port>
//		<zone>simpleChat</zone>
//		<debug>true</debug>
//		<blueBoxIpAddress>127.0.0.1</blueBoxIpAddress>
//		<blueBoxPort>8080</blueBoxPort>
//		<smartConnect>true</smartConnect>
//		<httpPort>8080</httpPort>
//		<httpPollSpeed>750</httpPollSpeed>
//		<rawProtocolSeparator>%</rawProtocolSeparator>
//	</SmartFoxClient>
type fileConfig struct {
	IP                   string  `xml:"ip"`
	Port                 string  `xml:"port"`
	Zone                 string  `xml:"zone"`
	Debug                *string `xml:"debug"`
	BlueBoxIPAddress     *string `xml:"blueBoxIpAddress"`
	BlueBoxPort          *string `xml:"blueBoxPort"`
	SmartConnect         *string `xml:"smartConnect"`
	HTTPPort             *string `xml:"httpPort"`
	HTTPPollSpeed        *string `xml:"httpPollSpeed"`
	RawProtocolSeparator *string `xml:"rawProtocolSeparator"`
}

// LoadConfigFile reads a client configuration file. Missing optional
// elements keep the DefaultConfig values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sfs: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses the content of a client configuration file.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := xml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("sfs: parse config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Host = strings.TrimSpace(fc.IP)
	cfg.Zone = strings.TrimSpace(fc.Zone)
	if cfg.Host == "" {
		return Config{}, fmt.Errorf("sfs: config: ip is required")
	}

	port, err := strconv.Atoi(strings.TrimSpace(fc.Port))
	if err != nil {
		return Config{}, fmt.Errorf("sfs: config: invalid port: %w", err)
	}
	cfg.Port = port

	if fc.BlueBoxIPAddress != nil {
		cfg.BlueBoxHost = strings.TrimSpace(*fc.BlueBoxIPAddress)
	}
	if fc.BlueBoxPort != nil {
		if cfg.BlueBoxPort, err = strconv.Atoi(strings.TrimSpace(*fc.BlueBoxPort)); err != nil {
			return Config{}, fmt.Errorf("sfs: config: invalid blueBoxPort: %w", err)
		}
	}
	if fc.HTTPPort != nil {
		if cfg.HTTPPort, err = strconv.Atoi(strings.TrimSpace(*fc.HTTPPort)); err != nil {
			return Config{}, fmt.Errorf("sfs: config: invalid httpPort: %w", err)
		}
	}
	if fc.HTTPPollSpeed != nil {
		ms, err := strconv.Atoi(strings.TrimSpace(*fc.HTTPPollSpeed))
		if err != nil {
			return Config{}, fmt.Errorf("sfs: config: invalid httpPollSpeed: %w", err)
		}
		cfg.PollInterval = bluebox.ClampPollInterval(time.Duration(ms) * time.Millisecond)
	}
	if fc.Debug != nil {
		if cfg.Debug, err = strconv.ParseBool(strings.TrimSpace(*fc.Debug)); err != nil {
			return Config{}, fmt.Errorf("sfs: config: invalid debug: %w", err)
		}
	}
	if fc.SmartConnect != nil {
		if cfg.SmartConnect, err = strconv.ParseBool(strings.TrimSpace(*fc.SmartConnect)); err != nil {
			return Config{}, fmt.Errorf("sfs: config: invalid smartConnect: %w", err)
		}
	}
	if fc.RawProtocolSeparator != nil {
		if cfg.Separator, err = parseSeparator(*fc.RawProtocolSeparator); err != nil {
			return Config{}, fmt.Errorf("sfs: config: %w", err)
		}
	}

	return cfg, cfg.validate()
}

// ConfigFromEnv builds a Config from SFS_* environment variables on top of
// DefaultConfig. SFS_HOST is required.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Host = os.Getenv("SFS_HOST")
	if cfg.Host == "" {
		return Config{}, fmt.Errorf("SFS_HOST environment variable is required")
	}
	cfg.Zone = os.Getenv("SFS_ZONE")
	cfg.BlueBoxHost = os.Getenv("SFS_BLUEBOX_HOST")

	var err error
	if cfg.Port, err = envInt("SFS_PORT", cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.BlueBoxPort, err = envInt("SFS_BLUEBOX_PORT", cfg.BlueBoxPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTPPort, err = envInt("SFS_HTTP_PORT", cfg.HTTPPort); err != nil {
		return Config{}, err
	}

	if s := os.Getenv("SFS_POLL_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SFS_POLL_INTERVAL environment variable: %w", err)
		}
		cfg.PollInterval = bluebox.ClampPollInterval(d)
	}

	if s := os.Getenv("SFS_SEPARATOR"); s != "" {
		if cfg.Separator, err = parseSeparator(s); err != nil {
			return Config{}, fmt.Errorf("invalid SFS_SEPARATOR environment variable: %w", err)
		}
	}

	if cfg.SmartConnect, err = envBool("SFS_SMART_CONNECT", cfg.SmartConnect); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = envBool("SFS_DEBUG", cfg.Debug); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func parseSeparator(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if len(s) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	if !wire.ValidSeparator(s[0]) {
		return 0, fmt.Errorf("separator %q is reserved", s)
	}
	return s[0], nil
}

// LoadConfig replaces the connection settings with the content of a
// configuration file. On failure a ConfigLoadFailureEvent is dispatched and
// nothing else happens. On success the client connects when autoConnect is
// set, and dispatches a ConfigLoadSuccessEvent otherwise.
//
// Logger, Dispatch, Debug and the transport hooks keep their values.
func (c *Client) LoadConfig(ctx context.Context, path string, autoConnect bool) error {
	loaded, err := LoadConfigFile(path)
	if err == nil {
		err = c.applySettings(loaded)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("config load failed")
		c.dispatch(&ConfigLoadFailureEvent{Error: err.Error()})
		return err
	}

	if autoConnect {
		return c.Connect(ctx)
	}
	c.dispatch(&ConfigLoadSuccessEvent{})
	return nil
}

func (c *Client) applySettings(loaded Config) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.mode != ModeDisconnected || c.connecting {
		return ErrAlreadyConnected
	}

	cfg := c.config
	cfg.Host = loaded.Host
	cfg.Port = loaded.Port
	cfg.Zone = loaded.Zone
	cfg.BlueBoxHost = loaded.BlueBoxHost
	cfg.BlueBoxPort = loaded.BlueBoxPort
	cfg.HTTPPort = loaded.HTTPPort
	cfg.SmartConnect = loaded.SmartConnect
	cfg.PollInterval = loaded.PollInterval
	cfg.Separator = loaded.Separator
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	c.config = cfg
	c.separator.Store(uint32(cfg.Separator))
	return nil
}
