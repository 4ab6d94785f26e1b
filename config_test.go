package sfs

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pior/sfs/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configFile = `<?xml version="1.0" encoding="UTF-8"?>
<SmartFoxClient>
	<ip>10.0.0.5</ip>
	<port>9340</port>
	<zone>simpleChat</zone>
	<debug>true</debug>
	<blueBoxIpAddress>10.0.0.6</blueBoxIpAddress>
	<blueBoxPort>8081</blueBoxPort>
	<smartConnect>false</smartConnect>
	<httpPort>8082</httpPort>
	<httpPollSpeed>500</httpPollSpeed>
	<rawProtocolSeparator>#</rawProtocolSeparator>
</SmartFoxClient>`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(configFile))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 9340, cfg.Port)
	assert.Equal(t, "simpleChat", cfg.Zone)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "10.0.0.6", cfg.BlueBoxHost)
	assert.Equal(t, 8081, cfg.BlueBoxPort)
	assert.False(t, cfg.SmartConnect)
	assert.Equal(t, 8082, cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, byte('#'), cfg.Separator)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("<SmartFoxClient><ip>127.0.0.1</ip><port>9339</port></SmartFoxClient>"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.HTTPPort, cfg.HTTPPort)
	assert.Equal(t, def.PollInterval, cfg.PollInterval)
	assert.Equal(t, def.Separator, cfg.Separator)
	assert.True(t, cfg.SmartConnect)
	assert.False(t, cfg.Debug)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "ip=127.0.0.1"},
		{"missing ip", "<SmartFoxClient><port>9339</port></SmartFoxClient>"},
		{"missing port", "<SmartFoxClient><ip>127.0.0.1</ip></SmartFoxClient>"},
		{"bad port", "<SmartFoxClient><ip>127.0.0.1</ip><port>abc</port></SmartFoxClient>"},
		{"bad debug", "<SmartFoxClient><ip>h</ip><port>1</port><debug>maybe</debug></SmartFoxClient>"},
		{"reserved separator", "<SmartFoxClient><ip>h</ip><port>1</port><rawProtocolSeparator>&lt;</rawProtocolSeparator></SmartFoxClient>"},
		{"long separator", "<SmartFoxClient><ip>h</ip><port>1</port><rawProtocolSeparator>%%</rawProtocolSeparator></SmartFoxClient>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SFS_HOST", "game.example.com")
	t.Setenv("SFS_PORT", "9400")
	t.Setenv("SFS_ZONE", "arena")
	t.Setenv("SFS_POLL_INTERVAL", "1s")
	t.Setenv("SFS_SEPARATOR", "|")
	t.Setenv("SFS_SMART_CONNECT", "false")
	t.Setenv("SFS_DEBUG", "1")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "game.example.com", cfg.Host)
	assert.Equal(t, 9400, cfg.Port)
	assert.Equal(t, "arena", cfg.Zone)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, byte('|'), cfg.Separator)
	assert.False(t, cfg.SmartConnect)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTPPort)
}

func TestConfigFromEnv_Errors(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		t.Setenv("SFS_HOST", "")
		_, err := ConfigFromEnv()
		assert.ErrorContains(t, err, "SFS_HOST")
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("SFS_HOST", "h")
		t.Setenv("SFS_PORT", "nine")
		_, err := ConfigFromEnv()
		assert.ErrorContains(t, err, "invalid SFS_PORT environment variable")
	})

	t.Run("bad poll interval", func(t *testing.T) {
		t.Setenv("SFS_HOST", "h")
		t.Setenv("SFS_POLL_INTERVAL", "fast")
		_, err := ConfigFromEnv()
		assert.ErrorContains(t, err, "SFS_POLL_INTERVAL")
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	c := newTestClient(t, Config{Host: "127.0.0.1", Dispatch: DispatchImmediate})
	rec := record(c)

	require.NoError(t, c.LoadConfig(context.Background(), writeConfig(t, configFile), false))

	assert.Len(t, eventsOf[*ConfigLoadSuccessEvent](rec), 1)
	cfg := c.settings()
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, "simpleChat", cfg.Zone)
	assert.Equal(t, byte('#'), cfg.Separator)
	assert.Equal(t, uint32('#'), c.separator.Load())
	assert.Equal(t, DispatchImmediate, cfg.Dispatch)
}

func TestLoadConfig_Failure(t *testing.T) {
	c := newTestClient(t, Config{Host: "127.0.0.1", Dispatch: DispatchImmediate})
	rec := record(c)

	err := c.LoadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.xml"), true)
	require.Error(t, err)

	evt := lastEvent[*ConfigLoadFailureEvent](t, rec)
	assert.NotEmpty(t, evt.Error)
	assert.Empty(t, eventsOf[*ConnectionEvent](rec))
	assert.Equal(t, "127.0.0.1", c.settings().Host)
}

func TestLoadConfig_AutoConnect(t *testing.T) {
	mock := testutils.NewConnectionMock()
	var dialed string
	cfg := Config{Host: "127.0.0.1", Dispatch: DispatchImmediate}
	cfg.dial = func(_ context.Context, addr string) (net.Conn, error) {
		dialed = addr
		return mock, nil
	}
	c := newTestClient(t, cfg)
	rec := record(c)

	require.NoError(t, c.LoadConfig(context.Background(), writeConfig(t, configFile), true))
	defer c.Disconnect()

	assert.Equal(t, "10.0.0.5:9340", dialed)
	assert.Equal(t, ModeSocket, c.ConnectionMode())
	assert.Empty(t, eventsOf[*ConfigLoadSuccessEvent](rec))
	assert.Len(t, mock.WrittenMessages(), 1)
}

func TestLoadConfig_WhileConnected(t *testing.T) {
	c, _, rec := connectMock(t, Config{})

	err := c.LoadConfig(context.Background(), writeConfig(t, configFile), false)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Len(t, eventsOf[*ConfigLoadFailureEvent](rec), 1)
}

func TestTunnelURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		addr string
		want string
	}{
		{"host and http port", Config{Host: "10.0.0.1", HTTPPort: 8080}, "10.0.0.1:9339", "http://10.0.0.1:8080"},
		{"bluebox overrides", Config{Host: "10.0.0.1", HTTPPort: 8080, BlueBoxHost: "tunnel", BlueBoxPort: 80}, "10.0.0.1:9339", "http://tunnel:80"},
		{"selected server", Config{HTTPPort: 8080}, "b.example.com:9339", "http://b.example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tunnelURL(tt.cfg, tt.addr))
		})
	}
}
