package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pior/sfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type options struct {
	host        string
	port        int
	zone        string
	user        string
	password    string
	fromEnv     bool
	noFallback  bool
	queued      bool
	logLevel    string
	metricsAddr string
	timeout     time.Duration
}

func (o *options) config() (sfs.Config, error) {
	cfg := sfs.DefaultConfig()
	if o.fromEnv {
		var err error
		if cfg, err = sfs.ConfigFromEnv(); err != nil {
			return sfs.Config{}, err
		}
	}

	if o.host != "" {
		cfg.Host = o.host
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.zone != "" {
		cfg.Zone = o.zone
	}
	if o.noFallback {
		cfg.SmartConnect = false
	}

	cfg.Dispatch = sfs.DispatchImmediate
	if o.queued {
		cfg.Dispatch = sfs.DispatchQueued
	}

	level, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		return sfs.Config{}, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	cfg.Logger = &logger
	cfg.Debug = level <= zerolog.DebugLevel

	return cfg, nil
}

// session is a logged-in client with the room list loaded.
type session struct {
	client *sfs.Client
	logger zerolog.Logger
	stop   func()
}

func (s *session) Close() {
	s.stop()
	_ = s.client.Disconnect()
}

// pump drains the event queue until ctx is done. A no-op in immediate mode.
func (s *session) pump(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.client.ProcessEventQueue()
		}
	}
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// open connects, logs in and waits for the room list.
func (o *options) open(ctx context.Context) (*session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	client, err := sfs.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	pumpCtx, stop := context.WithCancel(context.Background())
	s := &session{client: client, logger: *cfg.Logger, stop: stop}
	go s.pump(pumpCtx)

	if o.metricsAddr != "" {
		o.serveMetrics(s)
	}

	connected := make(chan *sfs.ConnectionEvent, 1)
	loggedIn := make(chan *sfs.LoginEvent, 1)
	roomList := make(chan struct{}, 1)
	lost := make(chan struct{}, 1)

	sfs.On(client, func(e *sfs.ConnectionEvent) { notify(connected, e) })
	sfs.On(client, func(e *sfs.LoginEvent) { notify(loggedIn, e) })
	sfs.On(client, func(*sfs.RoomListUpdateEvent) { notify(roomList, struct{}{}) })
	sfs.On(client, func(*sfs.ConnectionLostEvent) { notify(lost, struct{}{}) })

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	fail := func(err error) (*session, error) {
		s.Close()
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return fail(err)
	}

	select {
	case e := <-connected:
		if !e.Success {
			return fail(fmt.Errorf("connection refused: %s", e.Error))
		}
	case <-lost:
		return fail(errors.New("connection lost"))
	case <-ctx.Done():
		return fail(fmt.Errorf("waiting for the server: %w", ctx.Err()))
	}
	s.logger.Info().Str("mode", string(client.ConnectionMode())).Msg("connected")

	if err := client.Login("", o.user, o.password); err != nil {
		return fail(err)
	}
	select {
	case e := <-loggedIn:
		if !e.Success {
			return fail(fmt.Errorf("login failed: %s", e.Error))
		}
		s.logger.Info().Str("name", e.Name).Msg("logged in")
	case <-lost:
		return fail(errors.New("connection lost"))
	case <-ctx.Done():
		return fail(fmt.Errorf("waiting for login: %w", ctx.Err()))
	}

	if err := client.GetRoomList(); err != nil {
		return fail(err)
	}
	select {
	case <-roomList:
	case <-lost:
		return fail(errors.New("connection lost"))
	case <-ctx.Done():
		return fail(fmt.Errorf("waiting for the room list: %w", ctx.Err()))
	}

	return s, nil
}

func (o *options) serveMetrics(s *session) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(sfs.NewMetricsCollector(s.client, "sfs"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: o.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	stop := s.stop
	s.stop = func() {
		stop()
		_ = server.Close()
	}
}
